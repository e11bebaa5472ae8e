package authclient

import (
	"context"
	"time"
)

// TransportMode selects how authenticated requests prove the session.
// Exactly one mode is active per Client.
type TransportMode string

const (
	// TransportToken attaches an Authorization: Bearer header
	TransportToken TransportMode = "token"
	// TransportCookie relies on server set session cookies kept in a jar
	TransportCookie TransportMode = "cookie"
)

func (m TransportMode) String() string {
	return string(m)
}

// Logger is the structured logger used across the package.
// Arguments after the message are key value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Notifier surfaces user visible messages, the toast of the UI.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Navigator moves the application to a named or path based route.
type Navigator interface {
	// Push performs an in app navigation, subject to the route guard.
	Push(ctx context.Context, target string) error
	// HardNavigate performs a full reset navigation, dropping history.
	HardNavigate(ctx context.Context, target string) error
}

// Storage is the durable client side key value store.
// Writes are fire and forget from the caller's point of view.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenSource provides the bearer token for token mode requests.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

// Token implements TokenSource.
func (f TokenSourceFunc) Token() string {
	if f == nil {
		return ""
	}
	return f()
}

// AuthState is the read only view the guard needs.
type AuthState interface {
	IsAuthenticated() bool
}

// Observer receives client side request telemetry.
type Observer interface {
	ObserveRequest(endpoint, method string, statusCode int, duration time.Duration)
	ObserveRefresh(success bool)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, string, int, time.Duration) {}

func (noopObserver) ObserveRefresh(bool) {}

package authclient

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported session lifecycle events.
type ActivityEventType string

const (
	ActivityEventLoginSuccess   ActivityEventType = "session.login.success"
	ActivityEventLoginFailure   ActivityEventType = "session.login.failure"
	ActivityEventRegister       ActivityEventType = "session.register"
	ActivityEventLogout         ActivityEventType = "session.logout"
	ActivityEventExpired        ActivityEventType = "session.expired"
	ActivityEventRestored       ActivityEventType = "session.restored"
	ActivityEventPasswordChange ActivityEventType = "session.password.changed"
)

// ActivityEvent captures what happened to the session.
type ActivityEvent struct {
	EventType  ActivityEventType
	Identity   string
	FromStatus SessionStatus
	ToStatus   SessionStatus
	Message    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// Package authtest runs an in process backend that speaks the same
// /api contract the client expects, in token or cookie mode.
package authtest

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-auth-client"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

// Request is what the server saw for one call
type Request struct {
	Method        string
	Path          string
	Authorization string
	Cookies       map[string]string
	RequestID     string
	Body          string
}

// Server is a fake auth backend.
type Server struct {
	// URL is the API base, ready for Config.BaseURL
	URL string

	mode   authclient.TransportMode
	app    *fiber.App
	ln     net.Listener
	secret []byte

	extractors []extractor

	mu            sync.Mutex
	users         map[string][]byte
	accessEpoch   int
	refreshEpoch  int
	logoutStatus  int
	requests      []Request
	payments      []authclient.Payment
	summary       authclient.DashboardSummary
	chart         []authclient.ChartPoint
	loginResponse *fiber.Map
}

// Option configures the Server
type Option func(*Server)

// WithUser seeds an account
func WithUser(email, password string) Option {
	return func(s *Server) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		s.users[email] = hash
	}
}

// WithLogoutStatus makes POST /logout answer with status
func WithLogoutStatus(status int) Option {
	return func(s *Server) {
		s.logoutStatus = status
	}
}

// WithLoginResponse overrides the body of a successful login
func WithLoginResponse(body fiber.Map) Option {
	return func(s *Server) {
		s.loginResponse = &body
	}
}

// WithPayments replaces the payment fixtures
func WithPayments(payments ...authclient.Payment) Option {
	return func(s *Server) {
		s.payments = payments
	}
}

// NewServer starts listening on a random local port
func NewServer(mode authclient.TransportMode, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}

	s := &Server{
		mode:       mode,
		ln:         ln,
		extractors: extractors(tokenLookup(mode), "Bearer"),
		secret:     []byte(uuid.NewString()),
		users:      map[string][]byte{},
		payments: []authclient.Payment{
			{ID: 1, CustomerName: "Ada Lovelace", Amount: 120.5, Status: "completed", PaymentDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
			{ID: 2, CustomerName: "Alan Turing", Amount: 75, Status: "pending", PaymentDate: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)},
		},
		summary: authclient.DashboardSummary{TotalRevenue: 195.5, CompletedPayments: 1, PendingPayments: 1},
		chart: []authclient.ChartPoint{
			{Label: "Jan", Value: 120.5},
			{Label: "Feb", Value: 75},
		},
		logoutStatus: fiber.StatusOK,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.routes()

	go func() {
		_ = s.app.Listener(ln)
	}()

	s.URL = "http://" + ln.Addr().String() + "/api"
	return s, nil
}

// Close stops the server
func (s *Server) Close() error {
	return s.app.Shutdown()
}

// ExpireAccess invalidates every issued access credential.
// Refresh cookies stay valid so the next refresh succeeds.
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	s.accessEpoch++
	s.mu.Unlock()
}

// RevokeRefresh invalidates every issued refresh cookie
func (s *Server) RevokeRefresh() {
	s.mu.Lock()
	s.refreshEpoch++
	s.mu.Unlock()
}

// Requests returns recorded calls, optionally filtered by path suffix
func (s *Server) Requests(path ...string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		if len(path) > 0 && !strings.HasSuffix(r.Path, path[0]) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Calls counts requests to path
func (s *Server) Calls(path string) int {
	return len(s.Requests(path))
}

// HasUser reports whether email is registered
func (s *Server) HasUser(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[email]
	return ok
}

// CheckPassword reports whether password matches the stored hash
func (s *Server) CheckPassword(email, password string) bool {
	s.mu.Lock()
	hash, ok := s.users[email]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

type sessionClaims struct {
	Kind  string `json:"kind"`
	Epoch int    `json:"epoch"`
	jwt.RegisteredClaims
}

func (s *Server) sign(subject, kind string, epoch int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Kind:  kind,
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verify(raw, kind string) (string, bool) {
	if raw == "" {
		return "", false
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Kind != kind {
		return "", false
	}

	s.mu.Lock()
	epoch := s.accessEpoch
	if kind == RefreshCookie {
		epoch = s.refreshEpoch
	}
	s.mu.Unlock()

	if claims.Epoch != epoch {
		return "", false
	}
	return claims.Subject, true
}

package authclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultLoginFailureMessage is shown when the failure carries no server message
	DefaultLoginFailureMessage = "An error occurred on the server."
	// DefaultRegisterFailureMessage is shown when registration fails without a server message
	DefaultRegisterFailureMessage = "Registration failed."
	// SessionExpiredMessage is shown when an authenticated call is finally rejected
	SessionExpiredMessage = "Your session has expired, please log in again."
)

// API is the slice of Client the store depends on.
type API interface {
	Login(ctx context.Context, creds Credentials) (*LoginResponse, error)
	Register(ctx context.Context, creds Credentials) (*MessageResponse, error)
	Logout(ctx context.Context)
	GetStatus(ctx context.Context) (*StatusResponse, error)
	ChangePassword(ctx context.Context, payload PasswordChange) (*MessageResponse, error)
}

type tokenSourceSetter interface {
	SetTokenSource(ts TokenSource)
}

type jarProvider interface {
	Jar() http.CookieJar
}

type jarClearer interface {
	Clear(ctx context.Context) error
}

// Store holds the session and orchestrates login, registration and logout.
type Store struct {
	mu        sync.RWMutex
	// persistMu orders storage writes of a login against the deletes of a reset
	persistMu sync.Mutex
	session   Session
	loading   bool
	cfg       Config
	client    API
	storage   Storage
	navigator Navigator
	notifier  Notifier
	logger    Logger
	sink      ActivitySink
	now       func() time.Time
}

// StoreOption customizes Store construction.
type StoreOption func(*Store)

// WithNavigator sets the navigator used after login and logout.
func WithNavigator(n Navigator) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.navigator = n
		}
	}
}

// WithNotifier sets the user notification channel.
func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithStoreLogger overrides the logger.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStore builds the store and seeds the session from storage. No network
// call is made, a stale entry reads as authenticated until the server says otherwise.
func NewStore(ctx context.Context, cfg Config, client API, storage Storage, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.New("store requires an API client")
	}
	if storage == nil {
		return nil, errors.New("store requires storage")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, NewValidationError(err)
	}

	s := &Store{
		cfg:       cfg,
		client:    client,
		storage:   storage,
		navigator: nopNavigator{},
		notifier:  nopNotifier{},
		logger:    defLogger{},
		sink:      noopActivitySink{},
		now:       time.Now,
		session:   Session{Mode: cfg.Mode, Status: StatusAnonymous},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if setter, ok := client.(tokenSourceSetter); ok && cfg.Mode == TransportToken {
		setter.SetTokenSource(s)
	}

	s.bootstrap(ctx)

	return s, nil
}

// SetNavigator wires the navigator once the router, which reads the store, exists.
func (s *Store) SetNavigator(n Navigator) {
	if n == nil {
		n = nopNavigator{}
	}
	s.mu.Lock()
	s.navigator = n
	s.mu.Unlock()
}

// IsAuthenticated is derived from the session status on every read.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated()
}

// IsLoading reports whether a login or registration is in flight. Advisory only.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Identity returns the current identity, empty when anonymous
func (s *Store) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Identity
}

// Token implements TokenSource
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// Snapshot returns a copy of the session
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Login authenticates with credentials. Errors never escape, they are
// turned into a Result and a notification.
func (s *Store) Login(ctx context.Context, creds Credentials) Result {
	s.mu.Lock()
	s.loading = true
	from := s.session.Status
	if err := s.session.Transition(StatusAuthenticating); err != nil {
		s.logger.Warn("login status transition rejected", "error", err)
	}
	gen := s.session.Generation
	s.mu.Unlock()

	defer s.setLoading(false)

	resp, err := s.client.Login(ctx, creds)
	if err == nil && s.cfg.Mode == TransportToken && resp.Token == "" {
		err = ErrMissingToken
	}
	if err != nil {
		return s.loginFailed(ctx, creds, from, gen, err)
	}

	s.mu.Lock()
	if s.session.Generation != gen {
		s.mu.Unlock()
		s.logger.Info("discarding login result for a reset session", "identity", creds.Identity)
		return Result{Success: false, Message: ErrStaleSession.Error()}
	}

	if err := s.session.Authenticate(creds.Identity, resp.Token); err != nil {
		s.mu.Unlock()
		return s.loginFailed(ctx, creds, from, gen, err)
	}
	session := s.session
	nav := s.navigator
	s.mu.Unlock()

	if !s.persistFor(ctx, session, gen) {
		s.logger.Info("discarding login result for a reset session", "identity", creds.Identity)
		return Result{Success: false, Message: ErrStaleSession.Error()}
	}

	if err := nav.Push(ctx, s.cfg.LandingRoute); err != nil {
		s.logger.Error("navigation after login failed", "route", s.cfg.LandingRoute, "error", err)
	}

	s.notifier.Success(ctx, resp.Message)

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		Identity:   creds.Identity,
		FromStatus: from,
		ToStatus:   StatusAuthenticated,
		Message:    resp.Message,
	})

	return Result{Success: true, Message: resp.Message}
}

func (s *Store) loginFailed(ctx context.Context, creds Credentials, from SessionStatus, gen uint64, err error) Result {
	s.mu.Lock()
	if s.session.Generation == gen {
		s.session.Identity = ""
		s.session.Token = ""
		_ = s.session.Transition(StatusAnonymous)
	}
	s.mu.Unlock()

	msg := ErrorMessage(err, DefaultLoginFailureMessage)
	s.logger.Info("login failed", "identity", creds.Identity, "error", err)
	s.notifier.Error(ctx, msg)

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		Identity:   creds.Identity,
		FromStatus: from,
		ToStatus:   StatusAnonymous,
		Message:    msg,
	})

	return Result{Success: false, Message: msg}
}

// Register creates an account. It never authenticates the session.
func (s *Store) Register(ctx context.Context, creds Credentials) Result {
	if err := creds.Validate(); err != nil {
		msg := ErrorMessage(err, DefaultRegisterFailureMessage)
		s.notifier.Error(ctx, msg)
		return Result{Success: false, Message: msg}
	}

	s.setLoading(true)
	defer s.setLoading(false)

	resp, err := s.client.Register(ctx, creds)
	if err != nil {
		msg := ErrorMessage(err, DefaultRegisterFailureMessage)
		s.logger.Info("registration failed", "identity", creds.Identity, "error", err)
		s.notifier.Error(ctx, msg)
		return Result{Success: false, Message: msg}
	}

	s.notifier.Success(ctx, resp.Message)
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventRegister,
		Identity:  creds.Identity,
		Message:   resp.Message,
	})

	return Result{Success: true, Message: resp.Message}
}

// Logout always succeeds from the client's perspective: the server call is
// best effort and local state is cleared regardless.
func (s *Store) Logout(ctx context.Context) {
	s.client.Logout(ctx)

	from := s.reset(ctx)

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLogout,
		FromStatus: from,
		ToStatus:   StatusAnonymous,
	})

	s.hardNavigate(ctx)
}

// ChangePassword validates the new secret locally then updates it remotely.
func (s *Store) ChangePassword(ctx context.Context, oldSecret, newSecret string) Result {
	payload := PasswordChange{
		Identity:  s.Identity(),
		OldSecret: oldSecret,
		NewSecret: newSecret,
	}

	if err := payload.Validate(); err != nil {
		msg := ErrorMessage(err, DefaultErrorMessage)
		s.notifier.Error(ctx, msg)
		return Result{Success: false, Message: msg}
	}

	// a 401 here means the current password is wrong, the session stays
	resp, err := s.client.ChangePassword(ctx, payload)
	if err != nil {
		msg := ErrorMessage(err, DefaultErrorMessage)
		s.notifier.Error(ctx, msg)
		return Result{Success: false, Message: msg}
	}

	s.notifier.Success(ctx, resp.Message)
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChange,
		Identity:  payload.Identity,
		Message:   resp.Message,
	})

	return Result{Success: true, Message: resp.Message}
}

// Verify checks the session against the server. A rejected session is expired.
func (s *Store) Verify(ctx context.Context) Result {
	resp, err := Authorized(ctx, s, s.client.GetStatus)
	if err != nil {
		return Result{Success: false, Message: ErrorMessage(err, DefaultErrorMessage)}
	}
	return Result{Success: true, Message: resp.Message}
}

// Authorized runs an authenticated call. A final 401 means the session
// cannot be recovered: it is cleared locally and the user sent to login.
func Authorized[T any](ctx context.Context, s *Store, fn func(context.Context) (T, error)) (T, error) {
	s.mu.RLock()
	gen := s.session.Generation
	s.mu.RUnlock()

	out, err := fn(ctx)
	if err != nil && IsUnauthorizedError(err) {
		s.expire(ctx, gen)
	}
	return out, err
}

func (s *Store) expire(ctx context.Context, gen uint64) {
	s.mu.RLock()
	current := s.session.Generation == gen && s.session.IsAuthenticated()
	identity := s.session.Identity
	s.mu.RUnlock()

	if !current {
		return
	}

	from := s.reset(ctx)
	s.notifier.Error(ctx, SessionExpiredMessage)
	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventExpired,
		Identity:   identity,
		FromStatus: from,
		ToStatus:   StatusAnonymous,
	})
	s.hardNavigate(ctx)
}

// reset clears memory, storage and cookies, in that order
func (s *Store) reset(ctx context.Context) SessionStatus {
	s.mu.Lock()
	from := s.session.Status
	s.session.Reset()
	s.mu.Unlock()

	s.persistMu.Lock()
	s.clearPersisted(ctx)
	s.persistMu.Unlock()

	if p, ok := s.client.(jarProvider); ok {
		if jar, ok := p.Jar().(jarClearer); ok {
			if err := jar.Clear(ctx); err != nil {
				s.logger.Error("failed to clear cookies", "error", err)
			}
		}
	}

	return from
}

func (s *Store) hardNavigate(ctx context.Context) {
	s.mu.RLock()
	nav := s.navigator
	s.mu.RUnlock()

	if err := nav.HardNavigate(ctx, s.cfg.LoginRoute); err != nil {
		s.logger.Error("navigation to login failed", "route", s.cfg.LoginRoute, "error", err)
	}
}

func (s *Store) bootstrap(ctx context.Context) {
	identity, _, err := s.storage.Get(ctx, s.cfg.Keys.Identity)
	if err != nil {
		s.logger.Warn("unable to read persisted identity", "error", err)
		return
	}

	var token string
	if s.cfg.Mode == TransportToken {
		token, _, err = s.storage.Get(ctx, s.cfg.Keys.Token)
		if err != nil {
			s.logger.Warn("unable to read persisted token", "error", err)
			return
		}
	}

	s.mu.Lock()
	s.session = restoreSession(s.cfg.Mode, identity, token)
	restored := s.session.IsAuthenticated()
	s.mu.Unlock()

	if identity != "" && !restored {
		s.logger.Warn("ignoring persisted identity without a token", "identity", identity)
	}

	if restored {
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventRestored,
			Identity:  identity,
			ToStatus:  StatusAuthenticated,
		})
	}
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Generation
}

// persistFor writes session unless a reset bumped the generation past gen,
// before or while writing. It reports whether the write stands.
func (s *Store) persistFor(ctx context.Context, session Session, gen uint64) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if s.generation() != gen {
		return false
	}

	s.persist(ctx, session)

	if s.generation() != gen {
		s.clearPersisted(ctx)
		return false
	}
	return true
}

func (s *Store) clearPersisted(ctx context.Context) {
	if err := s.storage.Delete(ctx, s.cfg.Keys.Identity, s.cfg.Keys.Token); err != nil {
		s.logger.Error("failed to clear persisted session", "error", err)
	}
}

// persist writes identity and token. Failures are logged, never returned.
func (s *Store) persist(ctx context.Context, session Session) {
	if err := s.storage.Set(ctx, s.cfg.Keys.Identity, session.Identity); err != nil {
		s.logger.Error("failed to persist identity", "error", err)
	}

	if s.cfg.Mode != TransportToken {
		return
	}

	if err := s.storage.Set(ctx, s.cfg.Keys.Token, session.Token); err != nil {
		s.logger.Error("failed to persist token", "error", err)
	}
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.sink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "error", err)
	}
}

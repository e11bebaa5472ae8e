package authclient_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/authtest"
	"github.com/goliatone/go-auth-client/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type app struct {
	server   *authtest.Server
	client   *authclient.Client
	store    *authclient.Store
	router   *authclient.Router
	storage  *memory.Storage
	jar      *authclient.PersistentJar
	notifier *recordingNotifier
}

func startApp(t *testing.T, mode authclient.TransportMode, storage *memory.Storage, opts ...authtest.Option) *app {
	t.Helper()

	srv, err := authtest.NewServer(mode, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return bootApp(t, srv, mode, storage)
}

// bootApp wires a fresh object graph, like a new page load
func bootApp(t *testing.T, srv *authtest.Server, mode authclient.TransportMode, storage *memory.Storage) *app {
	t.Helper()
	ctx := context.Background()

	if storage == nil {
		storage = memory.New()
	}

	cfg := authclient.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Mode = mode
	cfg.Timeout = 5 * time.Second

	a := &app{server: srv, storage: storage, notifier: &recordingNotifier{}}

	clientOpts := []authclient.ClientOption{authclient.WithClientLogger(authclient.NopLogger())}
	if mode == authclient.TransportCookie {
		jar, err := authclient.NewPersistentJar(ctx, storage, cfg.Keys.Cookies, authclient.WithJarLogger(authclient.NopLogger()))
		require.NoError(t, err)
		a.jar = jar
		clientOpts = append(clientOpts, authclient.WithCookieJar(jar))
	}

	client, err := authclient.NewClient(cfg, clientOpts...)
	require.NoError(t, err)
	a.client = client

	store, err := authclient.NewStore(ctx, cfg, client, storage,
		authclient.WithNotifier(a.notifier),
		authclient.WithStoreLogger(authclient.NopLogger()),
	)
	require.NoError(t, err)
	a.store = store

	table, err := authclient.NewRouteTable(authclient.DefaultRoutes())
	require.NoError(t, err)
	a.router = authclient.NewRouter(authclient.NewGuard(table, store), authclient.WithRouterLogger(authclient.NopLogger()))
	store.SetNavigator(a.router)

	return a
}

func TestTokenModeLoginScenario(t *testing.T) {
	a := startApp(t, authclient.TransportToken, nil,
		authtest.WithUser("a@b.com", "Str0ng!pass"),
		authtest.WithLoginResponse(fiber.Map{"token": "T1", "message": "ok"}),
	)
	ctx := context.Background()

	result := a.store.Login(ctx, authclient.Credentials{Identity: "a@b.com", Secret: "Str0ng!pass"})

	assert.Equal(t, authclient.Result{Success: true, Message: "ok"}, result)
	identity, _, _ := a.storage.Get(ctx, "identity")
	token, _, _ := a.storage.Get(ctx, "token")
	assert.Equal(t, "a@b.com", identity)
	assert.Equal(t, "T1", token)
	assert.Equal(t, "Dashboard", a.router.Current().Name)
	assert.Equal(t, []string{"ok"}, a.notifier.Successes())
}

func TestTokenModeInvalidCredentialsScenario(t *testing.T) {
	a := startApp(t, authclient.TransportToken, nil, authtest.WithUser("a@b.com", "Str0ng!pass"))
	ctx := context.Background()

	result := a.store.Login(ctx, authclient.Credentials{Identity: "a@b.com", Secret: "wrong"})

	assert.Equal(t, authclient.Result{Success: false, Message: "invalid credentials"}, result)
	assert.Equal(t, 0, a.storage.Len())
	assert.False(t, a.store.IsAuthenticated())
	assert.True(t, a.router.Current().IsZero())
}

func TestTokenModeSessionLifecycle(t *testing.T) {
	a := startApp(t, authclient.TransportToken, nil, authtest.WithUser("a@b.com", "Str0ng!pass"))
	ctx := context.Background()

	require.True(t, a.store.Login(ctx, authclient.Credentials{Identity: "a@b.com", Secret: "Str0ng!pass"}).Success)

	payments, err := authclient.Authorized(ctx, a.store, a.client.GetPayments)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	status := a.server.Requests("/api/payments")
	require.Len(t, status, 1)
	assert.Equal(t, "Bearer "+a.store.Token(), status[0].Authorization)

	// restart: session comes back from storage without any network call
	before := len(a.server.Requests())
	again := bootApp(t, a.server, authclient.TransportToken, a.storage)
	assert.True(t, again.store.IsAuthenticated())
	assert.Len(t, a.server.Requests(), before)

	summary, err := authclient.Authorized(ctx, again.store, again.client.GetDashboardSummary)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.PendingPayments)

	// server side expiry is irrecoverable in token mode
	a.server.ExpireAccess()
	_, err = authclient.Authorized(ctx, again.store, again.client.GetChartData)
	assert.True(t, authclient.IsUnauthorizedError(err))
	assert.False(t, again.store.IsAuthenticated())
	assert.Equal(t, "Login", again.router.Current().Name)
	assert.Equal(t, uint64(1), again.store.Snapshot().Generation)
	assert.Zero(t, a.server.Calls("/api/refresh"))
}

func TestCookieModeRefreshAndRestart(t *testing.T) {
	a := startApp(t, authclient.TransportCookie, nil, authtest.WithUser("a@b.com", "Str0ng!pass"))
	ctx := context.Background()

	require.True(t, a.store.Login(ctx, authclient.Credentials{Identity: "a@b.com", Secret: "Str0ng!pass"}).Success)
	_, hasToken, _ := a.storage.Get(ctx, "token")
	assert.False(t, hasToken)
	assert.Equal(t, 2, a.jar.Len())

	a.server.ExpireAccess()

	resp, err := authclient.Authorized(ctx, a.store, a.client.GetStatus)
	require.NoError(t, err)
	assert.Equal(t, "Authenticated as a@b.com", resp.Message)
	assert.Equal(t, 1, a.server.Calls("/api/refresh"))
	assert.Equal(t, 2, a.server.Calls("/api/status"))

	refresh := a.server.Requests("/api/refresh")
	assert.Contains(t, refresh[0].Cookies, authtest.RefreshCookie)
	status := a.server.Requests("/api/status")
	assert.NotContains(t, status[0].Cookies, authtest.RefreshCookie, "refresh cookie is scoped to /api/refresh")

	// cookies persisted by the jar come back on restart
	again := bootApp(t, a.server, authclient.TransportCookie, a.storage)
	assert.True(t, again.store.IsAuthenticated())
	_, err = authclient.Authorized(ctx, again.store, again.client.GetPayments)
	require.NoError(t, err)
}

func TestCookieModeExpiredRefreshLogsOut(t *testing.T) {
	a := startApp(t, authclient.TransportCookie, nil, authtest.WithUser("a@b.com", "Str0ng!pass"))
	ctx := context.Background()

	require.True(t, a.store.Login(ctx, authclient.Credentials{Identity: "a@b.com", Secret: "Str0ng!pass"}).Success)

	a.server.ExpireAccess()
	a.server.RevokeRefresh()

	_, err := authclient.Authorized(ctx, a.store, a.client.GetPayments)
	assert.True(t, authclient.IsUnauthorizedError(err))
	assert.False(t, a.store.IsAuthenticated())
	assert.Equal(t, 0, a.jar.Len())
	assert.Equal(t, 0, a.storage.Len())
	assert.Equal(t, "Login", a.router.Current().Name)
	assert.Contains(t, a.notifier.Errors(), authclient.SessionExpiredMessage)
}

func TestLogoutClearsLocalStateWhenServerFails(t *testing.T) {
	a := startApp(t, authclient.TransportCookie, nil,
		authtest.WithUser("a@b.com", "Str0ng!pass"),
		authtest.WithLogoutStatus(http.StatusInternalServerError),
	)
	ctx := context.Background()

	require.True(t, a.store.Login(ctx, authclient.Credentials{Identity: "a@b.com", Secret: "Str0ng!pass"}).Success)

	a.store.Logout(ctx)
	a.store.Logout(ctx)

	assert.False(t, a.store.IsAuthenticated())
	assert.Equal(t, 0, a.storage.Len())
	assert.Equal(t, 0, a.jar.Len())
	assert.Equal(t, "Login", a.router.Current().Name)
	assert.Empty(t, a.router.History())
	assert.Equal(t, 2, a.server.Calls("/api/logout"))

	require.NoError(t, a.router.Push(ctx, "Payments"))
	assert.Equal(t, "Login", a.router.Current().Name)
}

func TestRegisterThenLogin(t *testing.T) {
	a := startApp(t, authclient.TransportToken, nil)
	ctx := context.Background()

	result := a.store.Register(ctx, authclient.Credentials{Identity: "new@b.com", Secret: "Str0ng!pass"})
	assert.Equal(t, authclient.Result{Success: true, Message: "User registered successfully"}, result)
	assert.False(t, a.store.IsAuthenticated())
	assert.True(t, a.server.HasUser("new@b.com"))

	register := a.server.Requests("/api/register")
	require.Len(t, register, 1)
	assert.Empty(t, register[0].Authorization)
	assert.Empty(t, register[0].Cookies)

	result = a.store.Register(ctx, authclient.Credentials{Identity: "new@b.com", Secret: "Str0ng!pass"})
	assert.Equal(t, authclient.Result{Success: false, Message: "user already exists"}, result)

	require.True(t, a.store.Login(ctx, authclient.Credentials{Identity: "new@b.com", Secret: "Str0ng!pass"}).Success)

	changed := a.store.ChangePassword(ctx, "Str0ng!pass", "N3w!password")
	assert.Equal(t, authclient.Result{Success: true, Message: "Password updated successfully"}, changed)
	assert.True(t, a.server.CheckPassword("new@b.com", "N3w!password"))
}

func TestWrongCurrentPasswordKeepsCookieSession(t *testing.T) {
	a := startApp(t, authclient.TransportCookie, nil, authtest.WithUser("a@b.com", "Str0ng!pass"))
	ctx := context.Background()

	require.True(t, a.store.Login(ctx, authclient.Credentials{Identity: "a@b.com", Secret: "Str0ng!pass"}).Success)

	result := a.store.ChangePassword(ctx, "Wr0ng!pass", "N3w!password")

	assert.Equal(t, authclient.Result{Success: false, Message: "current password is incorrect"}, result)
	assert.True(t, a.store.IsAuthenticated())
	assert.Equal(t, 2, a.jar.Len())
	identity, ok, _ := a.storage.Get(ctx, "identity")
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", identity)
	assert.Equal(t, "Dashboard", a.router.Current().Name)
	assert.NotContains(t, a.notifier.Errors(), authclient.SessionExpiredMessage)
	assert.True(t, a.server.CheckPassword("a@b.com", "Str0ng!pass"))

	_, err := authclient.Authorized(ctx, a.store, a.client.GetPayments)
	require.NoError(t, err)
}

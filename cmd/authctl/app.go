package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/activitymap"
	"github.com/goliatone/go-auth-client/config"
	metrics "github.com/goliatone/go-auth-client/metrics/prometheus"
	"github.com/goliatone/go-auth-client/storage/memory"
	"github.com/goliatone/go-auth-client/storage/redis"
	"github.com/goliatone/go-auth-client/storage/sqlite"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app is the object graph of one invocation, one page load of the web client.
type app struct {
	cfg     config.App
	zap     *zap.Logger
	logger  authclient.Logger
	storage authclient.Storage
	closer  io.Closer
	client  *authclient.Client
	store   *authclient.Store
	router  *authclient.Router
	routes  *authclient.RouteTable
	metrics *metrics.Observer
}

func newApp(ctx context.Context, cfg config.App, errOut io.Writer) (*app, error) {
	zl, err := newLogger(cfg.Log.Level, errOut)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, zap: zl, logger: authclient.NewZapLogger(zl)}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	obs, err := metrics.New()
	if err != nil {
		return nil, err
	}
	a.metrics = obs

	opts := []authclient.ClientOption{
		authclient.WithClientLogger(a.logger),
		authclient.WithObserver(obs),
	}

	if cfg.Client.Mode == authclient.TransportCookie {
		jar, err := authclient.NewPersistentJar(ctx, a.storage, cfg.Client.Keys.Cookies,
			authclient.WithJarLogger(a.logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, authclient.WithCookieJar(jar))
	}

	a.client, err = authclient.NewClient(cfg.Client, opts...)
	if err != nil {
		return nil, err
	}

	a.store, err = authclient.NewStore(ctx, cfg.Client, a.client, a.storage,
		authclient.WithNotifier(authclient.NewLogNotifier(a.logger)),
		authclient.WithStoreLogger(a.logger),
		authclient.WithActivitySink(activitymap.ZapSink(zl, activitymap.WithChannel("authctl"))),
	)
	if err != nil {
		return nil, err
	}

	table, err := authclient.NewRouteTable(authclient.DefaultRoutes())
	if err != nil {
		return nil, err
	}

	a.routes = table

	guard := authclient.NewGuard(table, a.store,
		authclient.WithGuardLoginRoute(cfg.Client.LoginRoute),
		authclient.WithGuardLandingRoute(cfg.Client.LandingRoute),
	)
	a.router = authclient.NewRouter(guard, authclient.WithRouterLogger(a.logger))
	a.store.SetNavigator(a.router)

	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	cfg := a.cfg.Storage

	switch cfg.Driver {
	case config.DriverMemory:
		a.storage = memory.New()
	case config.DriverSQLite:
		if err := ensureDir(cfg.DSN); err != nil {
			return err
		}
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		a.storage, a.closer = s, s
	case config.DriverRedis:
		s, err := redis.Open(ctx, cfg.DSN, redis.WithPrefix(cfg.Prefix))
		if err != nil {
			return err
		}
		a.storage, a.closer = s, s
	default:
		return errors.Errorf("unknown storage driver %q", cfg.Driver)
	}

	return nil
}

// Close flushes metrics and releases storage
func (a *app) Close() error {
	var first error

	if a.cfg.Metrics.File != "" && a.metrics != nil {
		if err := a.metrics.WriteFile(a.cfg.Metrics.File); err != nil {
			first = err
		}
	}

	if a.closer != nil {
		if err := a.closer.Close(); err != nil && first == nil {
			first = err
		}
	}

	_ = a.zap.Sync()
	return first
}

func ensureDir(dsn string) error {
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create storage directory")
	}
	return nil
}

func newLogger(level string, out io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", level)
	}

	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.TimeKey = ""
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoder), zapcore.AddSync(out), zap.NewAtomicLevelAt(lvl))
	return zap.New(core), nil
}

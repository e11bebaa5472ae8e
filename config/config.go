// Package config loads authctl settings. Later sources win:
// defaults, config file, environment (.env included), command line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-auth-client"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix is stripped from environment keys, "__" separates levels:
	// AUTHCTL_CLIENT__BASE_URL sets client.base_url
	EnvPrefix = "AUTHCTL_"

	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Storage selects the durable storage backend
type Storage struct {
	Driver string `koanf:"driver" json:"driver"`
	DSN    string `koanf:"dsn" json:"dsn"`
	Prefix string `koanf:"prefix" json:"prefix"`
}

// Validate will run validation rules
func (s Storage) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required, validation.In(DriverMemory, DriverSQLite, DriverRedis)),
		validation.Field(&s.DSN, validation.When(s.Driver != DriverMemory, validation.Required)),
	)
}

// Log configures the CLI logger
type Log struct {
	Level string `koanf:"level" json:"level"`
}

// Validate will run validation rules
func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// Metrics configures client telemetry output
type Metrics struct {
	File string `koanf:"file" json:"file"`
}

// App is the full authctl configuration
type App struct {
	Client  authclient.Config `koanf:"client" json:"client"`
	Storage Storage           `koanf:"storage" json:"storage"`
	Log     Log               `koanf:"log" json:"log"`
	Metrics Metrics           `koanf:"metrics" json:"metrics"`
}

// Validate will run validation rules
func (a App) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Client),
		validation.Field(&a.Storage),
		validation.Field(&a.Log),
	)
}

// Defaults returns the settings used when nothing else is configured
func Defaults() App {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}

	return App{
		Client: authclient.DefaultConfig(),
		Storage: Storage{
			Driver: DriverSQLite,
			DSN:    "file:" + filepath.Join(dir, "authctl", "session.db"),
			Prefix: "authctl:",
		},
		Log: Log{Level: "info"},
	}
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"base-url":       "client.base_url",
	"mode":           "client.mode",
	"timeout":        "client.timeout",
	"storage":        "storage.driver",
	"storage-dsn":    "storage.dsn",
	"storage-prefix": "storage.prefix",
	"log-level":      "log.level",
	"metrics-file":   "metrics.file",
}

// Loader builds an App from layered sources
type Loader struct {
	file     string
	envFiles []string
	prefix   string
	flags    *pflag.FlagSet
	defaults App
}

// Option configures a Loader
type Option func(*Loader)

// WithFile reads path; the parser is picked from the extension.
func WithFile(path string) Option {
	return func(l *Loader) {
		l.file = path
	}
}

// WithEnvFiles loads dotenv files, missing ones are skipped
func WithEnvFiles(paths ...string) Option {
	return func(l *Loader) {
		l.envFiles = paths
	}
}

// WithEnvPrefix overrides EnvPrefix
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithFlags applies flags that were set explicitly
func WithFlags(fs *pflag.FlagSet) Option {
	return func(l *Loader) {
		l.flags = fs
	}
}

// WithDefaults replaces Defaults()
func WithDefaults(app App) Option {
	return func(l *Loader) {
		l.defaults = app
	}
}

// NewLoader returns a loader with the default sources
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		envFiles: []string{".env"},
		prefix:   EnvPrefix,
		defaults: Defaults(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load is NewLoader(opts...).Load()
func Load(opts ...Option) (App, error) {
	return NewLoader(opts...).Load()
}

// Load merges all sources and validates the result
func (l *Loader) Load() (App, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(l.defaults, "koanf"), nil); err != nil {
		return App{}, errors.Wrap(err, "load defaults")
	}

	if l.file != "" {
		parser, err := parserFor(l.file)
		if err != nil {
			return App{}, err
		}
		if err := k.Load(file.Provider(l.file), parser); err != nil {
			return App{}, errors.Wrapf(err, "load config file %s", l.file)
		}
	}

	if err := l.loadEnvFiles(); err != nil {
		return App{}, err
	}

	err := k.Load(env.Provider(l.prefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, l.prefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return App{}, errors.Wrap(err, "load environment")
	}

	if l.flags != nil {
		err := k.Load(posflag.ProviderWithFlag(l.flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(l.flags, f)
		}), nil)
		if err != nil {
			return App{}, errors.Wrap(err, "load flags")
		}
	}

	var app App
	if err := k.UnmarshalWithConf("", &app, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return App{}, errors.Wrap(err, "decode config")
	}

	if err := app.Validate(); err != nil {
		return App{}, authclient.NewValidationError(err)
	}

	return app, nil
}

func (l *Loader) loadEnvFiles() error {
	existing := make([]string, 0, len(l.envFiles))
	for _, p := range l.envFiles {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "load env files")
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, errors.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
}

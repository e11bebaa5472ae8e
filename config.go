package authclient

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	DefaultBaseURL      = "http://localhost:8080/api"
	DefaultTimeout      = 15 * time.Second
	DefaultLandingRoute = "Dashboard"
	DefaultLoginRoute   = "Login"
)

// StorageKeys names the durable storage entries. Identity and token are
// always written and removed together.
type StorageKeys struct {
	Identity string `koanf:"identity" json:"identity"`
	Token    string `koanf:"token" json:"token"`
	Cookies  string `koanf:"cookies" json:"cookies"`
}

// Validate will run validation rules
func (k StorageKeys) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.Identity, validation.Required),
		validation.Field(&k.Token, validation.Required),
		validation.Field(&k.Cookies, validation.Required),
	)
}

// Config holds client and store options
type Config struct {
	BaseURL      string        `koanf:"base_url" json:"base_url"`
	Mode         TransportMode `koanf:"mode" json:"mode"`
	Timeout      time.Duration `koanf:"timeout" json:"timeout"`
	LandingRoute string        `koanf:"landing_route" json:"landing_route"`
	LoginRoute   string        `koanf:"login_route" json:"login_route"`
	Keys         StorageKeys   `koanf:"keys" json:"keys"`
}

// DefaultConfig returns a token mode config pointing at a local backend
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Mode:         TransportToken,
		Timeout:      DefaultTimeout,
		LandingRoute: DefaultLandingRoute,
		LoginRoute:   DefaultLoginRoute,
		Keys: StorageKeys{
			Identity: "identity",
			Token:    "token",
			Cookies:  "cookies",
		},
	}
}

// Validate will run validation rules
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Mode, validation.Required, validation.In(TransportToken, TransportCookie)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.LandingRoute, validation.Required),
		validation.Field(&c.LoginRoute, validation.Required),
		validation.Field(&c.Keys),
	)
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.LandingRoute == "" {
		c.LandingRoute = def.LandingRoute
	}
	if c.LoginRoute == "" {
		c.LoginRoute = def.LoginRoute
	}
	if c.Keys.Identity == "" {
		c.Keys.Identity = def.Keys.Identity
	}
	if c.Keys.Token == "" {
		c.Keys.Token = def.Keys.Token
	}
	if c.Keys.Cookies == "" {
		c.Keys.Cookies = def.Keys.Cookies
	}
	return c
}

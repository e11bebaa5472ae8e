package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func memoryDefaults() config.App {
	app := config.Defaults()
	app.Storage = config.Storage{Driver: config.DriverMemory}
	return app
}

func TestLoadDefaults(t *testing.T) {
	app, err := config.Load(config.WithEnvFiles(), config.WithDefaults(memoryDefaults()))
	require.NoError(t, err)

	assert.Equal(t, authclient.DefaultBaseURL, app.Client.BaseURL)
	assert.Equal(t, authclient.TransportToken, app.Client.Mode)
	assert.Equal(t, authclient.DefaultTimeout, app.Client.Timeout)
	assert.Equal(t, "identity", app.Client.Keys.Identity)
	assert.Equal(t, "info", app.Log.Level)
}

func TestLoadLayering(t *testing.T) {
	path := writeFile(t, "authctl.yaml", `
client:
  base_url: http://file.example.com/api
  mode: cookie
  timeout: 3s
log:
  level: warn
`)

	t.Setenv("AUTHCTL_CLIENT__BASE_URL", "http://env.example.com/api")
	t.Setenv("AUTHCTL_LOG__LEVEL", "debug")

	fs := pflag.NewFlagSet("authctl", pflag.ContinueOnError)
	fs.String("base-url", "", "")
	fs.String("log-level", "info", "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--log-level=error", "--unrelated=x"}))

	app, err := config.Load(
		config.WithDefaults(memoryDefaults()),
		config.WithEnvFiles(),
		config.WithFile(path),
		config.WithFlags(fs),
	)
	require.NoError(t, err)

	assert.Equal(t, authclient.TransportCookie, app.Client.Mode, "file overrides defaults")
	assert.Equal(t, 3*time.Second, app.Client.Timeout)
	assert.Equal(t, "http://env.example.com/api", app.Client.BaseURL, "env overrides file")
	assert.Equal(t, "error", app.Log.Level, "explicit flag overrides env")
}

func TestLoadUnsetFlagKeepsLowerLayers(t *testing.T) {
	t.Setenv("AUTHCTL_CLIENT__MODE", "cookie")

	fs := pflag.NewFlagSet("authctl", pflag.ContinueOnError)
	fs.String("mode", "token", "")
	require.NoError(t, fs.Parse(nil))

	app, err := config.Load(config.WithDefaults(memoryDefaults()), config.WithEnvFiles(), config.WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, authclient.TransportCookie, app.Client.Mode)
}

func TestLoadDotEnv(t *testing.T) {
	t.Cleanup(func() { _ = os.Unsetenv("AUTHCTL_STORAGE__PREFIX") })

	envFile := writeFile(t, ".env", "AUTHCTL_STORAGE__PREFIX=dotenv:\n")

	app, err := config.Load(
		config.WithDefaults(memoryDefaults()),
		config.WithEnvFiles(envFile, filepath.Join(t.TempDir(), "missing.env")),
	)
	require.NoError(t, err)
	assert.Equal(t, "dotenv:", app.Storage.Prefix)
}

func TestLoadJSONAndTOML(t *testing.T) {
	jsonPath := writeFile(t, "authctl.json", `{"client": {"landing_route": "Payments"}}`)
	app, err := config.Load(config.WithDefaults(memoryDefaults()), config.WithEnvFiles(), config.WithFile(jsonPath))
	require.NoError(t, err)
	assert.Equal(t, "Payments", app.Client.LandingRoute)

	tomlPath := writeFile(t, "authctl.toml", "[client.keys]\ntoken = \"bearer\"\n")
	app, err = config.Load(config.WithDefaults(memoryDefaults()), config.WithEnvFiles(), config.WithFile(tomlPath))
	require.NoError(t, err)
	assert.Equal(t, "bearer", app.Client.Keys.Token)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		file    string
	}{
		{name: "bad mode", file: "a.yaml", content: "client:\n  mode: carrier-pigeon\n"},
		{name: "bad driver", file: "b.yaml", content: "storage:\n  driver: floppy\n"},
		{name: "redis without dsn", file: "c.yaml", content: "storage:\n  driver: redis\n  dsn: \"\"\n"},
		{name: "unknown extension", file: "d.ini", content: "x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := config.Load(config.WithDefaults(memoryDefaults()), config.WithEnvFiles(), config.WithFile(path))
			assert.Error(t, err)
		})
	}
}

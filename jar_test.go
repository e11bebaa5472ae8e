package authclient_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func cookieNames(cookies []*http.Cookie) []string {
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, c.Name)
	}
	return out
}

func TestPersistentJarSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	login := mustURL(t, "http://127.0.0.1:8080/api/login")

	jar, err := authclient.NewPersistentJar(ctx, storage, "cookies", authclient.WithJarLogger(authclient.NopLogger()))
	require.NoError(t, err)

	jar.SetCookies(login, []*http.Cookie{
		{Name: "access_token", Value: "A", Path: "/", MaxAge: 900},
		{Name: "refresh_token", Value: "R", Path: "/api/refresh", Expires: time.Now().Add(time.Hour)},
	})
	assert.Equal(t, 2, jar.Len())

	raw, ok, err := storage.Get(ctx, "cookies")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "refresh_token")

	restored, err := authclient.NewPersistentJar(ctx, storage, "cookies", authclient.WithJarLogger(authclient.NopLogger()))
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())

	assert.Equal(t, []string{"access_token"}, cookieNames(restored.Cookies(mustURL(t, "http://127.0.0.1:8080/api/status"))))
	assert.ElementsMatch(t, []string{"access_token", "refresh_token"},
		cookieNames(restored.Cookies(mustURL(t, "http://127.0.0.1:8080/api/refresh"))))
}

func TestPersistentJarDropsExpired(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	now := time.Now()
	u := mustURL(t, "http://127.0.0.1:8080/api/login")

	jar, err := authclient.NewPersistentJar(ctx, storage, "cookies",
		authclient.WithJarLogger(authclient.NopLogger()),
		authclient.WithJarClock(func() time.Time { return now }))
	require.NoError(t, err)

	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "A", Path: "/", Expires: now.Add(time.Minute)}})
	require.Equal(t, 1, jar.Len())

	later, err := authclient.NewPersistentJar(ctx, storage, "cookies",
		authclient.WithJarLogger(authclient.NopLogger()),
		authclient.WithJarClock(func() time.Time { return now.Add(time.Hour) }))
	require.NoError(t, err)
	assert.Equal(t, 0, later.Len())
}

func TestPersistentJarDeletion(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	u := mustURL(t, "http://127.0.0.1:8080/api/logout")

	jar, err := authclient.NewPersistentJar(ctx, storage, "cookies", authclient.WithJarLogger(authclient.NopLogger()))
	require.NoError(t, err)

	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "A", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Path: "/", MaxAge: -1}})

	assert.Equal(t, 0, jar.Len())
	_, ok, err := storage.Get(ctx, "cookies")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistentJarClear(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	u := mustURL(t, "http://127.0.0.1:8080/api/login")

	jar, err := authclient.NewPersistentJar(ctx, storage, "cookies", authclient.WithJarLogger(authclient.NopLogger()))
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "A", Path: "/"}})

	require.NoError(t, jar.Clear(ctx))

	assert.Empty(t, jar.Cookies(u))
	_, ok, err := storage.Get(ctx, "cookies")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistentJarIgnoresCorruptState(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	require.NoError(t, storage.Set(ctx, "cookies", "{not json"))

	jar, err := authclient.NewPersistentJar(ctx, storage, "cookies", authclient.WithJarLogger(authclient.NopLogger()))
	require.NoError(t, err)
	assert.Equal(t, 0, jar.Len())
}

func TestPersistentJarClearWinsOverInflightWrite(t *testing.T) {
	ctx := context.Background()
	storage := newGatedStorage(nil)
	t.Cleanup(storage.open)
	u := mustURL(t, "http://127.0.0.1:8080/api/login")

	jar, err := authclient.NewPersistentJar(ctx, storage, "cookies", authclient.WithJarLogger(authclient.NopLogger()))
	require.NoError(t, err)

	setDone := make(chan struct{})
	go func() {
		defer close(setDone)
		jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "A", Path: "/"}})
	}()

	select {
	case <-storage.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("cookie write never reached storage")
	}

	cleared := make(chan error, 1)
	go func() { cleared <- jar.Clear(ctx) }()

	require.Eventually(t, func() bool { return jar.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	storage.open()

	<-setDone
	require.NoError(t, <-cleared)

	_, ok, err := storage.Get(ctx, "cookies")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := authclient.NewPersistentJar(ctx, storage, "cookies", authclient.WithJarLogger(authclient.NopLogger()))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Len())
	assert.Empty(t, again.Cookies(u))
}

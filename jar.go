package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var _ http.CookieJar = (*PersistentJar)(nil)

// PersistentJar is a cookie jar that mirrors its cookies into Storage so a
// cookie session survives process restarts.
type PersistentJar struct {
	mu        sync.Mutex
	// persistMu serializes storage writes with Clear
	persistMu sync.Mutex
	inner     *cookiejar.Jar
	storage   Storage
	key       string
	entries   map[string]storedCookie
	logger    Logger
	now       func() time.Time
}

type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

func (s storedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		Domain:   s.Domain,
		Expires:  s.Expires,
		Secure:   s.Secure,
		HttpOnly: s.HTTPOnly,
	}
}

// JarOption customizes PersistentJar construction.
type JarOption func(*PersistentJar)

// WithJarLogger overrides the logger used for storage failures.
func WithJarLogger(logger Logger) JarOption {
	return func(j *PersistentJar) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithJarClock injects a custom clock (useful for tests).
func WithJarClock(clock func() time.Time) JarOption {
	return func(j *PersistentJar) {
		if clock != nil {
			j.now = clock
		}
	}
}

// NewPersistentJar builds a jar and restores cookies saved under key.
func NewPersistentJar(ctx context.Context, storage Storage, key string, opts ...JarOption) (*PersistentJar, error) {
	if storage == nil {
		return nil, errors.New("persistent jar requires storage")
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}

	j := &PersistentJar{
		inner:   inner,
		storage: storage,
		key:     key,
		entries: map[string]storedCookie{},
		logger:  defLogger{},
		now:     time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}

	if err := j.restore(ctx); err != nil {
		return nil, err
	}

	return j, nil
}

// SetCookies implements http.CookieJar
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	j.inner.SetCookies(u, cookies)

	now := j.now()
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
	for _, c := range cookies {
		if c == nil {
			continue
		}

		id := u.Host + "|" + c.Domain + "|" + c.Path + "|" + c.Name
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.entries, id)
			continue
		}

		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		j.entries[id] = storedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
	}

	j.mu.Unlock()

	j.persistMu.Lock()
	defer j.persistMu.Unlock()

	// snapshot under persistMu so a concurrent Clear or a newer write is never overwritten
	j.mu.Lock()
	snapshot := j.snapshot()
	j.mu.Unlock()

	j.persist(snapshot)
}

// Cookies implements http.CookieJar
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Len returns the number of tracked cookies
func (j *PersistentJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Clear drops every cookie and the persisted copy
func (j *PersistentJar) Clear(ctx context.Context) error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return errors.Wrap(err, "create cookie jar")
	}

	j.mu.Lock()
	j.inner = inner
	j.entries = map[string]storedCookie{}
	j.mu.Unlock()

	j.persistMu.Lock()
	defer j.persistMu.Unlock()

	if err := j.storage.Delete(ctx, j.key); err != nil {
		return errors.Wrap(err, "delete persisted cookies")
	}
	return nil
}

func (j *PersistentJar) restore(ctx context.Context) error {
	raw, ok, err := j.storage.Get(ctx, j.key)
	if err != nil {
		return errors.Wrap(err, "load persisted cookies")
	}
	if !ok || raw == "" {
		return nil
	}

	var saved []storedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		j.logger.Warn("discarding unreadable persisted cookies", "error", err)
		return nil
	}

	now := j.now()
	for _, sc := range saved {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}

		u, err := url.Parse(sc.URL)
		if err != nil {
			continue
		}

		j.inner.SetCookies(u, []*http.Cookie{sc.cookie()})
		j.entries[u.Host+"|"+sc.Domain+"|"+sc.Path+"|"+sc.Name] = sc
	}

	return nil
}

func (j *PersistentJar) snapshot() []storedCookie {
	out := make([]storedCookie, 0, len(j.entries))
	for _, sc := range j.entries {
		out = append(out, sc)
	}
	return out
}

func (j *PersistentJar) persist(cookies []storedCookie) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(cookies) == 0 {
		if err := j.storage.Delete(ctx, j.key); err != nil {
			j.logger.Error("failed to delete persisted cookies", "error", err)
		}
		return
	}

	raw, err := json.Marshal(cookies)
	if err != nil {
		j.logger.Error("failed to encode cookies", "error", err)
		return
	}

	if err := j.storage.Set(ctx, j.key, string(raw)); err != nil {
		j.logger.Error("failed to persist cookies", "error", err)
	}
}

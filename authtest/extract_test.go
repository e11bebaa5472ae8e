package authtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoToken(lookup string) *fiber.App {
	from := extractors(lookup, "Bearer")
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		raw, err := extractToken(c, from)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendString(raw)
	})
	return app
}

func TestExtractors(t *testing.T) {
	cases := []struct {
		name   string
		lookup string
		setup  func(r *http.Request)
		want   string
	}{
		{
			name:   "bearer header",
			lookup: tokenLookup(authclient.TransportToken),
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") },
			want:   "abc",
		},
		{
			name:   "scheme is case insensitive",
			lookup: "header:Authorization",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") },
			want:   "abc",
		},
		{
			name:   "wrong scheme",
			lookup: "header:Authorization",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		},
		{
			name:   "cookie",
			lookup: tokenLookup(authclient.TransportCookie),
			setup:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: "jwt"}) },
			want:   "jwt",
		},
		{
			name:   "falls through to the next source",
			lookup: "header:Authorization, query:token",
			setup:  func(r *http.Request) { r.URL.RawQuery = "token=q" },
			want:   "q",
		},
		{
			name:   "nothing found",
			lookup: "cookie:" + AccessCookie,
			setup:  func(*http.Request) {},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)

			resp, err := echoToken(tc.lookup).Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			if tc.want == "" {
				assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
				return
			}
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(body))
		})
	}
}

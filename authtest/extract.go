package authtest

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-client"
	"github.com/pkg/errors"
)

var errTokenMissing = errors.New("missing or malformed token")

// extractor pulls a raw token out of a request
type extractor func(c *fiber.Ctx) (string, error)

// tokenLookup returns where the fake backend reads access tokens for mode
func tokenLookup(mode authclient.TransportMode) string {
	if mode == authclient.TransportCookie {
		return "cookie:" + AccessCookie
	}
	return "header:" + fiber.HeaderAuthorization
}

// extractors parses a lookup such as "header:Authorization,cookie:access_token"
func extractors(lookup, scheme string) []extractor {
	var out []extractor
	for _, part := range strings.Split(lookup, ",") {
		source, name, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)

		switch strings.TrimSpace(source) {
		case "header":
			out = append(out, fromHeader(name, scheme))
		case "cookie":
			out = append(out, fromCookie(name))
		case "query":
			out = append(out, fromQuery(name))
		}
	}
	return out
}

func fromHeader(header, scheme string) extractor {
	return func(c *fiber.Ctx) (string, error) {
		v := c.Get(header)
		l := len(scheme)
		if len(v) > l+1 && strings.EqualFold(v[:l], scheme) && v[l] == ' ' {
			return strings.TrimSpace(v[l:]), nil
		}
		return "", errTokenMissing
	}
}

func fromCookie(name string) extractor {
	return func(c *fiber.Ctx) (string, error) {
		if v := c.Cookies(name); v != "" {
			return v, nil
		}
		return "", errTokenMissing
	}
}

func fromQuery(name string) extractor {
	return func(c *fiber.Ctx) (string, error) {
		if v := c.Query(name); v != "" {
			return v, nil
		}
		return "", errTokenMissing
	}
}

func extractToken(c *fiber.Ctx, from []extractor) (string, error) {
	for _, fn := range from {
		if raw, err := fn(c); err == nil {
			return raw, nil
		}
	}
	return "", errTokenMissing
}

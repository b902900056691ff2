package transport

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/nimbus/internal/model"
	"github.com/beanbocchi/nimbus/pkg/auth"
)

const (
	ctxIdentity   = "identity"
	ctxCollection = "collection"
)

// resolveHost records the collection a request addresses through its Host
// header. The bare domain addresses the account.
func resolveHost(domain string) echo.MiddlewareFunc {
	suffix := "." + domain
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			host := c.Request().Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			host = strings.ToLower(host)

			switch {
			case host == domain:
			case strings.HasSuffix(host, suffix):
				c.Set(ctxCollection, strings.TrimSuffix(host, suffix))
			default:
				return writeError(c, model.ErrHost.Fmt(host, domain))
			}
			return next(c)
		}
	}
}

// authenticate verifies the request signature against the configured users.
func authenticate(opts Options) echo.MiddlewareFunc {
	users := make(map[string]auth.Identity, len(opts.Users))
	for _, user := range opts.Users {
		users[user.AuthKeyID] = user
	}
	lookup := func(keyID string) (auth.Identity, bool) {
		id, ok := users[keyID]
		return id, ok
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := auth.Verify(c.Request(), lookup, opts.ClockSkew, opts.Now())
			if err != nil {
				return writeError(c, model.ErrUnauthorized.Fmt(err.Error()))
			}
			c.Set(ctxIdentity, id)
			return next(c)
		}
	}
}

func identity(c echo.Context) auth.Identity {
	id, _ := c.Get(ctxIdentity).(auth.Identity)
	return id
}

// collectionName returns the collection named by the Host header, failing for
// requests sent to the bare domain.
func collectionName(c echo.Context) (string, error) {
	name, _ := c.Get(ctxCollection).(string)
	if name == "" {
		return "", model.ErrHost.Fmt(c.Request().Host, "a collection")
	}
	return name, nil
}

// Package handlers holds the route handlers the edge server registers:
// upstream relays, templated relays and static files.
package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/andesco/edgegate/pkg/upstream"
)

// Fetcher is the part of upstream.Client the relay handlers need.
type Fetcher interface {
	Fetch(ctx context.Context, target string, incoming http.Header) (*upstream.Response, error)
	Allowed(host string) bool
}

// requestHeader converts the fiber request headers to an http.Header.
func requestHeader(c *fiber.Ctx) http.Header {
	headers := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})
	return headers
}

// queryValues returns the request query string, keeping repeated keys and
// their order.
func queryValues(c *fiber.Ctx) url.Values {
	values := make(url.Values)
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}

// missingParam returns the first name in required that has no value in q.
func missingParam(q url.Values, required []string) (string, bool) {
	for _, name := range required {
		if q.Get(name) == "" {
			return name, true
		}
	}
	return "", false
}

func sendText(c *fiber.Ctx, code int, msg string) error {
	c.Status(code)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	return c.SendString(msg)
}

// sendEmpty writes code with a text/plain content type and no body.
func sendEmpty(c *fiber.Ctx, code int) error {
	c.Status(code)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	c.Response().ResetBody()
	return nil
}

// upstreamFailed reports whether a fetch error should be handed back to the
// dispatcher instead of being answered here: once the request deadline has
// passed, the dispatcher owns the timeout response.
func upstreamFailed(c *fiber.Ctx) bool {
	return c.UserContext().Err() != nil
}

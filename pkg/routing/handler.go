package routing

import "github.com/gofiber/fiber/v2"

// Handler produces the response for every request whose route normalizes to
// a prefix it was registered under.
//
// route is the raw request URI (path and query), not the normalized prefix.
// Exec owns c until it returns and must have written a complete response when
// it returns nil. Blocking work should use c.UserContext(), which carries the
// dispatcher's deadline.
type Handler interface {
	Exec(route string, c *fiber.Ctx) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(route string, c *fiber.Ctx) error

// Exec calls f(route, c).
func (f HandlerFunc) Exec(route string, c *fiber.Ctx) error {
	return f(route, c)
}

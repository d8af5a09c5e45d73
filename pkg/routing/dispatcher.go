package routing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/andesco/edgegate/pkg/logger"
)

const serverErrorBody = "500 Server Error"

// Observer is told about every request the dispatcher finishes. prefix is
// empty for a lookup miss.
type Observer interface {
	Observe(prefix string, status int, d time.Duration, fault bool)
}

// Dispatcher routes each request to the handler registered for its
// normalized prefix.
type Dispatcher struct {
	table    *Table
	log      *logger.Logger
	timeout  time.Duration
	observer Observer
}

type Option func(*Dispatcher)

func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithTimeout bounds every handler execution. Zero disables the deadline.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(table *Table, opts ...Option) *Dispatcher {
	d := &Dispatcher{table: table, log: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle is the catch-all fiber handler.
func (d *Dispatcher) Handle(c *fiber.Ctx) error {
	start := time.Now()
	route := utils.CopyString(c.OriginalURL())
	prefix := Normalize(route)

	h, ok := d.table.Lookup(prefix)
	if !ok {
		d.log.Debugw("No route", "route", route, "prefix", prefix)
		notFound(c)
		d.observe("", c.Response().StatusCode(), time.Since(start), false)
		return nil
	}

	reqID := c.Get(fiber.HeaderXRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, reqID)
	log := d.log.WithRequestID(reqID).WithFields("prefix", prefix)

	ctx := c.UserContext()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	c.SetUserContext(ctx)

	err := run(h, route, c)
	fault := err != nil
	if err != nil {
		d.fail(ctx, c, log, reqID, route, err)
	}

	status := c.Response().StatusCode()
	elapsed := time.Since(start)
	log.Infow("Request handled",
		"method", c.Method(),
		"route", route,
		"status", status,
		"duration_ms", float64(elapsed.Nanoseconds())/1e6,
	)
	d.observe(prefix, status, elapsed, fault)
	return nil
}

// fail turns a handler error or recovered panic into a complete response.
func (d *Dispatcher) fail(ctx context.Context, c *fiber.Ctx, log *logger.Logger, reqID, route string, err error) {
	code := fiber.StatusInternalServerError
	body := serverErrorBody

	var pe *panicError
	var fe *fiber.Error
	switch {
	case errors.As(err, &pe):
		log.Errorw("Handler panicked", "route", route, "panic", pe.value, "stack", string(pe.stack))
	case errors.As(err, &fe):
		code, body = fe.Code, fe.Message
		log.Warnw("Handler returned error", "route", route, "code", code, "error", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		code, body = fiber.StatusGatewayTimeout, "504 Gateway Timeout"
		log.Errorw("Handler deadline exceeded", "route", route, "error", err)
	default:
		log.Errorw("Handler failed", "route", route, "error", err)
	}

	c.Response().Reset()
	c.Set(fiber.HeaderXRequestID, reqID)
	c.Status(code)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	c.Response().SetBodyString(body)
}

func (d *Dispatcher) observe(prefix string, status int, elapsed time.Duration, fault bool) {
	if d.observer != nil {
		d.observer.Observe(prefix, status, elapsed, fault)
	}
}

type panicError struct {
	value interface{}
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.value)
}

func run(h Handler, route string, c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return h.Exec(route, c)
}

// notFound writes 404, Content-Type text/plain and no body.
func notFound(c *fiber.Ctx) {
	c.Status(fiber.StatusNotFound)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	c.Response().ResetBody()
}

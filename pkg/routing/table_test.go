package routing

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler records every Exec call and answers with a fixed body.
type stubHandler struct {
	name   string
	routes []string
	exec   func(c *fiber.Ctx) error
}

func (s *stubHandler) Exec(route string, c *fiber.Ctx) error {
	s.routes = append(s.routes, route)
	if s.exec != nil {
		return s.exec(c)
	}
	if c == nil {
		return nil
	}
	return c.SendString(s.name)
}

func TestTableRegisterAndLookup(t *testing.T) {
	table := NewTable()
	api, res := &stubHandler{name: "api"}, &stubHandler{name: "res"}

	require.NoError(t, table.Register("/api", api))
	require.NoError(t, table.Register("/res", res))

	h, ok := table.Lookup("/api")
	assert.True(t, ok)
	assert.Same(t, api, h)

	h, ok = table.Lookup("/res")
	assert.True(t, ok)
	assert.Same(t, res, h)

	for _, prefix := range []string{"/nope", "/API", "/ap", "/api/", ""} {
		h, ok = table.Lookup(prefix)
		assert.False(t, ok, prefix)
		assert.Nil(t, h, prefix)
	}
}

func TestTableRejectsBadRegistration(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Register("/api", &stubHandler{}))

	assert.ErrorIs(t, table.Register("", &stubHandler{}), ErrEmptyPrefix)
	assert.ErrorIs(t, table.Register("/preview", nil), ErrNilHandler)
	assert.Equal(t, 1, table.Len())

	_, ok := table.Lookup("/preview")
	assert.False(t, ok)
}

func TestTableFirstMatchWins(t *testing.T) {
	table := NewTable()
	first, second := &stubHandler{name: "first"}, &stubHandler{name: "second"}

	require.NoError(t, table.Register("/api", first))
	require.NoError(t, table.Register("/api", second))

	h, ok := table.Lookup("/api")
	require.True(t, ok)
	assert.Same(t, first, h)
	assert.Equal(t, []string{"/api", "/api"}, table.Prefixes())
}

func TestTableFreeze(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Register("/api", &stubHandler{}))
	table.Freeze()

	assert.ErrorIs(t, table.Register("/res", &stubHandler{}), ErrFrozen)
	assert.Equal(t, 1, table.Len())

	_, ok := table.Lookup("/api")
	assert.True(t, ok)
}

func TestHandlerFunc(t *testing.T) {
	var got string
	h := HandlerFunc(func(route string, _ *fiber.Ctx) error {
		got = route
		return nil
	})
	require.NoError(t, h.Exec("/gameIndex", nil))
	assert.Equal(t, "/gameIndex", got)
}

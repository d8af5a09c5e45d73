package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/andesco/edgegate/pkg/config"
	"github.com/andesco/edgegate/pkg/logger"
	"github.com/andesco/edgegate/pkg/routing"
	"github.com/andesco/edgegate/pkg/upstream"
)

func testClient() *upstream.Client {
	return upstream.New(config.UpstreamConfig{
		Timeout:   5 * time.Second,
		UserAgent: "edgegate-test",
	})
}

// serve registers h under prefix behind a real dispatcher.
func serve(t *testing.T, prefix string, h routing.Handler, opts ...routing.Option) *fiber.App {
	t.Helper()
	table := routing.NewTable()
	require.NoError(t, table.Register(prefix, h))
	table.Freeze()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	opts = append([]routing.Option{routing.WithLogger(logger.Nop())}, opts...)
	app.Use(routing.NewDispatcher(table, opts...).Handle)
	return app
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// slowOrigin answers only once the caller gives up.
func slowOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(origin.Close)
	return origin
}

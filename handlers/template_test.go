package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andesco/edgegate/pkg/config"
	"github.com/andesco/edgegate/pkg/logger"
	"github.com/andesco/edgegate/pkg/routing"
)

const upstreamPage = `<html><head><script src="/game.js"></script></head>
<body><div id="content"><h2>Level 7</h2></div><p>ignored</p>
<script>start(7)</script></body></html>`

const previewTemplate = `<!DOCTYPE html><html><head><title>Preview</title></head>
<body><div id="app"><span>loading</span></div></body></html>`

func writeTemplate(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preview.html")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func previewConfig(t *testing.T, origin string) config.TemplateConfig {
	return config.TemplateConfig{
		Origin:   origin,
		Path:     "/preview",
		Required: []string{"id"},
		File:     writeTemplate(t, previewTemplate),
		Injections: []config.InjectionConfig{
			{Select: "#content", Into: "#app", Mode: "replace"},
			{Select: "script", Into: "body", Mode: "append"},
			{Select: ".missing", Into: "body", Mode: "prepend"},
		},
	}
}

func TestTemplateInjectsUpstreamFragments(t *testing.T) {
	var gotPath, gotID string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotID = r.URL.Path, r.URL.Query().Get("id")
		w.Write([]byte(upstreamPage))
	}))
	defer origin.Close()

	tpl, err := NewTemplate(previewConfig(t, origin.URL), testClient(), logger.Nop())
	require.NoError(t, err)
	app := serve(t, "/preview", tpl)

	resp, body := get(t, app, "/preview?id=7&other=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "/preview", gotPath)
	assert.Equal(t, "7", gotID)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "Preview", doc.Find("title").Text())
	assert.Equal(t, "Level 7", doc.Find("#app #content h2").Text())
	assert.Zero(t, doc.Find("#app span").Length(), "replace drops the placeholder")
	assert.Zero(t, doc.Find("p").Length(), "unselected upstream nodes stay out")
	assert.Equal(t, 2, doc.Find("body > script").Length())
	assert.Contains(t, body, "start(7)")
}

func TestTemplateMissingParameter(t *testing.T) {
	tpl, err := NewTemplate(previewConfig(t, "http://127.0.0.1:1"), testClient(), logger.Nop())
	require.NoError(t, err)
	app := serve(t, "/preview", tpl)

	resp, body := get(t, app, "/preview")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing parameter: id", body)
}

func TestTemplateRelaysUpstreamStatus(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer origin.Close()

	tpl, err := NewTemplate(previewConfig(t, origin.URL), testClient(), logger.Nop())
	require.NoError(t, err)
	app := serve(t, "/preview", tpl)

	resp, body := get(t, app, "/preview?id=404")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, body)
}

func TestTemplateDeadline(t *testing.T) {
	origin := slowOrigin(t)

	tpl, err := NewTemplate(previewConfig(t, origin.URL), testClient(), logger.Nop())
	require.NoError(t, err)
	app := serve(t, "/preview", tpl, routing.WithTimeout(50*time.Millisecond))

	resp, body := get(t, app, "/preview?id=7")
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "504 Gateway Timeout", body)
}

func TestNewTemplateMissingFile(t *testing.T) {
	cfg := previewConfig(t, "http://example.com")
	cfg.File = filepath.Join(t.TempDir(), "nope.html")
	_, err := NewTemplate(cfg, testClient(), logger.Nop())
	assert.ErrorContains(t, err, "failed to read template")
}

package handlers

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"

	"github.com/andesco/edgegate/pkg/config"
	"github.com/andesco/edgegate/pkg/logger"
)

// Template fetches an upstream page, lifts fragments out of it and injects
// them into a local HTML template.
type Template struct {
	target      *url.URL
	required    []string
	forward     []string
	page        string
	contentType string
	injections  []config.InjectionConfig
	client      Fetcher
	log         *logger.Logger
}

func NewTemplate(cfg config.TemplateConfig, client Fetcher, log *logger.Logger) (*Template, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("error parsing template origin '%s': %w", cfg.Origin, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("template origin '%s' must be an absolute URL", cfg.Origin)
	}

	page, err := os.ReadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read template '%s': %w", cfg.File, err)
	}
	if _, err := goquery.NewDocumentFromReader(bytes.NewReader(page)); err != nil {
		return nil, fmt.Errorf("syntax error in template '%s': %w", cfg.File, err)
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = fiber.MIMETextHTMLCharsetUTF8
	}

	// forwarding a required parameter is implied
	forward := append([]string{}, cfg.Forward...)
	for _, name := range cfg.Required {
		if !contains(forward, name) {
			forward = append(forward, name)
		}
	}

	return &Template{
		target:      origin.JoinPath(strings.TrimPrefix(cfg.Path, "/")),
		required:    cfg.Required,
		forward:     forward,
		page:        string(page),
		contentType: contentType,
		injections:  cfg.Injections,
		client:      client,
		log:         log.WithComponent("template"),
	}, nil
}

func (t *Template) Exec(route string, c *fiber.Ctx) error {
	q := queryValues(c)
	if name, missing := missingParam(q, t.required); missing {
		return sendText(c, fiber.StatusBadRequest, "missing parameter: "+name)
	}

	target := t.targetURL(q)
	resp, err := t.client.Fetch(c.UserContext(), target, requestHeader(c))
	if err != nil {
		if upstreamFailed(c) {
			return err
		}
		t.log.Errorw("Upstream fetch failed", "route", route, "target", target, "error", err)
		return sendText(c, fiber.StatusBadGateway, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.log.Warnw("Upstream returned non-success status", "route", route, "target", target, "status", resp.StatusCode)
		return sendEmpty(c, resp.StatusCode)
	}

	html, err := t.render(resp.Body)
	if err != nil {
		t.log.Errorw("Could not render template", "route", route, "target", target, "error", err)
		return sendText(c, fiber.StatusBadGateway, err.Error())
	}

	c.Status(fiber.StatusOK)
	c.Set(fiber.HeaderContentType, t.contentType)
	return c.SendString(html)
}

func (t *Template) targetURL(q url.Values) string {
	u := *t.target
	fwd := make(url.Values)
	for _, name := range t.forward {
		if v, ok := q[name]; ok {
			fwd[name] = v
		}
	}
	u.RawQuery = fwd.Encode()
	return u.String()
}

// render applies every injection to a fresh copy of the template.
func (t *Template) render(upstreamBody []byte) (string, error) {
	src, err := goquery.NewDocumentFromReader(bytes.NewReader(upstreamBody))
	if err != nil {
		return "", fmt.Errorf("error parsing upstream HTML: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(t.page))
	if err != nil {
		return "", fmt.Errorf("error parsing template: %w", err)
	}

	for _, inj := range t.injections {
		fragment, err := outerHTML(src.Find(inj.Select))
		if err != nil {
			return "", fmt.Errorf("error extracting '%s': %w", inj.Select, err)
		}
		if fragment == "" {
			t.log.Debugw("Selector matched nothing upstream", "select", inj.Select)
			continue
		}

		into := doc.Find(inj.Into)
		switch inj.Mode {
		case "prepend":
			into.PrependHtml(fragment)
		case "replace":
			into.SetHtml(fragment)
		default:
			into.AppendHtml(fragment)
		}
	}

	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("error rendering template: %w", err)
	}
	return html, nil
}

// outerHTML concatenates the outer HTML of every node in sel.
func outerHTML(sel *goquery.Selection) (string, error) {
	var b strings.Builder
	var err error
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var h string
		h, err = goquery.OuterHtml(s)
		if err != nil {
			return false
		}
		b.WriteString(h)
		return true
	})
	return b.String(), err
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

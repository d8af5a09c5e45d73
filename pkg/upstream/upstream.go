package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andesco/edgegate/pkg/config"
)

var ErrHostNotAllowed = errors.New("upstream: host not allowed")

// Client fetches pages from upstream origins on behalf of relay handlers.
type Client struct {
	UserAgent    string
	ForwardedFor string
	AllowedHosts []string

	http *http.Client
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func New(cfg config.UpstreamConfig) *Client {
	return &Client{
		UserAgent:    cfg.UserAgent,
		ForwardedFor: cfg.ForwardedFor,
		AllowedHosts: cfg.AllowedHosts,
		http:         &http.Client{Timeout: cfg.Timeout},
	}
}

// Allowed reports whether host may be fetched. An empty allow list permits
// every host; entries match the host exactly or as a parent domain.
func (cl *Client) Allowed(host string) bool {
	if len(cl.AllowedHosts) == 0 {
		return true
	}
	for _, h := range cl.AllowedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Fetch performs a GET on target. incoming is the header of the client
// request being relayed; only its Referer is carried over.
func (cl *Client) Fetch(ctx context.Context, target string, incoming http.Header) (*Response, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("error parsing target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme in target URL '%s'", target)
	}
	if !cl.Allowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building upstream request: %w", err)
	}

	if cl.UserAgent != "" {
		req.Header.Set("User-Agent", cl.UserAgent)
	}
	if cl.ForwardedFor != "" && cl.ForwardedFor != "none" {
		req.Header.Set("X-Forwarded-For", cl.ForwardedFor)
	}
	if referer := incoming.Get("Referer"); referer != "" {
		req.Header.Set("Referer", referer)
	} else {
		req.Header.Set("Referer", u.String())
	}

	resp, err := cl.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading upstream body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Timeout is the per-fetch limit applied by the underlying HTTP client.
func (cl *Client) Timeout() time.Duration {
	return cl.http.Timeout
}

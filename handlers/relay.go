package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/andesco/edgegate/pkg/config"
	"github.com/andesco/edgegate/pkg/logger"
	"github.com/andesco/edgegate/pkg/upstream"
)

// Relay forwards a request to a fixed upstream origin. The action parameter
// names the upstream path; every other query parameter is passed through.
//
//	/api?x=getProjectData&y=http://example.com
//	  -> GET <origin>/getProjectData?y=http://example.com
//
// When a target parameter is configured and present, its value must be an
// absolute http(s) URL whose host the upstream client allows.
type Relay struct {
	origin      *url.URL
	actionParam string
	targetParam string
	required    []string
	client      Fetcher
	log         *logger.Logger
}

func NewRelay(cfg config.RelayConfig, client Fetcher, log *logger.Logger) (*Relay, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("error parsing relay origin '%s': %w", cfg.Origin, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("relay origin '%s' must be an absolute URL", cfg.Origin)
	}

	action := cfg.ActionParam
	if action == "" {
		action = "x"
	}
	required := cfg.Required
	if len(required) == 0 {
		required = []string{action}
	}

	return &Relay{
		origin:      origin,
		actionParam: action,
		targetParam: cfg.TargetParam,
		required:    required,
		client:      client,
		log:         log.WithComponent("relay"),
	}, nil
}

func (r *Relay) Exec(route string, c *fiber.Ctx) error {
	q := queryValues(c)
	if name, missing := missingParam(q, r.required); missing {
		return sendText(c, fiber.StatusBadRequest, "missing parameter: "+name)
	}

	if err := r.checkTarget(q); err != nil {
		if errors.Is(err, upstream.ErrHostNotAllowed) {
			return sendText(c, fiber.StatusForbidden, err.Error())
		}
		return sendText(c, fiber.StatusBadRequest, err.Error())
	}

	target, err := r.target(q)
	if err != nil {
		return sendText(c, fiber.StatusBadRequest, err.Error())
	}
	resp, err := r.client.Fetch(c.UserContext(), target, requestHeader(c))
	if err != nil {
		if upstreamFailed(c) {
			return err
		}
		r.log.Errorw("Upstream fetch failed", "route", route, "target", target, "error", err)
		if errors.Is(err, upstream.ErrHostNotAllowed) {
			return sendText(c, fiber.StatusForbidden, err.Error())
		}
		return sendText(c, fiber.StatusBadGateway, err.Error())
	}

	c.Status(resp.StatusCode)
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}
	return c.Send(resp.Body)
}

// target builds the upstream URL for query q. The action may not contain
// ".." segments, so the result always stays under the origin path.
func (r *Relay) target(q url.Values) (string, error) {
	action := strings.TrimPrefix(q.Get(r.actionParam), "/")
	for _, seg := range strings.Split(action, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid parameter: %s", r.actionParam)
		}
	}
	u := r.origin.JoinPath(action)
	rest := make(url.Values, len(q))
	for k, v := range q {
		if k != r.actionParam {
			rest[k] = v
		}
	}
	u.RawQuery = rest.Encode()
	return u.String(), nil
}

// checkTarget validates the target parameter, if one is configured and set.
func (r *Relay) checkTarget(q url.Values) error {
	if r.targetParam == "" {
		return nil
	}
	raw := q.Get(r.targetParam)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid parameter: %s must be an absolute http(s) URL", r.targetParam)
	}
	if !r.client.Allowed(u.Hostname()) {
		return fmt.Errorf("%w: %s", upstream.ErrHostNotAllowed, u.Hostname())
	}
	return nil
}

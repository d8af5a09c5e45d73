package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Route kinds understood by the bootstrap.
const (
	KindRelay    = "relay"
	KindTemplate = "template"
	KindStatic   = "static"
)

// Config is the whole runtime configuration of the edge server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Routes   []RouteConfig  `yaml:"routes" validate:"dive"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=auto json console"`
	Output     string `yaml:"output" validate:"oneof=stdout stderr file"`
	Filename   string `yaml:"filename" validate:"required_if=Output file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
	Compress   bool   `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address" validate:"required_if=Enabled true"`
	Path    string `yaml:"path" validate:"startswith=/"`
}

// UpstreamConfig shapes every outbound fetch made by relay handlers.
type UpstreamConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	ForwardedFor string        `yaml:"forwarded_for"`
	AllowedHosts []string      `yaml:"allowed_hosts"`
}

// RouteConfig binds one prefix to one handler. Exactly the block matching
// Kind must be set.
type RouteConfig struct {
	Prefix   string          `yaml:"prefix" validate:"required,startswith=/"`
	Kind     string          `yaml:"kind" validate:"required,oneof=relay template static"`
	Relay    *RelayConfig    `yaml:"relay,omitempty"`
	Template *TemplateConfig `yaml:"template,omitempty"`
	Static   *StaticConfig   `yaml:"static,omitempty"`
}

type RelayConfig struct {
	Origin      string   `yaml:"origin" validate:"required,url"`
	ActionParam string   `yaml:"action_param"`
	TargetParam string   `yaml:"target_param"`
	Required    []string `yaml:"required"`
}

type TemplateConfig struct {
	Origin      string            `yaml:"origin" validate:"required,url"`
	Path        string            `yaml:"path"`
	Required    []string          `yaml:"required"`
	Forward     []string          `yaml:"forward"`
	File        string            `yaml:"file" validate:"required"`
	ContentType string            `yaml:"content_type"`
	Injections  []InjectionConfig `yaml:"injections" validate:"min=1,dive"`
}

// InjectionConfig copies the nodes matched by Select in the upstream page
// into the nodes matched by Into in the template. Mode is append (default),
// prepend, or replace, which swaps out the children of Into.
type InjectionConfig struct {
	Select string `yaml:"select" validate:"required"`
	Into   string `yaml:"into" validate:"required"`
	Mode   string `yaml:"mode" validate:"omitempty,oneof=append prepend replace"`
}

type StaticConfig struct {
	Root  string `yaml:"root" validate:"required"`
	Index string `yaml:"index"`
}

// Load reads envFile (if it exists), then the YAML file at path (if set),
// then applies environment overrides and validates the result.
func Load(path, envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file '%s': %w", envFile, err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("syntax error in config file '%s': %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Routes) == 0 {
		cfg.Routes = DefaultRoutes(getenv("UPSTREAM_ORIGIN", "http://localhost:9000"))
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			HandlerTimeout: 20 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Address: ":9090",
			Path:    "/metrics",
		},
		Upstream: UpstreamConfig{
			Timeout:      15 * time.Second,
			UserAgent:    "Mozilla/5.0 (compatible; edgegate/1.0)",
			ForwardedFor: "none",
		},
	}
}

// DefaultRoutes registers /api, /preview, /gameIndex and /res against a
// single upstream origin.
func DefaultRoutes(origin string) []RouteConfig {
	return []RouteConfig{
		{
			Prefix: "/api",
			Kind:   KindRelay,
			Relay: &RelayConfig{
				Origin:      origin,
				ActionParam: "x",
				TargetParam: "y",
				Required:    []string{"x"},
			},
		},
		{
			Prefix: "/preview",
			Kind:   KindTemplate,
			Template: &TemplateConfig{
				Origin:   origin,
				Path:     "/preview",
				Required: []string{"id"},
				Forward:  []string{"id"},
				File:     "templates/preview.html",
				Injections: []InjectionConfig{
					{Select: "#content", Into: "#app", Mode: "replace"},
					{Select: "script", Into: "body", Mode: "append"},
				},
			},
		},
		{
			Prefix: "/gameIndex",
			Kind:   KindTemplate,
			Template: &TemplateConfig{
				Origin:  origin,
				Path:    "/gameIndex",
				Forward: []string{"page", "category"},
				File:    "templates/gameIndex.html",
				Injections: []InjectionConfig{
					{Select: ".game-list", Into: "#games", Mode: "append"},
					{Select: "script", Into: "body", Mode: "append"},
				},
			},
		},
		{
			Prefix: "/res",
			Kind:   KindStatic,
			Static: &StaticConfig{Root: "res", Index: "index.html"},
		},
	}
}

// Validate checks field constraints and that each route carries the block
// its kind needs.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	for i, r := range cfg.Routes {
		var ok bool
		switch r.Kind {
		case KindRelay:
			ok = r.Relay != nil
		case KindTemplate:
			ok = r.Template != nil
		case KindStatic:
			ok = r.Static != nil
		}
		if !ok {
			return fmt.Errorf("route %d (%s): kind %s needs a '%s' block", i, r.Prefix, r.Kind, r.Kind)
		}
	}
	return nil
}

// Address is the host:port the HTTP listener binds.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func applyEnv(cfg *Config) error {
	cfg.Server.Host = getenv("HOST", cfg.Server.Host)
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT '%s': %w", v, err)
		}
		cfg.Server.Port = port
	}
	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format)
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT '%s': %w", v, err)
		}
		cfg.Upstream.Timeout = d
	}
	if v := os.Getenv("ALLOWED_HOSTS"); v != "" {
		cfg.Upstream.AllowedHosts = splitList(v)
	}
	cfg.Upstream.UserAgent = getenv("USER_AGENT", cfg.Upstream.UserAgent)
	cfg.Upstream.ForwardedFor = getenv("X_FORWARDED_FOR", cfg.Upstream.ForwardedFor)
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = v
	}
	return nil
}

// parseTimeout accepts bare seconds ("15") as well as durations ("1m30s").
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

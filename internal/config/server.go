package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load and Validate when a field is unset.
const (
	DefaultRequestTimeout = 120 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultMaxReconnects  = 3
	DefaultReconnectDelay = time.Second
)

// Server describes one MCP server endpoint.
type Server struct {
	// Label is the unique name tools from this server are namespaced under.
	Label string `yaml:"-"`

	// Endpoint is the HTTP(S) URL requests are posted to.
	Endpoint string `yaml:"endpoint"`

	// Headers are attached to every request, typically for authentication.
	// Values are environment-expanded by Load.
	Headers map[string]string `yaml:"headers"`

	// Enabled servers participate in ConnectAll. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// RequestTimeout bounds each in-flight request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ConnectTimeout bounds the connect-and-handshake sequence.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MaxReconnects is the number of reconnect attempts after a drop before
	// the session gives up.
	MaxReconnects int `yaml:"max_reconnects"`

	// ReconnectDelay is the base of the exponential backoff between
	// reconnect attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// IsEnabled reports whether the server should be connected.
func (s *Server) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Validate checks required fields and fills defaults in place.
func (s *Server) Validate() error {
	if s.Label == "" {
		return fmt.Errorf("server label must not be empty")
	}

	// Labels prefix qualified tool names, split at the first dot.
	if strings.Contains(s.Label, ".") {
		return fmt.Errorf("server label %q must not contain dots", s.Label)
	}

	if s.Endpoint == "" {
		return fmt.Errorf("server %q: endpoint must not be empty", s.Label)
	}

	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("server %q: invalid endpoint: %w", s.Label, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server %q: endpoint scheme must be http or https, got %q", s.Label, u.Scheme)
	}

	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}

	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = DefaultConnectTimeout
	}

	if s.MaxReconnects < 0 {
		return fmt.Errorf("server %q: max_reconnects must not be negative", s.Label)
	}

	if s.MaxReconnects == 0 {
		s.MaxReconnects = DefaultMaxReconnects
	}

	if s.ReconnectDelay <= 0 {
		s.ReconnectDelay = DefaultReconnectDelay
	}

	return nil
}

// File is the on-disk layout of a client configuration file.
type File struct {
	Servers  map[string]*Server `yaml:"servers"`
	LogLevel string             `yaml:"log_level"`
}

// Load reads a YAML configuration file, expands ${VAR} references from the
// environment, and validates every server entry. Unknown variables expand
// to the empty string.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.Expand(string(raw), os.Getenv)

	var cfg File
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("config %s: no servers defined", path)
	}

	for label, srv := range cfg.Servers {
		if srv == nil {
			return nil, fmt.Errorf("config %s: server %q has no body", path, label)
		}

		srv.Label = label
		if err := srv.Validate(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	return &cfg, nil
}

// EnabledServers returns the enabled server entries. Order is not
// guaranteed; callers needing determinism should sort by label.
func (f *File) EnabledServers() []*Server {
	out := make([]*Server, 0, len(f.Servers))
	for _, srv := range f.Servers {
		if srv.IsEnabled() {
			out = append(out, srv)
		}
	}

	return out
}

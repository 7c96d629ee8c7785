package mcpclient

import (
	"log/slog"

	"github.com/hivedev/mcp-client-go/internal/config"
)

// ServerConfig describes one MCP server endpoint.
type ServerConfig = config.Server

// Config is the on-disk layout of a client configuration file.
type Config = config.File

// LoadConfig reads a YAML configuration file, expands ${VAR} references
// from the environment, and validates every server entry.
//
// Example file:
//
//	log_level: debug
//	servers:
//	  docs:
//	    endpoint: https://docs.example.com/mcp
//	    headers:
//	      Authorization: Bearer ${DOCS_TOKEN}
//	    request_timeout: 30s
//	  search:
//	    endpoint: https://search.example.com/mcp
//	    enabled: false
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseLogLevel maps a config string to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	return config.ParseLogLevel(s)
}

package mcpclient

import (
	"context"
	"fmt"
)

// WithManager manages manager lifecycle with automatic cleanup.
//
// This helper loads the configuration file, registers every enabled server,
// connects them all, executes the callback, and ensures proper cleanup via
// Close() when done.
//
// The callback receives a connected Manager that is ready for use.
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := mcpclient.WithManager(ctx, "servers.yaml", func(mgr mcpclient.Manager) error {
//	    result, err := mgr.Invoke(ctx, "docs.search", map[string]any{"query": "go"})
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(result.Text())
//	    return nil
//	},
//	    mcpclient.WithLogger(log),
//	)
func WithManager(ctx context.Context, configPath string, fn func(Manager) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)
	log := options.logger

	mgr, err := NewManagerFromConfig(configPath, opts...)
	if err != nil {
		return fmt.Errorf("failed to build manager: %w", err)
	}

	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			log.Warn("failed to close manager", "error", closeErr)
		}
	}()

	if _, err := mgr.ConnectAll(ctx); err != nil {
		return fmt.Errorf("failed to connect servers: %w", err)
	}

	return fn(mgr)
}

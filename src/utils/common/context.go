package common

import (
	"context"

	"github.com/evmarchive/archiver/src/utils/config"
)

type contextKey int

const (
	// Key under which the global configuration is stored in the context
	ContextConfig contextKey = iota
)

// Attaches the configuration to the context
func SetConfig(ctx context.Context, config *config.Config) context.Context {
	return context.WithValue(ctx, ContextConfig, config)
}

// Gets the configuration from the context, panics if it's not there
func GetConfig(ctx context.Context) *config.Config {
	return ctx.Value(ContextConfig).(*config.Config)
}

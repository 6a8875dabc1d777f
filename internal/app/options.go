package app

import (
	"log/slog"
)

// Option is a functional option for configuring App initialization
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the application
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

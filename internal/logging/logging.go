// Package logging builds the application logger. The configured level
// can be overridden through SPATIALCHECK_LOG_LEVEL.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/bsaid97/go-spatial-check/pkg/config"
)

// New builds a named logger from the log configuration. An invalid
// level in the environment override is ignored in favor of the
// configured one.
func New(cfg config.LogConfig, name string) hclog.Logger {
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	if env := os.Getenv("SPATIALCHECK_LOG_LEVEL"); env != "" {
		if l := hclog.LevelFromString(env); l != hclog.NoLevel {
			level = l
		}
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		Output:      os.Stderr,
		Level:       level,
		DisableTime: true,
	})
}

package logging

import (
	"io"
	"log"

	"github.com/juju/lumberjack/v2"

	"fastrm/internal/config"
)

// New creates the run logger. Without a configured log file the logger
// discards everything so stderr stays reserved for diagnostics and errors.
func New() *log.Logger {
	return NewWithConfig(nil)
}

// NewWithConfig creates a logger writing to the configured file, rotated by size
func NewWithConfig(cfg *config.Config) *log.Logger {
	if cfg == nil || cfg.Log.File == "" {
		return log.New(io.Discard, "", log.LstdFlags|log.Lmicroseconds)
	}

	w := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

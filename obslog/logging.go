// Package obslog provides configurable zap logger creation for the
// collection core, matching the style of the surrounding client
// libraries this service was built alongside.
package obslog

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the logger's output encoding.
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJSON     Style = "json"
	StyleNoop     Style = "noop"
)

// Config configures NewLogger.
type Config struct {
	Style Style
	Level zapcore.Level
}

// NewLogger creates a zap logger based on the Config settings.
// If cfg is nil, defaults to terminal style at info level.
func NewLogger(cfg *Config) *zap.Logger {
	style := StyleTerminal
	level := zapcore.InfoLevel

	if cfg != nil {
		if cfg.Style != "" {
			style = cfg.Style
		}
		level = cfg.Level
	}

	var (
		logger *zap.Logger
		err    error
	)

	switch style {
	case StyleNoop:
		logger = zap.NewNop()
	case StyleJSON:
		c := zap.NewProductionConfig()
		c.Level = zap.NewAtomicLevelAt(level)
		logger, err = c.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	case StyleTerminal:
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(level)
		logger, err = c.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	default:
		log.Fatalf("invalid logging style %q: must be one of terminal, json, noop", style)
	}

	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	return logger
}

// Collection returns a child logger scoped to a single collection,
// the field set every indexing/query/alter log line carries.
func Collection(base *zap.Logger, name string, collectionID uint32) *zap.Logger {
	return base.With(zap.String("collection", name), zap.Uint32("collection_id", collectionID))
}

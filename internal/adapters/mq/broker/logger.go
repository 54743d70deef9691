// Package broker builds the Watermill pub/sub backends used for book events.
package broker

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/okian/booklookup/pkg/logger"
)

// LoggerAdapter routes Watermill's internal logging into the service logger.
type LoggerAdapter struct {
	log    logger.Logger
	fields watermill.LogFields
}

// NewLoggerAdapter wraps l so it satisfies watermill.LoggerAdapter.
func NewLoggerAdapter(l logger.Logger) *LoggerAdapter {
	if l == nil {
		l = logger.Get()
	}
	return &LoggerAdapter{log: l.Named("watermill")}
}

func (a *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	fs := a.convert(fields)
	fs = append(fs, logger.Error(err))
	a.log.Error(context.Background(), msg, fs...)
}

func (a *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(context.Background(), msg, a.convert(fields)...)
}

func (a *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, a.convert(fields)...)
}

// Trace maps onto debug; slog has no trace level.
func (a *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, a.convert(fields)...)
}

func (a *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{log: a.log, fields: a.fields.Add(fields)}
}

func (a *LoggerAdapter) convert(fields watermill.LogFields) []logger.Field {
	all := a.fields.Add(fields)
	out := make([]logger.Field, 0, len(all))
	for k, v := range all {
		out = append(out, logger.Any(k, v))
	}
	return out
}

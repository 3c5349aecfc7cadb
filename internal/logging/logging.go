// Package logging builds the process logger and turns bus events into log
// entries.
package logging

import (
	"context"
	"fmt"
	"strings"

	eventbus "github.com/hanpama/fedgraph/internal/eventbus"
	events "github.com/hanpama/fedgraph/internal/events"
	reqid "github.com/hanpama/fedgraph/internal/reqid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Level is debug, info, warn or error.
	Level string
	// Format is json or console.
	Format string
}

// New builds a sampled logger writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	encoding := cfg.Format
	if encoding == "" {
		encoding = "json"
	}
	encoder := zap.NewProductionEncoderConfig()
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding,
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return logger, nil
}

// Subscribe logs HTTP requests, GraphQL operations, entity backend calls and
// entity resolution failures. Entries carry the request id when the event
// context has one. The returned func removes the handlers.
func Subscribe(logger *zap.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			logger.Info("http request", withRequest(ctx,
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Duration("duration", e.Duration),
			)...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			fields := withRequest(ctx,
				zap.String("operation", e.OperationName),
				zap.String("operation_type", e.OperationType),
				zap.Int("errors", len(e.Errors)),
				zap.Duration("duration", e.Duration),
			)
			if len(e.Errors) > 0 {
				logger.Warn("graphql operation failed", append(fields, zap.Errors("error", e.Errors))...)
				return
			}
			logger.Debug("graphql operation", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GRPCClientFinish) {
			fields := withRequest(ctx,
				zap.String("service", e.Service),
				zap.String("method", e.Method),
				zap.String("target", e.Target),
				zap.Stringer("code", e.Code),
				zap.Duration("duration", e.Duration),
			)
			if e.Err != nil {
				logger.Warn("entity backend call failed", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("entity backend call", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.EntityBatchFinish) {
			logger.Debug("entities resolved", withRequest(ctx,
				zap.Int("size", e.Size),
				zap.Int("failed", e.Failed),
				zap.Duration("duration", e.Duration),
			)...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.EntityResolveFinish) {
			if e.Err == nil {
				return
			}
			logger.Warn("entity resolution failed", withRequest(ctx,
				zap.String("typename", e.TypeName),
				zap.Int("index", e.Index),
				zap.Duration("duration", e.Duration),
				zap.Error(e.Err),
			)...)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func withRequest(ctx context.Context, fields ...zap.Field) []zap.Field {
	if rid, ok := reqid.FromContext(ctx); ok {
		return append([]zap.Field{zap.Int64("request_id", rid)}, fields...)
	}
	return fields
}

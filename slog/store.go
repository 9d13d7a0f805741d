package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/modharvest"
)

// Ensure the decorators implement their interfaces.
var (
	_ modharvest.KeyValueStore = (*LoggingKeyValueStore)(nil)
	_ modharvest.Sink          = (*LoggingSink)(nil)
)

// LoggingKeyValueStore wraps a KeyValueStore with debug logging.
type LoggingKeyValueStore struct {
	next   modharvest.KeyValueStore
	logger *slog.Logger
}

// NewLoggingKeyValueStore creates a new LoggingKeyValueStore.
func NewLoggingKeyValueStore(next modharvest.KeyValueStore, logger *slog.Logger) *LoggingKeyValueStore {
	return &LoggingKeyValueStore{next: next, logger: logger}
}

// Get delegates to the wrapped store and logs the operation.
func (s *LoggingKeyValueStore) Get(ctx context.Context, key string) (value []byte, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("kv get",
			"key", key,
			"bytes", len(value),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Get(ctx, key)
}

// Set delegates to the wrapped store and logs the operation.
func (s *LoggingKeyValueStore) Set(ctx context.Context, key string, value []byte) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("kv set",
			"key", key,
			"bytes", len(value),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Set(ctx, key, value)
}

// Delete delegates to the wrapped store and logs the operation.
func (s *LoggingKeyValueStore) Delete(ctx context.Context, key string) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("kv delete",
			"key", key,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Delete(ctx, key)
}

// LoggingSink wraps a Sink with logging.
type LoggingSink struct {
	name   string
	next   modharvest.Sink
	logger *slog.Logger
}

// NewLoggingSink creates a new LoggingSink. The name identifies the sink
// in log output.
func NewLoggingSink(name string, next modharvest.Sink, logger *slog.Logger) *LoggingSink {
	return &LoggingSink{name: name, next: next, logger: logger}
}

// Emit delegates to the wrapped sink and logs the record count.
func (s *LoggingSink) Emit(ctx context.Context, out *modharvest.Output) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("emit",
			"sink", s.name,
			"records", len(out.Records),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Emit(ctx, out)
}

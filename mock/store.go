package mock

import (
	"context"

	"github.com/fwojciec/modharvest"
)

// Compile-time interface verification.
var (
	_ modharvest.KeyValueStore = (*KeyValueStore)(nil)
	_ modharvest.Sink          = (*Sink)(nil)
)

// KeyValueStore is a mock implementation of modharvest.KeyValueStore.
type KeyValueStore struct {
	GetFn    func(ctx context.Context, key string) ([]byte, error)
	SetFn    func(ctx context.Context, key string, value []byte) error
	DeleteFn func(ctx context.Context, key string) error
}

func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.GetFn(ctx, key)
}

func (s *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetFn(ctx, key, value)
}

func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	return s.DeleteFn(ctx, key)
}

// Sink is a mock implementation of modharvest.Sink.
type Sink struct {
	EmitFn func(ctx context.Context, out *modharvest.Output) error
}

func (s *Sink) Emit(ctx context.Context, out *modharvest.Output) error {
	return s.EmitFn(ctx, out)
}

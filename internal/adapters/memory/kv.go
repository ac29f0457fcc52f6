package memory

import (
	"context"
	"sync"
)

// KV is an in-process key-value store.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewKV() *KV { return &KV{data: make(map[string]string)} }

func (kv *KV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *KV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return nil
}

// Scoped returns a view of kv whose keys are prefixed with scope, so one
// store can hold preferences for many visitors.
func (kv *KV) Scoped(scope string) *ScopedKV { return &ScopedKV{kv: kv, prefix: scope + "/"} }

type ScopedKV struct {
	kv     *KV
	prefix string
}

func (s *ScopedKV) Get(ctx context.Context, key string) (string, bool, error) {
	return s.kv.Get(ctx, s.prefix+key)
}

func (s *ScopedKV) Set(ctx context.Context, key, value string) error {
	return s.kv.Set(ctx, s.prefix+key, value)
}

package theme

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybergrid/internal/adapters/memory"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errors.New("down") }
func (failingStore) Set(context.Context, string, string) error         { return errors.New("down") }

func TestLoadDefaultsToLight(t *testing.T) {
	svc := New()
	dark, err := svc.Load(context.Background(), memory.NewKV())
	require.NoError(t, err)
	assert.False(t, dark)
}

func TestLoadOnlyAcceptsLiteralTrue(t *testing.T) {
	ctx := context.Background()
	svc := New()
	for value, want := range map[string]bool{"true": true, "false": false, "TRUE": false, "1": false, "": false} {
		kv := memory.NewKV()
		require.NoError(t, kv.Set(ctx, Key, value))
		got, err := svc.Load(ctx, kv)
		require.NoError(t, err)
		assert.Equal(t, want, got, "value %q", value)
	}
}

func TestToggleWritesMatchingValue(t *testing.T) {
	ctx := context.Background()
	svc := New()
	kv := memory.NewKV()

	dark := false
	for i := 0; i < 3; i++ {
		next, err := svc.Toggle(ctx, kv, dark)
		require.NoError(t, err)
		assert.Equal(t, !dark, next)

		stored, found, err := kv.Get(ctx, Key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Contains(t, []string{"true", "false"}, stored)

		reloaded, err := svc.Load(ctx, kv)
		require.NoError(t, err)
		assert.Equal(t, next, reloaded)
		dark = next
	}
}

func TestToggleKeepsCurrentOnStoreFailure(t *testing.T) {
	svc := New()
	got, err := svc.Toggle(context.Background(), failingStore{}, true)
	assert.Error(t, err)
	assert.True(t, got)

	_, err = svc.Load(context.Background(), failingStore{})
	assert.Error(t, err)
}

func TestWidgetTheme(t *testing.T) {
	assert.Equal(t, "dark", WidgetTheme(true))
	assert.Equal(t, "light", WidgetTheme(false))
}

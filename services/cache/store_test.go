package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.Set(ctx, "k1", []byte("v1"), 0))

	val, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), val)

	_, ok, err = s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.Set(ctx, "k1", []byte("first"), 0))
	require.NoError(t, s.Set(ctx, "k1", []byte("second"), 0))

	val, ok, _ := s.Get(ctx, "k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("second"), val)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond))

	_, ok, _ := s.Get(ctx, "k1")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok, _ = s.Get(ctx, "k1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Set(ctx, "k1", []byte("v1"), 0))
	require.NoError(t, s.Set(ctx, "k2", []byte("v2"), 0))

	// Touch k1 so k2 becomes least recently used.
	_, _, _ = s.Get(ctx, "k1")

	require.NoError(t, s.Set(ctx, "k3", []byte("v3"), 0))

	_, ok, _ := s.Get(ctx, "k2")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok, _ = s.Get(ctx, "k1")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "k3")
	assert.True(t, ok)
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(t, s.Set(ctx, "k1", []byte("v1"), 0))
	require.NoError(t, s.Set(ctx, "k2", []byte("v2"), 0))

	require.NoError(t, s.Delete(ctx, "k1"))
	require.NoError(t, s.Delete(ctx, "k1")) // deleting twice is fine
	_, ok, _ := s.Get(ctx, "k1")
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
	_, ok, _ = s.Get(ctx, "k2")
	assert.False(t, ok)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%10)
			_ = s.Set(ctx, key, []byte("v"), 0)
			_, _, _ = s.Get(ctx, key)
			if n%7 == 0 {
				_ = s.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	// Writes to the same key must never corrupt the store.
	for i := 0; i < 10; i++ {
		val, ok, err := s.Get(ctx, fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		if ok {
			assert.Equal(t, []byte("v"), val)
		}
	}
}

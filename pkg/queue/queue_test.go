package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushBlocksWhenFull(t *testing.T) {
	q := New[int](2)
	ctx := context.Background()

	require.True(t, q.Push(ctx, 1))
	require.True(t, q.Push(ctx, 2))

	pushed := make(chan bool, 1)
	go func() {
		pushed <- q.Push(ctx, 3)
	}()

	select {
	case <-pushed:
		t.Fatal("Push returned before a slot was freed")
	case <-time.After(50 * time.Millisecond):
	}

	v, ok := q.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case ok := <-pushed:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Push never unblocked after a slot freed up")
	}
}

func TestPopBlocksWhenEmptyAndContextCancel(t *testing.T) {
	q := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

func TestCloseDrainsThenRejectsPush(t *testing.T) {
	q := New[int](2)
	ctx := context.Background()
	require.True(t, q.Push(ctx, 1))
	q.Close()

	assert.False(t, q.Push(ctx, 2))

	v, ok := q.Pop(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = q.Pop(ctx)
	assert.False(t, ok)
}

func TestTryPushNonBlocking(t *testing.T) {
	q := New[int](1)
	assert.True(t, q.TryPush(1))
	assert.False(t, q.TryPush(2))
}

func TestRefCountedReleasesOnce(t *testing.T) {
	var released int
	var mu sync.Mutex
	rc := NewRefCounted("frame", func(string) {
		mu.Lock()
		released++
		mu.Unlock()
	})

	rc.Retain()
	rc.Release()
	mu.Lock()
	assert.Equal(t, 0, released)
	mu.Unlock()

	rc.Release()
	mu.Lock()
	assert.Equal(t, 1, released)
	mu.Unlock()
}

func TestRefCountedDoubleReleasePanics(t *testing.T) {
	rc := NewRefCounted(1, func(int) {})
	rc.Release()
	assert.Panics(t, func() { rc.Release() })
}

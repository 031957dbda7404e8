package starlark

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestThreadPool_GetPut(t *testing.T) {
	pool := NewThreadPool(5, nil)

	thread := pool.Get("test1")
	require.NotNil(t, thread, "Get returned nil")
	assert.Equal(t, "test1", thread.Name, "thread.Name")

	pool.Put(thread)
	assert.Equal(t, 1, pool.Size(), "pool size after put")

	thread2 := pool.Get("test2")
	assert.Equal(t, 0, pool.Size(), "pool size after get")
	assert.Equal(t, "test2", thread2.Name, "thread.Name after reuse")
}

func TestThreadPool_MaxSize(t *testing.T) {
	pool := NewThreadPool(2, nil)

	threads := make([]*starlark.Thread, 3)
	for i := range threads {
		threads[i] = pool.Get("test")
	}
	for _, thread := range threads {
		pool.Put(thread)
	}
	assert.Equal(t, 2, pool.Size(), "pool size should be max (2)")
}

func TestThreadPool_Concurrent(t *testing.T) {
	pool := NewThreadPool(10, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Put(pool.Get("worker"))
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, pool.Size(), 10)
}

func TestThreadPool_Call(t *testing.T) {
	double := starlark.NewBuiltin("double", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		f, _ := starlark.AsFloat(args[0])
		return starlark.Float(f * 2), nil
	})

	var printed []string
	pool := NewThreadPool(1, func(_ *starlark.Thread, msg string) { printed = append(printed, msg) })

	got, err := pool.Call(context.Background(), "double", double, starlark.Tuple{starlark.Float(4)})
	require.NoError(t, err)
	assert.Equal(t, starlark.Float(8), got)
	assert.Equal(t, 1, pool.Size(), "thread is returned after a call")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Call(ctx, "double", double, starlark.Tuple{starlark.Float(1)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, printed)
}

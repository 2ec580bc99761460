package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestHooks_AddContext(t *testing.T) {
	t.Run("adds hook", func(t *testing.T) {
		hooks := &Hooks{}
		hooks.AddContext("telemetry", func(ctx context.Context) error { return nil })

		require.Len(t, hooks.hooks, 1)
		assert.Equal(t, "telemetry", hooks.hooks[0].name)
	})

	t.Run("ignores nil hook", func(t *testing.T) {
		hooks := &Hooks{}
		hooks.AddContext("nil-hook", nil)
		assert.Empty(t, hooks.hooks)
	})
}

func TestHooks_AddClose(t *testing.T) {
	t.Run("closes resource", func(t *testing.T) {
		hooks := &Hooks{}
		closed := false
		hooks.AddClose("cache", closerFunc(func() error { closed = true; return nil }))

		require.NoError(t, hooks.Run(context.Background()))
		assert.True(t, closed)
	})

	t.Run("ignores nil closer", func(t *testing.T) {
		hooks := &Hooks{}
		hooks.AddClose("nil-closer", nil)
		assert.Empty(t, hooks.hooks)
	})

	t.Run("close error returned", func(t *testing.T) {
		hooks := &Hooks{}
		hooks.AddClose("cache", closerFunc(func() error { return assert.AnError }))

		assert.ErrorIs(t, hooks.Run(context.Background()), assert.AnError)
	})
}

func TestHooks_Run(t *testing.T) {
	t.Run("runs in reverse order", func(t *testing.T) {
		hooks := &Hooks{}
		var order []string
		for _, name := range []string{"first", "second", "third"} {
			hooks.AddContext(name, func(context.Context) error {
				order = append(order, name)
				return nil
			})
		}

		require.NoError(t, hooks.Run(context.Background()))
		assert.Equal(t, []string{"third", "second", "first"}, order)
	})

	t.Run("continues after failure", func(t *testing.T) {
		hooks := &Hooks{}
		first := errors.New("first failed")
		called := false

		hooks.AddContext("first", func(context.Context) error { return first })
		hooks.AddContext("second", func(context.Context) error { return assert.AnError })
		hooks.AddContext("third", func(context.Context) error { called = true; return nil })

		err := hooks.Run(context.Background())

		assert.True(t, called)
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("hooks run once", func(t *testing.T) {
		hooks := &Hooks{}
		calls := 0
		hooks.AddContext("counted", func(context.Context) error { calls++; return nil })

		require.NoError(t, hooks.Run(context.Background()))
		require.NoError(t, hooks.Run(context.Background()))
		assert.Equal(t, 1, calls)
	})

	t.Run("hook receives default timeout", func(t *testing.T) {
		hooks := &Hooks{}
		var deadline time.Time
		hooks.AddContext("deadline", func(ctx context.Context) error {
			deadline, _ = ctx.Deadline()
			return nil
		})

		start := time.Now()
		require.NoError(t, hooks.Run(context.Background()))

		assert.WithinDuration(t, start.Add(DefaultHookTimeout), deadline, time.Second)
	})

	t.Run("caller deadline preserved", func(t *testing.T) {
		hooks := &Hooks{}
		expected := time.Now().Add(time.Minute)
		ctx, cancel := context.WithDeadline(context.Background(), expected)
		defer cancel()

		var deadline time.Time
		hooks.AddContext("deadline", func(ctx context.Context) error {
			deadline, _ = ctx.Deadline()
			return nil
		})

		require.NoError(t, hooks.Run(ctx))
		assert.Equal(t, expected, deadline)
	})
}

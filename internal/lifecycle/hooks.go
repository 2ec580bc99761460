package lifecycle

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultHookTimeout bounds each hook when Run is given a context without a
// deadline.
const DefaultHookTimeout = 5 * time.Second

type hook struct {
	name string
	fn   func(context.Context) error
}

// Hooks collects cleanup functions to run before the process exits. Hooks
// run in reverse registration order, so resources are released before the
// things they depend on, and every hook runs even when an earlier one fails.
type Hooks struct {
	hooks []hook
}

// AddContext registers a hook that receives the shutdown context. Nil hooks
// are ignored.
func (h *Hooks) AddContext(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// AddClose registers a resource to close.
func (h *Hooks) AddClose(name string, closer io.Closer) {
	if closer == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	h.AddContext(name, func(context.Context) error { return closer.Close() })
}

// Run executes the hooks and returns their joined errors. Each hook gets its
// own timeout when ctx has no deadline.
func (h *Hooks) Run(ctx context.Context) error {
	l := log.Ctx(ctx)

	var errs []error
	for i := len(h.hooks) - 1; i >= 0; i-- {
		hk := h.hooks[i]
		hookLog := l.With().Str("hook", hk.name).Logger()

		if err := runHook(ctx, hk); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown failed")
			errs = append(errs, err)
			continue
		}
		hookLog.Debug().Msg("shutdown complete")
	}
	h.hooks = nil

	return errors.Join(errs...)
}

func runHook(ctx context.Context, hk hook) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHookTimeout)
		defer cancel()
	}

	return hk.fn(ctx)
}

package audit

import (
	"time"

	"github.com/rs/zerolog"
)

// OptionalEvent accumulates fields for a nested dictionary, only adding the
// dictionary to its parent when at least one field was set.
type OptionalEvent struct {
	ev      *zerolog.Event
	written bool
}

func (oe *OptionalEvent) event() *zerolog.Event {
	if oe.ev == nil {
		oe.ev = zerolog.Dict()
	}
	oe.written = true
	return oe.ev
}

// Set adds the dictionary to the parent under key. It reports whether
// anything was written.
func (oe *OptionalEvent) Set(parent *zerolog.Event, key string) bool {
	if !oe.written {
		return false
	}
	parent.Dict(key, oe.ev)
	return true
}

func (oe *OptionalEvent) Str(key, val string) *OptionalEvent {
	if val == "" {
		return oe
	}
	oe.event().Str(key, val)
	return oe
}

func (oe *OptionalEvent) Strs(key string, vals []string) *OptionalEvent {
	if len(vals) == 0 {
		return oe
	}
	oe.event().Strs(key, vals)
	return oe
}

func (oe *OptionalEvent) Bool(key string, val bool) *OptionalEvent {
	oe.event().Bool(key, val)
	return oe
}

func (oe *OptionalEvent) Time(key string, val time.Time) *OptionalEvent {
	if val.IsZero() {
		return oe
	}
	oe.event().Time(key, val)
	return oe
}

func (oe *OptionalEvent) Dur(key string, val time.Duration) *OptionalEvent {
	if val == 0 {
		return oe
	}
	oe.event().Dur(key, val)
	return oe
}

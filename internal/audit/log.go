package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Level is the level at which audit entries are written. Entries are always
// written unless the logger is disabled.
const Level = zerolog.NoLevel

// Token sources.
const (
	SourceCache    = "cache"
	SourceExchange = "exchange"
	SourceFallback = "fallback"
)

// Entry is the audit record of a single access token request. It never
// holds the token itself.
type Entry struct {
	ServiceAccount string
	KeySource      string
	KeyFingerprint string
	Subject        string
	Scopes         []string

	Source    string
	ExpiresAt time.Time

	Duration time.Duration
	Error    string

	start time.Time
}

type contextKey struct{}

// Begin attaches a new entry to the context, replacing any entry already
// present.
func Begin(ctx context.Context) (context.Context, *Entry) {
	e := &Entry{start: time.Now()}
	return context.WithValue(ctx, contextKey{}, e), e
}

// Log returns the entry attached to the context. When there is none, a
// detached entry is returned so callers need not check.
func Log(ctx context.Context) *Entry {
	if e, ok := ctx.Value(contextKey{}).(*Entry); ok {
		return e
	}
	return &Entry{}
}

// End returns a function that writes the entry to the context logger. It is
// intended to be deferred: a panic in the caller is recorded in the entry and
// then re-raised.
func (e *Entry) End(ctx context.Context) func() {
	return func() {
		r := recover()
		if r != nil {
			if e.Error != "" {
				e.Error += "; "
			}
			e.Error += fmt.Sprintf("panic: %v", r)
		}

		if !e.start.IsZero() {
			e.Duration = time.Since(e.start)
		}

		zerolog.Ctx(ctx).WithLevel(Level).EmbedObject(e).Msg("audit_event")

		if r != nil {
			panic(r)
		}
	}
}

// Fail records err as the outcome of the request.
func (e *Entry) Fail(err error) {
	if err != nil {
		e.Error = err.Error()
	}
}

func (e *Entry) MarshalZerologObject(ev *zerolog.Event) {
	credential := &OptionalEvent{}
	credential.
		Str("serviceAccount", e.ServiceAccount).
		Str("keySource", e.KeySource).
		Str("keyFingerprint", e.KeyFingerprint).
		Str("subject", e.Subject)
	credential.Set(ev, "credential")

	token := &OptionalEvent{}
	token.
		Strs("scopes", e.Scopes).
		Str("source", e.Source).
		Time("expiresAt", e.ExpiresAt)
	if !e.ExpiresAt.IsZero() && !e.start.IsZero() {
		token.Dur("expiresIn", e.ExpiresAt.Sub(e.start).Round(time.Second))
	}
	token.Set(ev, "token")

	if e.Duration > 0 {
		ev.Dur("duration", e.Duration)
	}

	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}

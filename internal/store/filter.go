package store

import (
	"math"
	"strings"

	"github.com/google/cel-go/cel"
)

// Filter is a stateless predicate over a record's parsed fields plus an
// inclusive time window. The zero bounds are the unbounded sentinels; an
// empty Site matches every site. A Filter must not change once a Selection
// starts iterating with it.
type Filter struct {
	// SinceMs and UntilMs bound the record timestamp, inclusive on both
	// ends. math.MinInt64 / math.MaxInt64 mean unbounded.
	SinceMs int64
	UntilMs int64

	// Site, when non-empty, requires an exact match on the record's site.
	Site string

	prog cel.Program
}

// NewFilter returns a filter matching everything.
func NewFilter() *Filter {
	return &Filter{SinceMs: math.MinInt64, UntilMs: math.MaxInt64}
}

// HasTimeBounds reports whether either end of the time window is bounded.
func (f *Filter) HasTimeBounds() bool {
	return f.SinceMs != math.MinInt64 || f.UntilMs != math.MaxInt64
}

// SetExpr compiles an optional CEL expression evaluated against each
// candidate record in addition to the native constraints. The expression
// sees `site`, `message`, `ts_ms` and `size` and must produce a bool.
func (f *Filter) SetExpr(src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		f.prog = nil
		return nil
	}
	env, err := cel.NewEnv(
		cel.Variable("site", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
	)
	if err != nil {
		return err
	}
	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return err
	}
	f.prog = prog
	return nil
}

// Matches reports whether the record satisfies the time window, the site
// constraint, and the optional expression. An expression that fails to
// evaluate counts as a mismatch.
func (f *Filter) Matches(r *Record) bool {
	ts := r.parsed.TimestampMs
	if ts < f.SinceMs || ts > f.UntilMs {
		return false
	}
	if f.Site != "" && f.Site != r.parsed.Site {
		return false
	}
	if f.prog != nil {
		out, _, err := f.prog.Eval(map[string]any{
			"site":    r.parsed.Site,
			"message": r.parsed.Message,
			"ts_ms":   ts,
			"size":    int64(len(r.raw)),
		})
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}
	return true
}

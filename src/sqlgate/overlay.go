package sqlgate

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// observation is the logging overlay for one dispatch. It is created before
// the statement is sent and finished when the result settles; it is a pure
// side channel and never alters the value or error seen by the caller.
type observation struct {
	db      *DB
	expr    *Expr
	started time.Time
	stack   string
	success bool
}

// observe captures dispatch time, the success-logging decision, and — outside
// production — the dispatch call site.
func (d *DB) observe(ctx context.Context, e *Expr) *observation {
	obs := &observation{
		db:      d,
		expr:    e,
		started: time.Now(),
		success: d.shouldLogSuccess(ctx),
	}
	d.st.mu.RLock()
	production := d.st.production
	d.st.mu.RUnlock()
	if !production {
		obs.stack = dispatchStack()
	}
	return obs
}

// shouldLogSuccess applies the logging-mode precedence: silent never logs,
// verbose always logs, default follows the global toggle and the ambient
// suppression flag.
func (d *DB) shouldLogSuccess(ctx context.Context) bool {
	switch d.mode {
	case modeSilent:
		return false
	case modeVerbose:
		return true
	default:
		d.st.mu.RLock()
		enabled := d.st.loggingEnabled
		d.st.mu.RUnlock()
		return enabled && !IsLoggingSuppressed(ctx)
	}
}

// finish records the outcome. Execution failures are always logged on the
// error channel, regardless of mode, suppression or the global toggle.
func (o *observation) finish(err error) {
	if err != nil {
		o.log(slog.LevelError, "query failed", err)
		return
	}
	if o.success {
		o.log(slog.LevelInfo, "query", nil)
	}
}

func (o *observation) log(level slog.Level, msg string, err error) {
	o.db.st.mu.RLock()
	log := o.db.st.logger
	o.db.st.mu.RUnlock()

	attrs := []any{
		"sql", o.expr.Render(),
		"elapsed", time.Since(o.started).String(),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if o.stack != "" {
		attrs = append(attrs, "caller", o.stack)
	}
	log.Log(context.Background(), level, msg, attrs...)
}

// dispatchStack returns a trimmed snapshot of the call stack at dispatch.
// The skip count steps over runtime.Callers, dispatchStack, observe and the
// dispatch method, so the first frame is the application call site.
func dispatchStack() string {
	pc := make([]uintptr, 3)
	n := runtime.Callers(4, pc)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pc[:n])
	var parts []string
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			parts = append(parts, frame.Function)
		}
		if !more {
			break
		}
	}
	return strings.Join(parts, " <- ")
}

// observedRows settles the logging observation for a Query dispatch once the
// result set is consumed. pgx surfaces most execution errors at iteration,
// not at dispatch, so the observation completes at Close using Rows.Err: a
// deferred failure still reaches the unconditional error channel, and a clean
// result logs success with the elapsed time of the full read. pgx closes rows
// automatically at the end of iteration, and callers may Close again; the
// observation settles exactly once.
type observedRows struct {
	pgx.Rows
	obs         *observation
	dateStrings bool
	settle      sync.Once
}

func (r *observedRows) Close() {
	r.Rows.Close()
	r.settle.Do(func() {
		r.obs.finish(r.Rows.Err())
	})
}

func (r *observedRows) Scan(dest ...any) error {
	if err := r.Rows.Scan(dest...); err != nil {
		return err
	}
	if r.dateStrings {
		presentDateStrings(dest)
	}
	return nil
}

func (r *observedRows) Values() ([]any, error) {
	values, err := r.Rows.Values()
	if err != nil {
		return nil, err
	}
	if r.dateStrings {
		for i, v := range values {
			if t, ok := v.(time.Time); ok {
				values[i] = t.UTC().Format(time.RFC3339Nano)
			}
		}
	}
	return values, nil
}

// presentDateStrings converts timestamps scanned into untyped destinations to
// RFC 3339 strings. Typed *time.Time destinations are left alone: they state
// the caller's wanted representation explicitly.
func presentDateStrings(dest []any) {
	for _, d := range dest {
		if p, ok := d.(*any); ok {
			if t, ok := (*p).(time.Time); ok {
				*p = t.UTC().Format(time.RFC3339Nano)
			}
		}
	}
}

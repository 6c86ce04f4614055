package sqlgate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Test doubles for the library's own interfaces. Execution is recorded, not
// performed.

type recordedCall struct {
	sql  string
	args []any
}

type fakeExecutor struct {
	mu        sync.Mutex
	calls     []recordedCall
	execErr   error
	queryErr  error
	scanErr   error
	rows      *fakeRows
	rowValues []any
}

func (f *fakeExecutor) record(sql string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{sql: sql, args: args})
}

func (f *fakeExecutor) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakeExecutor) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.record(sql, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeExecutor) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record(sql, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows != nil {
		return f.rows, nil
	}
	return &fakeRows{}, nil
}

func (f *fakeExecutor) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.record(sql, args)
	return fakeRow{err: f.scanErr, values: f.rowValues}
}

type fakeRow struct {
	err    error
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) {
			break
		}
		if p, ok := d.(*any); ok {
			*p = r.values[i]
		}
	}
	return nil
}

// fakeRows mimics pgx result-set consumption: rows iterate, then Err reports
// any failure that surfaced mid-stream.
type fakeRows struct {
	values      [][]any
	deferredErr error
	pos         int
	closed      bool
}

func (r *fakeRows) Close()          { r.closed = true }
func (r *fakeRows) Err() error      { return r.deferredErr }
func (r *fakeRows) Conn() *pgx.Conn { return nil }

func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT 1") }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.values[r.pos-1]
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		if p, ok := d.(*any); ok {
			*p = row[i]
		}
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return append([]any(nil), r.values[r.pos-1]...), nil
}

func (r *fakeRows) RawValues() [][]byte { return nil }

type fakeTx struct {
	fakeExecutor
	committed   bool
	rolledBack  bool
	commitErr   error
	rollbackErr error
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return t.rollbackErr
}

type fakeConn struct {
	fakeExecutor
	beginCount int
	beginErr   error
	tx         *fakeTx
}

func (c *fakeConn) Begin(context.Context) (Tx, error) {
	c.beginCount++
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	c.tx = &fakeTx{}
	return c.tx, nil
}

type fakeSource struct {
	conn *fakeConn
	err  error
}

func (s *fakeSource) Get(context.Context) (Beginner, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.conn, nil
}

// captureHandler collects slog records for assertions.
type captureHandler struct {
	mu      sync.Mutex
	records []capturedRecord
}

type capturedRecord struct {
	level slog.Level
	msg   string
	attrs map[string]string
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := capturedRecord{level: r.Level, msg: r.Message, attrs: map[string]string{}}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value.String()
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) byLevel(level slog.Level) []capturedRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []capturedRecord
	for _, r := range h.records {
		if r.level == level {
			out = append(out, r)
		}
	}
	return out
}

func newTestDB(cfg Config) (*DB, *fakeConn, *captureHandler) {
	handler := &captureHandler{}
	cfg.Logger = slog.New(handler)
	conn := &fakeConn{}
	return New(&fakeSource{conn: conn}, cfg), conn, handler
}

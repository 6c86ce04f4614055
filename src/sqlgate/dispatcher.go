// Package sqlgate is a query-execution mediation layer over a pgx connection
// pool. Application code issues every query through one entry point; each
// call is routed to the shared pool or to the transaction installed on the
// current context, and SQL logging is overlaid per call without changing how
// the query is written.
package sqlgate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Executor is the query surface shared by *pgxpool.Pool and pgx.Tx.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tx is one open transaction. pgx.Tx satisfies it.
type Tx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner is a connection handle that can open transactions.
type Beginner interface {
	Executor
	Begin(ctx context.Context) (Tx, error)
}

// ConnectionSource supplies the pooled connection handle. *Provider is the
// production implementation; tests substitute fakes.
type ConnectionSource interface {
	Get(ctx context.Context) (Beginner, error)
}

// Row is the single-row result surface. It wraps pgx.Row so that Scan
// participates in the logging overlay.
type Row interface {
	Scan(dest ...any) error
}

type mode int

const (
	modeDefault mode = iota
	modeVerbose
	modeSilent
)

// state is shared by a dispatcher and its facets, guarded for Configure.
type state struct {
	mu             sync.RWMutex
	loggingEnabled bool
	logger         *slog.Logger
	dateStrings    bool
	production     bool
	forcedRollback bool
}

// Config fixes the dispatcher-wide settings at construction. LoggingEnabled,
// Logger and DateStringsEnabled can be changed later via Configure;
// Production and ForcedRollback cannot.
type Config struct {
	Logger             *slog.Logger
	LoggingEnabled     bool
	DateStringsEnabled bool
	Production         bool
	ForcedRollback     bool
}

// DB is the uniform query entry point. Exec, Query and QueryRow resolve the
// execution target per call: the ambient transaction when the chain is inside
// a transaction scope, the pooled handle otherwise.
//
// Verbose and Silent are facets of the same dispatcher with the logging mode
// locked in. They share all state and cross-link, so chains like
// db.Silent.Verbose behave as expected.
type DB struct {
	src  ConnectionSource
	mode mode
	st   *state

	Verbose *DB
	Silent  *DB
}

// New builds a dispatcher over src. A nil cfg.Logger falls back to
// slog.Default.
func New(src ConnectionSource, cfg Config) *DB {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	st := &state{
		loggingEnabled: cfg.LoggingEnabled,
		logger:         log,
		dateStrings:    cfg.DateStringsEnabled,
		production:     cfg.Production,
		forcedRollback: cfg.ForcedRollback,
	}

	base := &DB{src: src, mode: modeDefault, st: st}
	verbose := &DB{src: src, mode: modeVerbose, st: st}
	silent := &DB{src: src, mode: modeSilent, st: st}
	for _, d := range []*DB{base, verbose, silent} {
		d.Verbose = verbose
		d.Silent = silent
	}
	return base
}

// resolve picks the execution target for the current chain.
func (d *DB) resolve(ctx context.Context) (Executor, error) {
	if tx := ActiveTransaction(ctx); tx != nil {
		return tx, nil
	}
	return d.src.Get(ctx)
}

// Exec runs a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, e *Expr) (pgconn.CommandTag, error) {
	target, err := d.resolve(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	text, args, err := e.flatten()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	obs := d.observe(ctx, e)
	tag, err := target.Exec(ctx, text, args...)
	obs.finish(err)
	return tag, err
}

// Query runs a statement and returns its rows. The returned rows must be
// closed as with any pgx result set.
//
// pgx defers most execution errors to iteration, so the observation is not
// completed here: the returned wrapper settles it at Close using Rows.Err,
// which keeps failing SELECTs on the unconditional error channel and makes
// the logged elapsed time cover the consumed result.
func (d *DB) Query(ctx context.Context, e *Expr) (pgx.Rows, error) {
	target, err := d.resolve(ctx)
	if err != nil {
		return nil, err
	}
	text, args, err := e.flatten()
	if err != nil {
		return nil, err
	}
	obs := d.observe(ctx, e)
	rows, err := target.Query(ctx, text, args...)
	if err != nil {
		obs.finish(err)
		return nil, err
	}
	return &observedRows{Rows: rows, obs: obs, dateStrings: d.dateStrings()}, nil
}

// QueryRow runs a statement expected to return at most one row. Errors,
// including resolution and bind errors, surface from Scan, matching pgx.
func (d *DB) QueryRow(ctx context.Context, e *Expr) Row {
	target, err := d.resolve(ctx)
	if err != nil {
		return errRow{err}
	}
	text, args, err := e.flatten()
	if err != nil {
		return errRow{err}
	}
	obs := d.observe(ctx, e)
	return observedRow{row: target.QueryRow(ctx, text, args...), obs: obs, dateStrings: d.dateStrings()}
}

// errRow defers a dispatch-time failure to Scan.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// observedRow completes the logging observation when the row is consumed.
type observedRow struct {
	row         pgx.Row
	obs         *observation
	dateStrings bool
}

func (r observedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		// An empty result is not an execution failure.
		r.obs.finish(nil)
	} else {
		r.obs.finish(err)
	}
	if err == nil && r.dateStrings {
		presentDateStrings(dest)
	}
	return err
}

func (d *DB) dateStrings() bool {
	d.st.mu.RLock()
	defer d.st.mu.RUnlock()
	return d.st.dateStrings
}

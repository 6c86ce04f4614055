package sqlgate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"sqlgate/src/infra/config"
)

// Flavor identifies the database behind the pooled handle.
type Flavor string

const (
	FlavorPostgres  Flavor = "postgres"
	FlavorCockroach Flavor = "cockroachdb"
)

// Provider owns the process's single pooled connection handle. The handle is
// built lazily from configuration on first use; Reset closes and clears it so
// the next use rebuilds from current configuration.
//
// Construction does not ping: the pool establishes network connections on
// demand, and connectivity is the handle's concern, not the Provider's.
type Provider struct {
	mu     sync.Mutex
	cfg    config.DatabaseConfig
	log    *slog.Logger
	pool   *pgxpool.Pool
	flavor Flavor
}

// NewProvider builds a Provider over cfg. The handle itself is not created
// until first use.
func NewProvider(cfg config.DatabaseConfig, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{cfg: cfg, log: log}
}

// Pool returns the pooled handle, constructing it on first call. A missing
// connection configuration is a startup error, surfaced as
// config.ErrNoConnectionConfig and never retried internally.
func (p *Provider) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poolLocked(ctx)
}

func (p *Provider) poolLocked(ctx context.Context) (*pgxpool.Pool, error) {
	if p.pool != nil {
		return p.pool, nil
	}

	dsn, err := p.cfg.DSN()
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(p.cfg.MaxConns)
	poolCfg.MinConns = int32(p.cfg.MinConns)
	poolCfg.MaxConnLifetime = p.cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	p.log.Info("database handle created",
		"flavor", p.cfg.Flavor,
		"database", p.cfg.Name,
	)
	p.pool = pool
	return pool, nil
}

// Get returns the handle behind the library's Beginner interface; this is
// what the dispatcher and the transaction scope consume.
func (p *Provider) Get(ctx context.Context) (Beginner, error) {
	pool, err := p.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return poolBeginner{pool}, nil
}

// Reset closes the current handle, if any, and clears it along with the
// cached flavor detection. In-flight queries against the closed handle are
// the caller's responsibility.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.log.Info("database handle closed")
	}
	p.pool = nil
	p.flavor = ""
}

// IsConnected reports whether a handle has been constructed. Construction is
// lazy, and an existing handle says nothing about live network connections.
func (p *Provider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool != nil
}

// DetectFlavor queries the server version and caches the result until Reset.
func (p *Provider) DetectFlavor(ctx context.Context) (Flavor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flavor != "" {
		return p.flavor, nil
	}
	pool, err := p.poolLocked(ctx)
	if err != nil {
		return "", err
	}
	var version string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to detect database flavor: %w", err)
	}
	if strings.Contains(version, "CockroachDB") {
		p.flavor = FlavorCockroach
	} else {
		p.flavor = FlavorPostgres
	}
	return p.flavor, nil
}

// poolBeginner adapts *pgxpool.Pool to Beginner (pool.Begin returns pgx.Tx,
// which satisfies Tx but not through interface covariance).
type poolBeginner struct {
	*pgxpool.Pool
}

func (p poolBeginner) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Package pg implementa el CredentialStore sobre PostgreSQL (pgx).
// Es el driver recomendado para producción: el reemplazo de access token y
// la marca de exchanged se hacen en transacciones update-or-fail.
package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	migrations "github.com/dropDatabas3/grantd/migrations/postgres"
)

type Store struct{ pool *pgxpool.Pool }

// Config es el tuning opcional del pool.
type Config struct {
	MaxOpenConns    int
	MinIdleConns    int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	// Mapear MinIdleConns → MinConns (pgxpool)
	if cfg.MinIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MinIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (metrics, checks).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema aplica las migraciones embebidas en orden lexicográfico.
// Idempotente: el DDL usa IF NOT EXISTS.
func (s *Store) EnsureSchema(ctx context.Context) error {
	entries, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, name := range entries {
		raw, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(raw)); err != nil {
			return fmt.Errorf("pg: migration %s: %w", name, err)
		}
	}
	return nil
}

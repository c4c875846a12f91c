package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

func (s *Store) ClientByID(ctx context.Context, id string) (*core.Client, error) {
	const q = `
		SELECT id, name, secret_hash, secret_salt, redirect_uri, scopes, created_at
		FROM clients
		WHERE id = $1 AND revoked_at IS NULL`
	var cl core.Client
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&cl.ID, &cl.Name, &cl.SecretHash, &cl.SecretSalt, &cl.RedirectURI, &cl.Scopes, &cl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

func (s *Store) RevokeClient(ctx context.Context, id string) error {
	const q = `UPDATE clients SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	_, err := s.pool.Exec(ctx, q, id)
	return err
}

func (s *Store) OwnerByUsername(ctx context.Context, username string) (*core.Owner, error) {
	return s.owner(ctx, `username = $1`, username)
}

func (s *Store) OwnerByID(ctx context.Context, id string) (*core.Owner, error) {
	return s.owner(ctx, `id = $1`, id)
}

func (s *Store) owner(ctx context.Context, where, arg string) (*core.Owner, error) {
	q := `SELECT id, username, salt, password_hash, created_at FROM owners WHERE ` + where
	var o core.Owner
	err := s.pool.QueryRow(ctx, q, arg).Scan(&o.ID, &o.Username, &o.Salt, &o.PasswordHash, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) RevokeOwnerAccess(ctx context.Context, ownerID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tokens WHERE owner_id = $1`, ownerID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM authorization_codes WHERE owner_id = $1`, ownerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) AllowedScopesForOwner(ctx context.Context, o *core.Owner) (scope.Set, error) {
	const q = `SELECT allow_any_scope, scopes FROM owners WHERE id = $1`
	var any bool
	var scopes []string
	err := s.pool.QueryRow(ctx, q, o.ID).Scan(&any, &scopes)
	if errors.Is(err, pgx.ErrNoRows) {
		return scope.Set{}, core.ErrNotFound
	}
	if err != nil {
		return scope.Set{}, err
	}
	if any {
		return scope.Any, nil
	}
	return scope.ParseSet(scopes)
}

// ---- Provisioning ----

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	const q = `
		INSERT INTO clients (id, name, secret_hash, secret_salt, redirect_uri, scopes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING`
	declared := c.Scopes
	if declared == nil {
		declared = []string{}
	}
	ct, err := s.pool.Exec(ctx, q, c.ID, c.Name, c.SecretHash, c.SecretSalt, c.RedirectURI, declared)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) CreateOwner(ctx context.Context, o *core.Owner) error {
	const q = `
		INSERT INTO owners (id, username, salt, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO NOTHING`
	ct, err := s.pool.Exec(ctx, q, o.ID, o.Username, o.Salt, o.PasswordHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) SetOwnerScopes(ctx context.Context, ownerID string, scopes scope.Set) error {
	const q = `UPDATE owners SET allow_any_scope = $2, scopes = $3 WHERE id = $1`
	vals := scopes.Strings()
	if vals == nil {
		vals = []string{}
	}
	ct, err := s.pool.Exec(ctx, q, ownerID, scopes.IsAny(), vals)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/grantd/internal/store/core"
)

func (s *Store) CodeByCode(ctx context.Context, code string) (*core.AuthorizationCode, error) {
	const q = `
		SELECT code, client_id, owner_id, scopes, redirect_uri, issued_at, expires_at, exchanged
		FROM authorization_codes
		WHERE code = $1`
	var c core.AuthorizationCode
	err := s.pool.QueryRow(ctx, q, code).Scan(
		&c.Code, &c.ClientID, &c.OwnerID, &c.Scopes, &c.RedirectURI, &c.IssuedAt, &c.ExpiresAt, &c.Exchanged)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) StoreCode(ctx context.Context, c *core.AuthorizationCode) error {
	const q = `
		INSERT INTO authorization_codes (code, client_id, owner_id, scopes, redirect_uri, issued_at, expires_at, exchanged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, q,
		c.Code, c.ClientID, c.OwnerID, c.Scopes, c.RedirectURI, c.IssuedAt, c.ExpiresAt, c.Exchanged)
	return err
}

func (s *Store) RevokeCode(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM authorization_codes WHERE code = $1`, code)
	return err
}

func (s *Store) RevokeTokenIssuedFromCode(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE issued_from_code = $1`, code)
	return err
}

package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/grantd/internal/store/core"
)

const tokenCols = `access_token, refresh_token, token_type, client_id, owner_id, scopes, issued_at, expires_at`

func scanToken(row pgx.Row) (*core.Token, error) {
	var t core.Token
	err := row.Scan(&t.AccessToken, &t.RefreshToken, &t.TokenType, &t.ClientID, &t.OwnerID, &t.Scopes, &t.IssuedAt, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) TokenByAccess(ctx context.Context, accessToken string) (*core.Token, error) {
	q := `SELECT ` + tokenCols + ` FROM tokens WHERE access_token = $1`
	return scanToken(s.pool.QueryRow(ctx, q, accessToken))
}

func (s *Store) TokenByRefresh(ctx context.Context, refreshToken string) (*core.Token, error) {
	q := `SELECT ` + tokenCols + ` FROM tokens WHERE refresh_token = $1`
	return scanToken(s.pool.QueryRow(ctx, q, refreshToken))
}

// StoreToken persiste el token; si viene de un code, marca el code como
// exchanged y vincula el token en la misma transacción (update-or-fail: si
// el code no existe la transacción falla completa).
func (s *Store) StoreToken(ctx context.Context, t *core.Token, issuedFromCode string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if issuedFromCode != "" {
		ct, err := tx.Exec(ctx,
			`UPDATE authorization_codes SET exchanged = TRUE WHERE code = $1`, issuedFromCode)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return core.ErrNotFound
		}
	}

	const q = `
		INSERT INTO tokens (access_token, refresh_token, token_type, client_id, owner_id, scopes, issued_at, expires_at, issued_from_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`
	if _, err := tx.Exec(ctx, q,
		t.AccessToken, t.RefreshToken, t.TokenType, t.ClientID, t.OwnerID, t.Scopes, t.IssuedAt, t.ExpiresAt, issuedFromCode); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReplaceAccessToken es atómico: un solo UPDATE por primary key. Si el viejo
// no existe (ya reemplazado o revocado) devuelve ErrNotFound.
func (s *Store) ReplaceAccessToken(ctx context.Context, oldAccess, newAccess string, issuedAt, expiresAt time.Time) error {
	const q = `
		UPDATE tokens
		SET access_token = $2, issued_at = $3, expires_at = $4
		WHERE access_token = $1`
	ct, err := s.pool.Exec(ctx, q, oldAccess, newAccess, issuedAt, expiresAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTokenByRefresh(ctx context.Context, refreshToken string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE refresh_token = $1`, refreshToken)
	return err
}

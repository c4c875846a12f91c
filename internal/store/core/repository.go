package core

import (
	"context"
	"time"

	"github.com/dropDatabas3/grantd/internal/oauth/scope"
)

// CredentialStore es el contrato de persistencia que consume el engine.
// Las garantías de unicidad y single-use (reemplazo atómico del access token
// en refresh, marca de exchanged en los codes) son responsabilidad del store:
// se asume read-after-write estricto por registro y update-or-fail atómico en
// los paths de escritura de refresh y exchange.
//
// Lecturas sin resultado devuelven ErrNotFound; cualquier otro error es una
// falla de infraestructura y se propaga opaca.
type CredentialStore interface {
	// Clients
	ClientByID(ctx context.Context, id string) (*Client, error)
	RevokeClient(ctx context.Context, id string) error

	// Owners
	OwnerByUsername(ctx context.Context, username string) (*Owner, error)
	OwnerByID(ctx context.Context, id string) (*Owner, error)
	RevokeOwnerAccess(ctx context.Context, ownerID string) error

	// AllowedScopesForOwner devuelve los scopes permitidos del owner.
	// El sentinel scope.Any omite el filtrado del lado del owner.
	AllowedScopesForOwner(ctx context.Context, o *Owner) (scope.Set, error)

	// Tokens
	TokenByAccess(ctx context.Context, accessToken string) (*Token, error)
	TokenByRefresh(ctx context.Context, refreshToken string) (*Token, error)
	// StoreToken persiste el token. Si issuedFromCode no es vacío, vincula el
	// token al code de origen y lo marca exchanged en la misma escritura.
	StoreToken(ctx context.Context, t *Token, issuedFromCode string) error
	// ReplaceAccessToken sustituye atómicamente el access token viejo por el
	// nuevo con las fechas dadas. El viejo deja de verificar.
	ReplaceAccessToken(ctx context.Context, oldAccess, newAccess string, issuedAt, expiresAt time.Time) error
	DeleteTokenByRefresh(ctx context.Context, refreshToken string) error

	// Authorization codes
	CodeByCode(ctx context.Context, code string) (*AuthorizationCode, error)
	StoreCode(ctx context.Context, c *AuthorizationCode) error
	RevokeCode(ctx context.Context, code string) error
	RevokeTokenIssuedFromCode(ctx context.Context, code string) error
}

// Provisioner es el contrato opcional de alta de registros (seed, admin).
// No forma parte del engine.
type Provisioner interface {
	CreateClient(ctx context.Context, c *Client) error
	CreateOwner(ctx context.Context, o *Owner) error
	SetOwnerScopes(ctx context.Context, ownerID string, scopes scope.Set) error
}

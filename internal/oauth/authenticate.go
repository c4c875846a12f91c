package oauth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/grantd/internal/store/core"
)

// Authenticate implementa el resource-owner password grant.
//
// Orden de validación: client id faltante o desconocido => invalid_client;
// username/password faltantes => invalid_request; secreto incoherente con el
// tipo de client => invalid_client; owner desconocido o password incorrecto
// => invalid_grant. En éxito resuelve scopes, acuña y persiste el token.
// El refresh token se otorga solo a clients confidenciales.
//
// ttl <= 0 usa el default del engine (24h).
func (e *Engine) Authenticate(ctx context.Context, username, password, clientID, clientSecret string, ttl time.Duration, requestedScopes []string) (*core.Token, error) {
	cl, err := e.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if username == "" || password == "" {
		return nil, failf(ErrInvalidRequest, cl, "missing username or password")
	}
	if ferr := e.checkClientSecret(cl, clientSecret); ferr != nil {
		return nil, ferr
	}

	owner, err := e.store.OwnerByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		e.checkOwnerPassword(nil, password)
		return nil, failf(ErrInvalidGrant, cl, "unknown resource owner")
	}
	if err != nil {
		return nil, err
	}
	if !e.checkOwnerPassword(owner, password) {
		return nil, failf(ErrInvalidGrant, cl, "resource owner credentials rejected")
	}

	scopes, err := e.resolveScopes(ctx, cl, owner, requestedScopes)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = e.tokenTTL
	}
	tok, err := issueToken(&owner.ID, cl.ID, ttl, !cl.IsPublic(), scopes)
	if err != nil {
		return nil, err
	}
	// Un token que no se pudo persistir no se emitió.
	if err := e.store.StoreToken(ctx, tok, ""); err != nil {
		return nil, err
	}

	e.log.Debug("password grant issued",
		zap.String("client_id", cl.ID),
		zap.String("owner_id", owner.ID),
		zap.Strings("scopes", scopes))
	return tok, nil
}

package oauth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/grantd/internal/store/core"
)

// AuthenticateForCode es la primera pata del authorization-code grant:
// autentica al resource owner y emite un code de vida corta.
//
// Mismos chequeos de client que Authenticate, más: el client debe tener una
// redirect URI registrada (unauthorized_client si no). Las credenciales de
// owner incorrectas fallan con access_denied, no invalid_grant: vocabulario
// de error deliberadamente distinto por flow.
//
// ttl <= 0 usa el default del engine (10 minutos).
func (e *Engine) AuthenticateForCode(ctx context.Context, username, password, clientID string, ttl time.Duration, requestedScopes []string) (*core.AuthorizationCode, error) {
	cl, err := e.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if username == "" || password == "" {
		return nil, failf(ErrInvalidRequest, cl, "missing username or password")
	}
	if cl.RedirectURI == nil || *cl.RedirectURI == "" {
		return nil, failf(ErrUnauthorizedClient, cl, "client has no registered redirect URI")
	}

	owner, err := e.store.OwnerByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		e.checkOwnerPassword(nil, password)
		return nil, failf(ErrAccessDenied, cl, "resource owner credentials rejected")
	}
	if err != nil {
		return nil, err
	}
	if !e.checkOwnerPassword(owner, password) {
		return nil, failf(ErrAccessDenied, cl, "resource owner credentials rejected")
	}

	scopes, err := e.resolveScopes(ctx, cl, owner, requestedScopes)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = e.codeTTL
	}
	code, err := issueCode(owner.ID, cl, ttl, scopes)
	if err != nil {
		return nil, err
	}
	if err := e.store.StoreCode(ctx, code); err != nil {
		return nil, err
	}

	e.log.Debug("authorization code issued",
		zap.String("client_id", cl.ID),
		zap.String("owner_id", owner.ID))
	return code, nil
}

// Exchange es la segunda pata: canjea un authorization code por un token.
//
// Chequeos de client/secreto idénticos a Refresh. Code desconocido =>
// invalid_grant. Code expirado => se revoca y invalid_grant. Code de otro
// client => invalid_grant. Code ya canjeado => se revoca cualquier token que
// haya producido y invalid_grant (defensa contra replay).
//
// ttl <= 0 usa el default del engine (1h).
func (e *Engine) Exchange(ctx context.Context, code, clientID, clientSecret string, ttl time.Duration) (*core.Token, error) {
	cl, err := e.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, failf(ErrInvalidRequest, cl, "missing authorization code")
	}

	ac, err := e.store.CodeByCode(ctx, code)
	if errors.Is(err, core.ErrNotFound) {
		return nil, failf(ErrInvalidGrant, cl, "unknown authorization code")
	}
	if err != nil {
		return nil, err
	}
	if ferr := e.checkClientSecret(cl, clientSecret); ferr != nil {
		return nil, ferr
	}

	if ac.Expired(time.Now().UTC()) {
		if err := e.store.RevokeCode(ctx, ac.Code); err != nil {
			return nil, err
		}
		return nil, failf(ErrInvalidGrant, cl, "authorization code expired")
	}
	if ac.ClientID != cl.ID {
		return nil, failf(ErrInvalidGrant, cl, "authorization code was not issued to this client")
	}
	if ac.Exchanged {
		if err := e.store.RevokeTokenIssuedFromCode(ctx, ac.Code); err != nil {
			return nil, err
		}
		return nil, failf(ErrInvalidGrant, cl, "authorization code already exchanged")
	}

	if ttl <= 0 {
		ttl = e.exchangeTTL
	}
	tok, err := issueToken(&ac.OwnerID, cl.ID, ttl, !cl.IsPublic(), ac.Scopes)
	if err != nil {
		return nil, err
	}
	// Vinculado al code de origen para auditoría y revocación por replay.
	if err := e.store.StoreToken(ctx, tok, ac.Code); err != nil {
		return nil, err
	}

	e.log.Debug("code exchanged",
		zap.String("client_id", cl.ID),
		zap.String("owner_id", ac.OwnerID))
	return tok, nil
}

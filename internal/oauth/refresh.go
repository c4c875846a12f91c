package oauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

// Refresh implementa el refresh-token grant.
//
// Orden de validación: client id faltante/desconocido => invalid_client;
// refresh token faltante => invalid_request; token almacenado inexistente o
// de otro client => invalid_grant; secreto faltante o incorrecto =>
// invalid_client; estrechamiento de scopes inválido => invalid_scope.
//
// El token de reemplazo conserva la duración original recalculada desde
// ahora (renovación, no extensión de la expiración absoluta), reusa el mismo
// refresh token string, y el store reemplaza el access token viejo de forma
// atómica: el viejo deja de verificar.
func (e *Engine) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string, requestedScopes []string) (*core.Token, error) {
	cl, err := e.client(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, failf(ErrInvalidRequest, cl, "missing refresh token")
	}

	old, err := e.store.TokenByRefresh(ctx, refreshToken)
	if errors.Is(err, core.ErrNotFound) {
		return nil, failf(ErrInvalidGrant, cl, "unknown refresh token")
	}
	if err != nil {
		return nil, err
	}
	if old.ClientID != cl.ID {
		return nil, failf(ErrInvalidGrant, cl, "refresh token was not issued to this client")
	}
	if ferr := e.checkClientSecret(cl, clientSecret); ferr != nil {
		return nil, ferr
	}

	newScopes, err := e.narrowScopes(cl, old, requestedScopes)
	if err != nil {
		return nil, err
	}

	newTok, err := issueToken(old.OwnerID, cl.ID, old.Lifetime(), false, newScopes)
	if err != nil {
		return nil, err
	}
	newTok.RefreshToken = old.RefreshToken

	if err := e.store.ReplaceAccessToken(ctx, old.AccessToken, newTok.AccessToken, newTok.IssuedAt, newTok.ExpiresAt); err != nil {
		return nil, err
	}

	e.log.Debug("refresh grant issued",
		zap.String("client_id", cl.ID),
		zap.Strings("scopes", newScopes))
	return newTok, nil
}

// narrowScopes aplica la política de scopes del refresh.
//
// Con scopes pedidos: cada uno debe ser subset-or-equal de algún scope
// otorgado originalmente Y estar permitido por el client. Sin scopes pedidos
// y con client que soporta scoping: se revalida que el client siga
// permitiendo cada scope otorgado (captura revocaciones de scope del client
// posteriores al grant original) y se conserva el set original verbatim.
func (e *Engine) narrowScopes(cl *core.Client, old *core.Token, requested []string) ([]string, error) {
	clientSet, err := scope.ParseSet(cl.Scopes)
	if err != nil {
		return nil, err
	}

	if len(requested) > 0 {
		reqScopes, err := scope.ParseAll(requested)
		if err != nil {
			return nil, failf(ErrInvalidScope, cl, "malformed scope: %v", err)
		}
		granted, err := scope.ParseSet(old.Scopes)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(reqScopes))
		for i, r := range reqScopes {
			if old.Scopes == nil || !granted.ContainsSubsetOf(r) {
				return nil, failf(ErrInvalidScope, cl, "scope %q is not a subset of the original grant", r)
			}
			if !clientSet.Allows(r) {
				return nil, failf(ErrInvalidScope, cl, "scope %q is not allowed for the client", r)
			}
			// Persistir la forma canónica del scope parseado, no el input crudo.
			out[i] = r.String()
		}
		return out, nil
	}

	if cl.SupportsScoping() && old.Scopes != nil {
		grantedScopes, err := scope.ParseAll(old.Scopes)
		if err != nil {
			return nil, err
		}
		for _, g := range grantedScopes {
			if !clientSet.Allows(g) {
				return nil, failf(ErrInvalidScope, cl, "client no longer allows scope %q", g)
			}
		}
	}
	return old.Scopes, nil
}

package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

// Verify valida un bearer token. Token vacío, desconocido, expirado o con
// scopes insuficientes devuelve (nil, nil): es un resultado "no autenticado"
// normal, no una excepción. Solo errores del store se propagan.
func (e *Engine) Verify(ctx context.Context, accessToken string, requiredScopes ...string) (*Authorization, error) {
	if accessToken == "" {
		return nil, nil
	}
	tok, err := e.store.TokenByAccess(ctx, accessToken)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tok.Expired(time.Now().UTC()) {
		return nil, nil
	}

	if len(requiredScopes) > 0 && tok.Scopes != nil {
		required, err := scope.ParseAll(requiredScopes)
		if err != nil {
			return nil, nil
		}
		granted, err := scope.ParseSet(tok.Scopes)
		if err != nil {
			return nil, nil
		}
		if !granted.AllowsAll(required) {
			return nil, nil
		}
	}

	return &Authorization{
		ClientID: tok.ClientID,
		OwnerID:  tok.OwnerID,
		Scopes:   tok.Scopes,
		engine:   e,
	}, nil
}

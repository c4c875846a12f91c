package oauth

import (
	"time"

	tokens "github.com/dropDatabas3/grantd/internal/security/token"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

// issueToken acuña un Token nuevo: access token aleatorio de largo fijo,
// emisión en UTC, expiración = emisión + ttl. Adjunta refresh token solo si
// allowRefresh. No persiste.
func issueToken(ownerID *string, clientID string, ttl time.Duration, allowRefresh bool, scopes []string) (*core.Token, error) {
	access, err := tokens.GenerateOpaqueToken(accessTokenBytes)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t := &core.Token{
		AccessToken: access,
		TokenType:   "bearer",
		ClientID:    clientID,
		OwnerID:     ownerID,
		Scopes:      scopes,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}
	if allowRefresh {
		refresh, err := tokens.GenerateOpaqueToken(refreshTokenBytes)
		if err != nil {
			return nil, err
		}
		t.RefreshToken = &refresh
	}
	return t, nil
}

// issueCode acuña un AuthorizationCode de vida corta para el client dado.
// No persiste.
func issueCode(ownerID string, cl *core.Client, ttl time.Duration, scopes []string) (*core.AuthorizationCode, error) {
	code, err := tokens.GenerateOpaqueToken(codeBytes)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &core.AuthorizationCode{
		Code:      code,
		ClientID:  cl.ID,
		OwnerID:   ownerID,
		Scopes:    scopes,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if cl.RedirectURI != nil {
		c.RedirectURI = *cl.RedirectURI
	}
	return c, nil
}

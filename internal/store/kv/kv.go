// Package kv implementa un CredentialStore sobre cache.Client (memoria o
// Redis) con registros JSON. Los strings sensibles (tokens, codes) se usan
// hasheados como key, nunca crudos.
//
// Las escrituras multi-key (reemplazo de access token, marca de exchanged)
// van en un cache.Apply — MULTI/EXEC en Redis, un solo lock en memoria —
// así que nunca se observa el reemplazo a medias. Para update-or-fail
// estricto con rollback usar el driver postgres.
package kv

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/grantd/internal/cache"
	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	tokens "github.com/dropDatabas3/grantd/internal/security/token"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

// Layout de keys.
const (
	kClient     = "client:"        // + id
	kOwnerID    = "owner:id:"      // + id
	kOwnerName  = "owner:name:"    // + username
	kOwnerScope = "owner:scopes:"  // + id
	kAccess     = "token:access:"  // + sha256(access)
	kRefresh    = "token:refresh:" // + sha256(refresh) -> access crudo
	kCode       = "code:"          // + sha256(code)
	kCodeToken  = "code:token:"    // + sha256(code) -> access crudo

	kOwnerRevoked = "owner:revoked:" // + id -> timestamp RFC3339
)

// Retención de codes canjeados/vencidos antes del GC del backend.
// La expiración real la chequea el engine contra el registro.
const codeRetention = 24 * time.Hour

type Store struct {
	kv cache.Client
}

func New(kv cache.Client) *Store { return &Store{kv: kv} }

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.kv.Get(ctx, key)
	if cache.IsNotFound(err) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}

func (s *Store) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, string(raw), ttl)
}

// ---- Clients ----

func (s *Store) ClientByID(ctx context.Context, id string) (*core.Client, error) {
	var cl core.Client
	if err := s.getJSON(ctx, kClient+id, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (s *Store) RevokeClient(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, kClient+id)
}

// ---- Owners ----

func (s *Store) OwnerByUsername(ctx context.Context, username string) (*core.Owner, error) {
	id, err := s.kv.Get(ctx, kOwnerName+username)
	if cache.IsNotFound(err) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.OwnerByID(ctx, id)
}

func (s *Store) OwnerByID(ctx context.Context, id string) (*core.Owner, error) {
	var o core.Owner
	if err := s.getJSON(ctx, kOwnerID+id, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) RevokeOwnerAccess(ctx context.Context, ownerID string) error {
	// El backend KV no soporta scan por owner; se marca la revocación y los
	// tokens del owner dejan de resolver en TokenByAccess.
	return s.kv.Set(ctx, kOwnerRevoked+ownerID, time.Now().UTC().Format(time.RFC3339), 0)
}

type ownerScopesRecord struct {
	Any    bool     `json:"any"`
	Scopes []string `json:"scopes,omitempty"`
}

func (s *Store) AllowedScopesForOwner(ctx context.Context, o *core.Owner) (scope.Set, error) {
	var rec ownerScopesRecord
	err := s.getJSON(ctx, kOwnerScope+o.ID, &rec)
	if err == core.ErrNotFound {
		return scope.Any, nil
	}
	if err != nil {
		return scope.Set{}, err
	}
	if rec.Any {
		return scope.Any, nil
	}
	return scope.ParseSet(rec.Scopes)
}

// ---- Tokens ----

func (s *Store) TokenByAccess(ctx context.Context, accessToken string) (*core.Token, error) {
	var t core.Token
	if err := s.getJSON(ctx, kAccess+tokens.SHA256Base64URL(accessToken), &t); err != nil {
		return nil, err
	}
	if t.OwnerID != nil {
		raw, err := s.kv.Get(ctx, kOwnerRevoked+*t.OwnerID)
		if err != nil && !cache.IsNotFound(err) {
			return nil, err
		}
		if err == nil {
			if cutoff, perr := time.Parse(time.RFC3339, raw); perr == nil && t.IssuedAt.Before(cutoff) {
				return nil, core.ErrNotFound
			}
		}
	}
	return &t, nil
}

func (s *Store) TokenByRefresh(ctx context.Context, refreshToken string) (*core.Token, error) {
	access, err := s.kv.Get(ctx, kRefresh+tokens.SHA256Base64URL(refreshToken))
	if cache.IsNotFound(err) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t core.Token
	if err := s.getJSON(ctx, kAccess+tokens.SHA256Base64URL(access), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) StoreToken(ctx context.Context, t *core.Token, issuedFromCode string) error {
	var ops []cache.Op
	if issuedFromCode != "" {
		codeKey := kCode + tokens.SHA256Base64URL(issuedFromCode)
		var c core.AuthorizationCode
		if err := s.getJSON(ctx, codeKey, &c); err != nil {
			return err
		}
		c.Exchanged = true
		raw, err := json.Marshal(&c)
		if err != nil {
			return err
		}
		ops = append(ops,
			cache.Op{Key: codeKey, Value: string(raw), TTL: codeRetention},
			cache.Op{Key: kCodeToken + tokens.SHA256Base64URL(issuedFromCode), Value: t.AccessToken},
		)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ops = append(ops, cache.Op{Key: kAccess + tokens.SHA256Base64URL(t.AccessToken), Value: string(raw)})
	if t.RefreshToken != nil {
		ops = append(ops, cache.Op{Key: kRefresh + tokens.SHA256Base64URL(*t.RefreshToken), Value: t.AccessToken})
	}
	return s.kv.Apply(ctx, ops)
}

func (s *Store) ReplaceAccessToken(ctx context.Context, oldAccess, newAccess string, issuedAt, expiresAt time.Time) error {
	oldKey := kAccess + tokens.SHA256Base64URL(oldAccess)
	var t core.Token
	if err := s.getJSON(ctx, oldKey, &t); err != nil {
		return err
	}
	t.AccessToken = newAccess
	t.IssuedAt = issuedAt
	t.ExpiresAt = expiresAt

	raw, err := json.Marshal(&t)
	if err != nil {
		return err
	}
	// Alta del nuevo, repunteo del refresh y baja del viejo en un solo batch:
	// nunca queda visible un estado con ambos access tokens válidos.
	ops := []cache.Op{
		{Key: kAccess + tokens.SHA256Base64URL(newAccess), Value: string(raw)},
	}
	if t.RefreshToken != nil {
		ops = append(ops, cache.Op{Key: kRefresh + tokens.SHA256Base64URL(*t.RefreshToken), Value: newAccess})
	}
	ops = append(ops, cache.Op{Key: oldKey, Delete: true})
	return s.kv.Apply(ctx, ops)
}

func (s *Store) DeleteTokenByRefresh(ctx context.Context, refreshToken string) error {
	refreshKey := kRefresh + tokens.SHA256Base64URL(refreshToken)
	access, err := s.kv.Get(ctx, refreshKey)
	if cache.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.kv.Apply(ctx, []cache.Op{
		{Key: kAccess + tokens.SHA256Base64URL(access), Delete: true},
		{Key: refreshKey, Delete: true},
	})
}

// ---- Authorization codes ----

func (s *Store) CodeByCode(ctx context.Context, code string) (*core.AuthorizationCode, error) {
	var c core.AuthorizationCode
	if err := s.getJSON(ctx, kCode+tokens.SHA256Base64URL(code), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) StoreCode(ctx context.Context, c *core.AuthorizationCode) error {
	return s.setJSON(ctx, kCode+tokens.SHA256Base64URL(c.Code), c, codeRetention)
}

func (s *Store) RevokeCode(ctx context.Context, code string) error {
	if err := s.kv.Delete(ctx, kCodeToken+tokens.SHA256Base64URL(code)); err != nil {
		return err
	}
	return s.kv.Delete(ctx, kCode+tokens.SHA256Base64URL(code))
}

func (s *Store) RevokeTokenIssuedFromCode(ctx context.Context, code string) error {
	mapKey := kCodeToken + tokens.SHA256Base64URL(code)
	access, err := s.kv.Get(ctx, mapKey)
	if cache.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	accessKey := kAccess + tokens.SHA256Base64URL(access)
	var t core.Token
	if err := s.getJSON(ctx, accessKey, &t); err == nil && t.RefreshToken != nil {
		if err := s.kv.Delete(ctx, kRefresh+tokens.SHA256Base64URL(*t.RefreshToken)); err != nil {
			return err
		}
	}
	if err := s.kv.Delete(ctx, accessKey); err != nil {
		return err
	}
	return s.kv.Delete(ctx, mapKey)
}

// ---- Provisioning ----

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	exists, err := s.kv.Exists(ctx, kClient+c.ID)
	if err != nil {
		return err
	}
	if exists {
		return core.ErrConflict
	}
	return s.setJSON(ctx, kClient+c.ID, c, 0)
}

func (s *Store) CreateOwner(ctx context.Context, o *core.Owner) error {
	exists, err := s.kv.Exists(ctx, kOwnerID+o.ID)
	if err != nil {
		return err
	}
	if exists {
		return core.ErrConflict
	}
	if err := s.setJSON(ctx, kOwnerID+o.ID, o, 0); err != nil {
		return err
	}
	return s.kv.Set(ctx, kOwnerName+o.Username, o.ID, 0)
}

func (s *Store) SetOwnerScopes(ctx context.Context, ownerID string, scopes scope.Set) error {
	rec := ownerScopesRecord{Any: scopes.IsAny(), Scopes: scopes.Strings()}
	return s.setJSON(ctx, kOwnerScope+ownerID, &rec, 0)
}

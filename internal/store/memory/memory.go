// Package memory implementa un CredentialStore en memoria.
// Útil para desarrollo y testing; las escrituras de refresh y exchange son
// atómicas bajo el mutex del store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

type Store struct {
	mu sync.RWMutex

	clients      map[string]*core.Client
	owners       map[string]*core.Owner
	ownersByName map[string]string // username -> owner id
	ownerScopes  map[string]scope.Set

	tokensByAccess  map[string]*core.Token
	refreshToAccess map[string]string // refresh token -> access token vigente
	codes           map[string]*core.AuthorizationCode
	codeToAccess    map[string]string // code -> access token emitido desde él
}

func New() *Store {
	return &Store{
		clients:         make(map[string]*core.Client),
		owners:          make(map[string]*core.Owner),
		ownersByName:    make(map[string]string),
		ownerScopes:     make(map[string]scope.Set),
		tokensByAccess:  make(map[string]*core.Token),
		refreshToAccess: make(map[string]string),
		codes:           make(map[string]*core.AuthorizationCode),
		codeToAccess:    make(map[string]string),
	}
}

// ---- Clients ----

func (s *Store) ClientByID(ctx context.Context, id string) (*core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cl, ok := s.clients[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *cl
	return &cp, nil
}

func (s *Store) RevokeClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
	return nil
}

// ---- Owners ----

func (s *Store) OwnerByUsername(ctx context.Context, username string) (*core.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ownersByName[username]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s.owners[id]
	return &cp, nil
}

func (s *Store) OwnerByID(ctx context.Context, id string) (*core.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) RevokeOwnerAccess(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for access, t := range s.tokensByAccess {
		if t.OwnerID != nil && *t.OwnerID == ownerID {
			s.dropTokenLocked(access)
		}
	}
	for code, c := range s.codes {
		if c.OwnerID == ownerID {
			delete(s.codes, code)
			delete(s.codeToAccess, code)
		}
	}
	return nil
}

// AllowedScopesForOwner devuelve scope.Any para owners sin restricción
// registrada.
func (s *Store) AllowedScopesForOwner(ctx context.Context, o *core.Owner) (scope.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.ownerScopes[o.ID]; ok {
		return set, nil
	}
	return scope.Any, nil
}

// ---- Tokens ----

func (s *Store) TokenByAccess(ctx context.Context, accessToken string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokensByAccess[accessToken]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) TokenByRefresh(ctx context.Context, refreshToken string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	access, ok := s.refreshToAccess[refreshToken]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *s.tokensByAccess[access]
	return &cp, nil
}

func (s *Store) StoreToken(ctx context.Context, t *core.Token, issuedFromCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokensByAccess[t.AccessToken]; exists {
		return core.ErrConflict
	}
	if issuedFromCode != "" {
		c, ok := s.codes[issuedFromCode]
		if !ok {
			return core.ErrNotFound
		}
		// Misma escritura: persistir token y marcar el code como canjeado.
		c.Exchanged = true
		s.codeToAccess[issuedFromCode] = t.AccessToken
	}
	cp := *t
	s.tokensByAccess[t.AccessToken] = &cp
	if t.RefreshToken != nil {
		s.refreshToAccess[*t.RefreshToken] = t.AccessToken
	}
	return nil
}

func (s *Store) ReplaceAccessToken(ctx context.Context, oldAccess, newAccess string, issuedAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokensByAccess[oldAccess]
	if !ok {
		return core.ErrNotFound
	}
	cp := *old
	cp.AccessToken = newAccess
	cp.IssuedAt = issuedAt
	cp.ExpiresAt = expiresAt

	delete(s.tokensByAccess, oldAccess)
	s.tokensByAccess[newAccess] = &cp
	if cp.RefreshToken != nil {
		s.refreshToAccess[*cp.RefreshToken] = newAccess
	}
	for code, access := range s.codeToAccess {
		if access == oldAccess {
			s.codeToAccess[code] = newAccess
		}
	}
	return nil
}

func (s *Store) DeleteTokenByRefresh(ctx context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	access, ok := s.refreshToAccess[refreshToken]
	if !ok {
		return nil
	}
	s.dropTokenLocked(access)
	return nil
}

// ---- Authorization codes ----

func (s *Store) CodeByCode(ctx context.Context, code string) (*core.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) StoreCode(ctx context.Context, c *core.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[c.Code]; exists {
		return core.ErrConflict
	}
	cp := *c
	s.codes[c.Code] = &cp
	return nil
}

func (s *Store) RevokeCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	delete(s.codeToAccess, code)
	return nil
}

func (s *Store) RevokeTokenIssuedFromCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	access, ok := s.codeToAccess[code]
	if !ok {
		return nil
	}
	s.dropTokenLocked(access)
	delete(s.codeToAccess, code)
	return nil
}

// dropTokenLocked elimina un token y sus índices. Requiere mu tomado.
func (s *Store) dropTokenLocked(access string) {
	t, ok := s.tokensByAccess[access]
	if !ok {
		return
	}
	if t.RefreshToken != nil {
		delete(s.refreshToAccess, *t.RefreshToken)
	}
	delete(s.tokensByAccess, access)
}

// ---- Provisioning ----

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[c.ID]; exists {
		return core.ErrConflict
	}
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *Store) CreateOwner(ctx context.Context, o *core.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.owners[o.ID]; exists {
		return core.ErrConflict
	}
	if _, exists := s.ownersByName[o.Username]; exists {
		return core.ErrConflict
	}
	cp := *o
	s.owners[o.ID] = &cp
	s.ownersByName[o.Username] = o.ID
	return nil
}

func (s *Store) SetOwnerScopes(ctx context.Context, ownerID string, scopes scope.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerScopes[ownerID] = scopes
	return nil
}

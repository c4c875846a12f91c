// Package oauth implementa el engine de autorización: verificación de
// credenciales, ciclo de vida de tokens y authorization codes, negociación
// de scopes y las estrategias de autenticación de requests.
//
// Cada operación es autocontenida: valida inputs, consulta el
// CredentialStore, aplica el hasher y el modelo de scopes, y devuelve un
// resultado o una falla tipada (*Error). El engine no retiene estado de
// request; solo mantiene un cache acotado y de vida corta de Clients.
package oauth

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	"github.com/dropDatabas3/grantd/internal/observability/logger"
	"github.com/dropDatabas3/grantd/internal/security/secret"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

// Defaults de configuración del engine.
const (
	DefaultTokenTTL    = 24 * time.Hour   // password grant
	DefaultExchangeTTL = time.Hour        // token emitido desde un code
	DefaultCodeTTL     = 10 * time.Minute // authorization code

	DefaultClientCacheTTL  = time.Minute
	DefaultClientCacheSize = 1024
)

// Largos fijos (en bytes de entropía) de los identificadores emitidos.
const (
	accessTokenBytes  = 32
	refreshTokenBytes = 32
	codeBytes         = 32
)

// Config son las opciones reconocidas del engine. El valor cero toma los
// defaults documentados en cada campo.
type Config struct {
	HashRounds  int           // default 1000
	HashKeyLen  int           // default 32
	HashDigest  string        // "sha1" | "sha256" | "sha512" (default sha256)
	TokenTTL    time.Duration // default 24h
	ExchangeTTL time.Duration // default 1h
	CodeTTL     time.Duration // default 10m

	ClientCacheTTL  time.Duration // default 1m
	ClientCacheSize int           // default 1024 entradas
}

// Engine orquesta los grant flows contra un CredentialStore.
// Seguro para uso concurrente; llamadas para credenciales distintas no
// interfieren entre sí.
type Engine struct {
	store  core.CredentialStore
	params secret.Params

	tokenTTL    time.Duration
	exchangeTTL time.Duration
	codeTTL     time.Duration

	// Cache read-through de Clients, acotado por TTL corto y tamaño máximo.
	// Se invalida sincrónicamente en RevokeClient. Solo guarda positivos:
	// nunca enmascara un not-found del store.
	clients    *gocache.Cache
	clientsMax int

	// Hash de referencia para igualar el costo de comparación cuando el
	// client u owner no existe (disciplina anti timing leak).
	dummyHash string

	log *zap.Logger
}

// New construye un Engine sobre el store dado.
func New(store core.CredentialStore, cfg Config) (*Engine, error) {
	digest, err := secret.DigestByName(cfg.HashDigest)
	if err != nil {
		return nil, err
	}
	params := secret.Params{Rounds: cfg.HashRounds, KeyLen: cfg.HashKeyLen, Digest: digest}
	if params.Rounds <= 0 {
		params.Rounds = secret.Default.Rounds
	}
	if params.KeyLen <= 0 {
		params.KeyLen = secret.Default.KeyLen
	}

	ttl := cfg.ClientCacheTTL
	if ttl <= 0 {
		ttl = DefaultClientCacheTTL
	}
	size := cfg.ClientCacheSize
	if size <= 0 {
		size = DefaultClientCacheSize
	}

	e := &Engine{
		store:       store,
		params:      params,
		tokenTTL:    orDefault(cfg.TokenTTL, DefaultTokenTTL),
		exchangeTTL: orDefault(cfg.ExchangeTTL, DefaultExchangeTTL),
		codeTTL:     orDefault(cfg.CodeTTL, DefaultCodeTTL),
		clients:     gocache.New(ttl, 2*ttl),
		clientsMax:  size,
		log:         logger.Named("oauth"),
	}
	e.dummyHash = secret.Hash(e.params, "grantd-dummy-secret", "grantd-dummy-salt")
	return e, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Store expone el CredentialStore subyacente (revocaciones, seeds).
func (e *Engine) Store() core.CredentialStore { return e.store }

// TTLs efectivos del engine (con defaults aplicados).
func (e *Engine) TokenTTL() time.Duration    { return e.tokenTTL }
func (e *Engine) ExchangeTTL() time.Duration { return e.exchangeTTL }
func (e *Engine) CodeTTL() time.Duration     { return e.codeTTL }

// client resuelve un Client por id pasando por el cache.
// clientID vacío o not-found => invalid_client. Otros errores del store se
// propagan opacos.
func (e *Engine) client(ctx context.Context, clientID string) (*core.Client, error) {
	if clientID == "" {
		return nil, failf(ErrInvalidClient, nil, "missing client id")
	}
	if v, ok := e.clients.Get(clientID); ok {
		return v.(*core.Client), nil
	}
	cl, err := e.store.ClientByID(ctx, clientID)
	if errors.Is(err, core.ErrNotFound) {
		// Igualar el costo del path "client inexistente": una derivación
		// completa, como la que pagaría un secreto incorrecto.
		secret.Equal(secret.Hash(e.params, "grantd-dummy-secret", "grantd-dummy-salt"), e.dummyHash)
		return nil, failf(ErrInvalidClient, nil, "unknown client %q", clientID)
	}
	if err != nil {
		return nil, err
	}
	if e.clients.ItemCount() < e.clientsMax {
		e.clients.SetDefault(clientID, cl)
	}
	return cl, nil
}

// checkClientSecret valida el secreto presentado contra el hash del client.
// Un client público debe presentar secreto vacío; uno confidencial debe
// presentar uno que haga match exacto. La comparación se hace siempre contra
// un hash real o dummy, nunca se cortocircuita por el tipo de falla.
func (e *Engine) checkClientSecret(cl *core.Client, supplied string) *Error {
	if cl.IsPublic() {
		if supplied != "" {
			secret.Equal(secret.Hash(e.params, supplied, "grantd-dummy-salt"), e.dummyHash)
			return failf(ErrInvalidClient, cl, "public client must not present a secret")
		}
		return nil
	}
	if supplied == "" {
		secret.Equal(secret.Hash(e.params, supplied, cl.SecretSalt), e.dummyHash)
		return failf(ErrInvalidClient, cl, "missing client secret")
	}
	computed := secret.Hash(e.params, supplied, cl.SecretSalt)
	if !secret.Equal(computed, *cl.SecretHash) {
		return failf(ErrInvalidClient, cl, "client secret mismatch")
	}
	return nil
}

// checkOwnerPassword compara el password contra el hash del owner.
// owner == nil compara contra el dummy y falla igual (mismo costo).
func (e *Engine) checkOwnerPassword(o *core.Owner, password string) bool {
	if o == nil {
		secret.Equal(secret.Hash(e.params, password, "grantd-dummy-salt"), e.dummyHash)
		return false
	}
	return secret.Equal(secret.Hash(e.params, password, o.Salt), o.PasswordHash)
}

// RevokeClient revoca el client en el store e invalida el cache en la misma
// llamada, antes de retornar.
func (e *Engine) RevokeClient(ctx context.Context, clientID string) error {
	if err := e.store.RevokeClient(ctx, clientID); err != nil {
		return err
	}
	e.clients.Delete(clientID)
	e.log.Info("client revoked", zap.String("client_id", clientID))
	return nil
}

// RevokeOwnerAccess invalida todo acceso emitido para el owner.
func (e *Engine) RevokeOwnerAccess(ctx context.Context, ownerID string) error {
	return e.store.RevokeOwnerAccess(ctx, ownerID)
}

// resolveScopes aplica el filtro de dos etapas (client ∩ owner) compartido
// por Authenticate y AuthenticateForCode. Devuelve nil (token sin scoping)
// cuando el client no declara scopes soportados. Se evalúa en cada request,
// nunca se cachea.
func (e *Engine) resolveScopes(ctx context.Context, cl *core.Client, o *core.Owner, requested []string) ([]string, error) {
	if !cl.SupportsScoping() {
		return nil, nil
	}
	if len(requested) == 0 {
		return nil, failf(ErrInvalidScope, cl, "client requires an explicit scope request")
	}
	reqScopes, err := scope.ParseAll(requested)
	if err != nil {
		return nil, failf(ErrInvalidScope, cl, "malformed scope: %v", err)
	}
	clientSet, err := scope.ParseSet(cl.Scopes)
	if err != nil {
		return nil, err
	}

	granted := make([]scope.Scope, 0, len(reqScopes))
	for _, r := range reqScopes {
		if clientSet.Allows(r) {
			granted = append(granted, r)
		}
	}
	if len(granted) == 0 {
		return nil, failf(ErrInvalidScope, cl, "no requested scope is allowed for the client")
	}

	ownerSet, err := e.store.AllowedScopesForOwner(ctx, o)
	if err != nil {
		return nil, err
	}
	if !ownerSet.IsAny() {
		filtered := granted[:0]
		for _, g := range granted {
			if ownerSet.Allows(g) {
				filtered = append(filtered, g)
			}
		}
		granted = filtered
		if len(granted) == 0 {
			return nil, failf(ErrInvalidScope, cl, "no requested scope is allowed for the owner")
		}
	}

	out := make([]string, len(granted))
	for i, g := range granted {
		out[i] = g.String()
	}
	return out, nil
}

package oauth

import (
	"context"
	"errors"
)

// Credentials es la credencial presentada por un request entrante.
// Las implementaciones concretas son BasicCredentials y BearerCredentials.
type Credentials interface {
	kind() string
}

// BasicCredentials son credenciales estilo HTTP Basic: el username se
// interpreta como client id.
type BasicCredentials struct {
	Username string
	Secret   string
}

func (BasicCredentials) kind() string { return "basic" }

// BearerCredentials es un bearer token presentado directamente.
type BearerCredentials struct {
	Token string
}

func (BearerCredentials) kind() string { return "bearer" }

// Strategy autentica un request a partir de una credencial. Una falla de
// credenciales devuelve (nil, nil), silenciosa por diseño: el caller mapea
// nil a una respuesta unauthorized. Solo errores de storage se propagan,
// salvo ErrStrategyMisuse cuando se invoca con el tipo de credencial
// equivocado (bug del caller).
type Strategy interface {
	Authenticate(ctx context.Context, creds Credentials) (*Authorization, error)
}

type basicStrategy struct{ engine *Engine }

type bearerStrategy struct{ engine *Engine }

// BasicStrategy devuelve la estrategia de client credentials básicas.
func (e *Engine) BasicStrategy() Strategy { return basicStrategy{engine: e} }

// BearerStrategy devuelve la estrategia de bearer token (delega en Verify).
func (e *Engine) BearerStrategy() Strategy { return bearerStrategy{engine: e} }

func (s basicStrategy) Authenticate(ctx context.Context, creds Credentials) (*Authorization, error) {
	bc, ok := creds.(BasicCredentials)
	if !ok {
		return nil, ErrStrategyMisuse
	}

	cl, err := s.engine.client(ctx, bc.Username)
	if err != nil {
		var oe *Error
		if errors.As(err, &oe) {
			return nil, nil
		}
		return nil, err
	}

	// Secreto vacío solo vale para un client público (sin hash almacenado)
	// y produce una autorización sin owner.
	if ferr := s.engine.checkClientSecret(cl, bc.Secret); ferr != nil {
		return nil, nil
	}
	return &Authorization{ClientID: cl.ID, engine: s.engine}, nil
}

func (s bearerStrategy) Authenticate(ctx context.Context, creds Credentials) (*Authorization, error) {
	tc, ok := creds.(BearerCredentials)
	if !ok {
		return nil, ErrStrategyMisuse
	}
	return s.engine.Verify(ctx, tc.Token)
}

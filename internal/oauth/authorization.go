package oauth

import "github.com/dropDatabas3/grantd/internal/oauth/scope"

// Authorization es la identidad resuelta de un request autenticado.
// Value object: no se persiste. Mantiene una referencia al engine que la
// produjo para chequeos de política secundarios.
type Authorization struct {
	ClientID string
	OwnerID  *string  // nil para grants solo-cliente
	Scopes   []string // nil => sin scoping

	engine *Engine
}

// Engine devuelve el engine que produjo esta autorización.
func (a *Authorization) Engine() *Engine { return a.engine }

// Allows reporta si la autorización cubre el scope requerido.
// Una autorización sin scoping (Scopes nil) no restringe.
func (a *Authorization) Allows(required scope.Scope) bool {
	if a.Scopes == nil {
		return true
	}
	set, err := scope.ParseSet(a.Scopes)
	if err != nil {
		return false
	}
	return set.Allows(required)
}

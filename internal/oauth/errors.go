package oauth

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/grantd/internal/store/core"
)

// ErrorCode es la enumeración cerrada de fallas esperadas de
// autenticación/autorización (vocabulario OAuth2 estándar).
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "invalid_request"
	ErrInvalidClient      ErrorCode = "invalid_client"
	ErrInvalidGrant       ErrorCode = "invalid_grant"
	ErrInvalidScope       ErrorCode = "invalid_scope"
	ErrUnauthorizedClient ErrorCode = "unauthorized_client"
	ErrAccessDenied       ErrorCode = "access_denied"
)

// Error es el resultado terminal de un paso de validación de un grant.
// Representa un "request no autorizado" normal, no un bug: el caller de
// entrada lo captura siempre y lo traduce a la respuesta del protocolo.
// Lleva el Client ofensor (puede ser nil) para logging/mapeo downstream.
type Error struct {
	Code        ErrorCode
	Description string
	Client      *core.Client
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// ErrStrategyMisuse indica que una estrategia de validación fue invocada con
// el tipo de credencial equivocado. Es una violación de contrato del caller
// (bug de programación), no una falla de credenciales: debe abortar el
// request con una respuesta de server fault.
var ErrStrategyMisuse = errors.New("oauth: validation strategy invoked with wrong credential type")

func failf(code ErrorCode, cl *core.Client, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...), Client: cl}
}

// CodeOf extrae el ErrorCode de un error del engine.
// Devuelve ("", false) para fallas de infraestructura u otros errores.
func CodeOf(err error) (ErrorCode, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code, true
	}
	return "", false
}

// IsCode reporta si err es un *Error con el código dado.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/grantd/internal/oauth"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError escribe un error OAuth2 con el shape estándar del protocolo.
func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		RequestID:        rid,
	})
}

// WriteEngineError traduce un error del engine a la respuesta del protocolo.
// Las fallas esperadas (*oauth.Error) se mapean a su código OAuth2; el mal
// uso de estrategia y los errores de infraestructura son server faults.
func WriteEngineError(w http.ResponseWriter, err error) {
	var oe *oauth.Error
	if errors.As(err, &oe) {
		status := http.StatusBadRequest
		if oe.Code == oauth.ErrInvalidClient {
			status = http.StatusUnauthorized
			w.Header().Set("WWW-Authenticate", `Basic realm="grantd"`)
		}
		WriteError(w, status, string(oe.Code), oe.Description)
		return
	}
	if errors.Is(err, oauth.ErrStrategyMisuse) {
		WriteError(w, http.StatusInternalServerError, "server_error", "validation strategy misuse")
		return
	}
	WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
}

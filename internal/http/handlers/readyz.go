package handlers

import (
	"context"
	"net/http"
	"time"

	httpx "github.com/dropDatabas3/grantd/internal/http"
)

// Pinger reporta si el backend de almacenamiento responde.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewReadyzHandler responde 200 si el store contesta el ping, 503 si no.
// Con pinger nil (store en memoria) siempre está listo.
func NewReadyzHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

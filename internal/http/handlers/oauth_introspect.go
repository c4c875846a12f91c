package handlers

import (
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/grantd/internal/http"
	"github.com/dropDatabas3/grantd/internal/metrics"
	"github.com/dropDatabas3/grantd/internal/oauth"
)

// introspectResponse sigue el shape de RFC 7662: active=false sin más
// detalle cuando el token no es válido.
type introspectResponse struct {
	Active   bool   `json:"active"`
	ClientID string `json:"client_id,omitempty"`
	OwnerID  string `json:"owner_id,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// NewOAuthIntrospectHandler maneja POST /oauth/introspect. El caller se
// autentica con HTTP Basic (client id + secret) vía BasicStrategy; el
// token a inspeccionar viaja en el form.
func NewOAuthIntrospectHandler(e *oauth.Engine) http.HandlerFunc {
	basic := e.BasicStrategy()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "form inválido")
			return
		}

		ctx := r.Context()

		id, sec, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="grantd"`)
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_client", "credenciales requeridas")
			return
		}
		caller, err := basic.Authenticate(ctx, oauth.BasicCredentials{Username: id, Secret: sec})
		if err != nil {
			httpx.WriteEngineError(w, err)
			return
		}
		if caller == nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="grantd"`)
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_client", "credenciales inválidas")
			return
		}

		token := strings.TrimSpace(r.PostForm.Get("token"))
		auth, err := e.Verify(ctx, token)
		if err != nil {
			httpx.WriteEngineError(w, err)
			return
		}
		if auth == nil {
			metrics.ObserveVerify("inactive")
			httpx.WriteJSON(w, http.StatusOK, introspectResponse{Active: false})
			return
		}

		metrics.ObserveVerify("active")
		resp := introspectResponse{
			Active:   true,
			ClientID: auth.ClientID,
		}
		if auth.OwnerID != nil {
			resp.OwnerID = *auth.OwnerID
		}
		if auth.Scopes != nil {
			resp.Scope = strings.Join(auth.Scopes, " ")
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	httpx "github.com/dropDatabas3/grantd/internal/http"
	"github.com/dropDatabas3/grantd/internal/metrics"
	"github.com/dropDatabas3/grantd/internal/oauth"
	"github.com/dropDatabas3/grantd/internal/observability/logger"
)

// codeResponse es la respuesta de la pata de autorización: el code de un
// solo uso que el client debe canjear en /oauth/token.
type codeResponse struct {
	Code      string `json:"code"`
	ExpiresIn int64  `json:"expires_in"`
	Scope     string `json:"scope,omitempty"`
}

// NewOAuthAuthorizeHandler maneja POST /oauth/authorize: autentica al
// resource owner con usuario y password y emite un authorization code.
// El client NO presenta secret en esta pata; el secret se exige recién en
// el exchange.
func NewOAuthAuthorizeHandler(e *oauth.Engine) http.HandlerFunc {
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
		clientID := strings.TrimSpace(r.PostForm.Get("client_id"))
		username := strings.TrimSpace(r.PostForm.Get("username"))
		password := r.PostForm.Get("password")
		scopes := splitScopes(r.PostForm.Get("scope"))

		start := time.Now()
		ac, err := e.AuthenticateForCode(ctx, username, password, clientID, e.CodeTTL(), scopes)
		if err != nil {
			metrics.ObserveGrant("authorize", grantResult(err), time.Since(start))
			logger.From(ctx).Info("authorize rejected",
				logger.ClientID(clientID),
				logger.Err(err),
			)
			httpx.WriteEngineError(w, err)
			return
		}

		metrics.ObserveGrant("authorize", "ok", time.Since(start))
		resp := codeResponse{
			Code:      ac.Code,
			ExpiresIn: int64(time.Until(ac.ExpiresAt).Seconds()),
		}
		if ac.Scopes != nil {
			resp.Scope = strings.Join(ac.Scopes, " ")
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}

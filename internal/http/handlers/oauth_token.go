package handlers

import (
	"net/http"
	"strings"
	"time"

	httpx "github.com/dropDatabas3/grantd/internal/http"
	"github.com/dropDatabas3/grantd/internal/metrics"
	"github.com/dropDatabas3/grantd/internal/oauth"
	"github.com/dropDatabas3/grantd/internal/observability/logger"
	"github.com/dropDatabas3/grantd/internal/store/core"
)

// tokenResponse es el shape estándar del token endpoint (RFC 6749 §5.1).
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func toTokenResponse(t *core.Token) tokenResponse {
	resp := tokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresIn:   int64(time.Until(t.ExpiresAt).Seconds()),
	}
	if t.RefreshToken != nil {
		resp.RefreshToken = *t.RefreshToken
	}
	if t.Scopes != nil {
		resp.Scope = strings.Join(t.Scopes, " ")
	}
	return resp
}

// splitScopes parsea el parámetro "scope" space-delimited.
// nil (ausente) y lista explícita son cosas distintas para el engine.
func splitScopes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// clientCredentials extrae client_id/client_secret del request: primero
// HTTP Basic, después los params del form.
func clientCredentials(r *http.Request) (string, string) {
	if id, sec, ok := r.BasicAuth(); ok {
		return id, sec
	}
	return strings.TrimSpace(r.PostForm.Get("client_id")), r.PostForm.Get("client_secret")
}

// grantResult etiqueta el resultado de un grant para métricas.
func grantResult(err error) string {
	if code, ok := oauth.CodeOf(err); ok {
		return string(code)
	}
	return "error"
}

// NewOAuthTokenHandler maneja POST /oauth/token para los tres grants:
// password, refresh_token y authorization_code.
func NewOAuthTokenHandler(e *oauth.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST")
			return
		}
		// OAuth2: application/x-www-form-urlencoded
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10) // 64KB
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "form inválido")
			return
		}

		ctx := r.Context()
		grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
		clientID, clientSecret := clientCredentials(r)

		start := time.Now()
		var (
			tok *core.Token
			err error
		)

		switch grantType {

		case "password":
			username := strings.TrimSpace(r.PostForm.Get("username"))
			password := r.PostForm.Get("password")
			scopes := splitScopes(r.PostForm.Get("scope"))
			tok, err = e.Authenticate(ctx, username, password, clientID, clientSecret, e.TokenTTL(), scopes)

		case "refresh_token":
			refresh := strings.TrimSpace(r.PostForm.Get("refresh_token"))
			scopes := splitScopes(r.PostForm.Get("scope"))
			tok, err = e.Refresh(ctx, refresh, clientID, clientSecret, scopes)

		case "authorization_code":
			code := strings.TrimSpace(r.PostForm.Get("code"))
			tok, err = e.Exchange(ctx, code, clientID, clientSecret, e.ExchangeTTL())

		default:
			metrics.ObserveGrant(grantType, "unsupported", time.Since(start))
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type no soportado")
			return
		}

		if err != nil {
			metrics.ObserveGrant(grantType, grantResult(err), time.Since(start))
			logger.From(ctx).Info("grant rejected",
				logger.Grant(grantType),
				logger.ClientID(clientID),
				logger.Err(err),
			)
			httpx.WriteEngineError(w, err)
			return
		}

		metrics.ObserveGrant(grantType, "ok", time.Since(start))
		logger.From(ctx).Info("grant issued",
			logger.Grant(grantType),
			logger.ClientID(tok.ClientID),
		)
		httpx.WriteJSON(w, http.StatusOK, toTokenResponse(tok))
	}
}

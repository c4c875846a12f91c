package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/grantd/internal/http/handlers"
	mw "github.com/dropDatabas3/grantd/internal/http/middlewares"
	"github.com/dropDatabas3/grantd/internal/oauth"
)

// RouterDeps son las dependencias del router principal.
type RouterDeps struct {
	Engine *oauth.Engine
	Pinger handlers.Pinger // nil con store en memoria

	// Metrics, si no es nil, monta /metrics en este router (cuando no hay
	// listener dedicado).
	Metrics http.Handler
}

// New arma el router del servicio con el middleware chain estándar.
func New(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	oauthChain := func(h http.Handler) http.Handler {
		return mw.Chain(h,
			mw.WithRecover(),
			mw.WithRequestID(),
			mw.WithNoStore(),
			mw.WithLogging(),
		)
	}

	r.Method(http.MethodPost, "/oauth/token", oauthChain(handlers.NewOAuthTokenHandler(deps.Engine)))
	r.Method(http.MethodPost, "/oauth/authorize", oauthChain(handlers.NewOAuthAuthorizeHandler(deps.Engine)))
	r.Method(http.MethodPost, "/oauth/introspect", oauthChain(handlers.NewOAuthIntrospectHandler(deps.Engine)))

	r.Method(http.MethodGet, "/readyz", mw.Chain(
		handlers.NewReadyzHandler(deps.Pinger),
		mw.WithRecover(),
		mw.WithRequestID(),
	))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}

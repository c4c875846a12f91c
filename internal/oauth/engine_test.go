package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/grantd/internal/oauth/scope"
	"github.com/dropDatabas3/grantd/internal/security/secret"
	"github.com/dropDatabas3/grantd/internal/store/core"
	"github.com/dropDatabas3/grantd/internal/store/memory"
)

// testParams baja las rondas PBKDF2 para que la suite corra rápido.
var testParams = Config{HashRounds: 10, HashKeyLen: 32}

type fixture struct {
	engine *Engine
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	e, err := New(st, testParams)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{engine: e, store: st}
}

func (f *fixture) hash(t *testing.T, plain, salt string) string {
	t.Helper()
	return secret.Hash(secret.Params{Rounds: 10, KeyLen: 32}, plain, salt)
}

// seedClient crea un client confidencial; secret vacío lo hace público.
func (f *fixture) seedClient(t *testing.T, id, sec string, redirectURI string, scopes []string) *core.Client {
	t.Helper()
	cl := &core.Client{
		ID:        id,
		Name:      id,
		Scopes:    scopes,
		CreatedAt: time.Now().UTC(),
	}
	if sec != "" {
		salt := "salt-" + id
		h := f.hash(t, sec, salt)
		cl.SecretSalt = salt
		cl.SecretHash = &h
	}
	if redirectURI != "" {
		cl.RedirectURI = &redirectURI
	}
	if err := f.store.CreateClient(context.Background(), cl); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	return cl
}

func (f *fixture) seedOwner(t *testing.T, id, username, password string) *core.Owner {
	t.Helper()
	salt := "salt-" + id
	o := &core.Owner{
		ID:           id,
		Username:     username,
		Salt:         salt,
		PasswordHash: f.hash(t, password, salt),
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.store.CreateOwner(context.Background(), o); err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	return o
}

func (f *fixture) setOwnerScopes(t *testing.T, ownerID string, ss ...string) {
	t.Helper()
	set, err := scope.ParseSet(ss)
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	if err := f.store.SetOwnerScopes(context.Background(), ownerID, set); err != nil {
		t.Fatalf("SetOwnerScopes: %v", err)
	}
}

func wantCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("esperaba error %s, fue nil", code)
	}
	if got, ok := CodeOf(err); !ok || got != code {
		t.Fatalf("esperaba %s, vino: %v", code, err)
	}
}

// ---- password grant ----

func TestAuthenticate_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "c1-secret", "", nil)
	f.seedOwner(t, "u1", "alice", "pw-alice")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw-alice", "c1", "c1-secret", 0, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == nil {
		t.Fatalf("client confidencial debe recibir access y refresh")
	}
	if tok.OwnerID == nil || *tok.OwnerID != "u1" {
		t.Fatalf("owner id: %v", tok.OwnerID)
	}
	if tok.Scopes != nil {
		t.Fatalf("client sin scoping emite token sin scopes, vino %v", tok.Scopes)
	}

	auth, err := f.engine.Verify(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if auth == nil {
		t.Fatalf("token recién emitido debe verificar")
	}
	if auth.ClientID != "c1" || auth.OwnerID == nil || *auth.OwnerID != "u1" {
		t.Fatalf("authorization inesperada: %+v", auth)
	}
}

func TestAuthenticate_UnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Authenticate(context.Background(), "alice", "pw", "nope", "", 0, nil)
	wantCode(t, err, ErrInvalidClient)
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	f := newFixture(t)
	f.seedClient(t, "c1", "s", "", nil)
	_, err := f.engine.Authenticate(context.Background(), "", "pw", "c1", "s", 0, nil)
	wantCode(t, err, ErrInvalidRequest)
	_, err = f.engine.Authenticate(context.Background(), "alice", "", "c1", "s", 0, nil)
	wantCode(t, err, ErrInvalidRequest)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.seedClient(t, "c1", "s", "", nil)
	f.seedOwner(t, "u1", "alice", "pw-alice")
	_, err := f.engine.Authenticate(context.Background(), "alice", "wrong", "c1", "s", 0, nil)
	wantCode(t, err, ErrInvalidGrant)
	_, err = f.engine.Authenticate(context.Background(), "ghost", "pw", "c1", "s", 0, nil)
	wantCode(t, err, ErrInvalidGrant)
}

func TestAuthenticate_PublicClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "pub", "", "", nil)
	f.seedOwner(t, "u1", "alice", "pw-alice")

	// Un client público que presenta secreto es invalid_client.
	_, err := f.engine.Authenticate(ctx, "alice", "pw-alice", "pub", "some-secret", 0, nil)
	wantCode(t, err, ErrInvalidClient)

	tok, err := f.engine.Authenticate(ctx, "alice", "pw-alice", "pub", "", 0, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.RefreshToken != nil {
		t.Fatalf("client público no recibe refresh token")
	}
}

func TestAuthenticate_ScopeNegotiation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", []string{"profile", "orders:read"})
	f.seedOwner(t, "u1", "alice", "pw")

	// Sin request explícito contra un client con scoping => invalid_scope.
	_, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, nil)
	wantCode(t, err, ErrInvalidScope)

	// Se otorga la intersección con lo que el client permite.
	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, []string{"profile:read", "payments"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(tok.Scopes) != 1 || tok.Scopes[0] != "profile:read" {
		t.Fatalf("scopes otorgados: %v", tok.Scopes)
	}

	// Nada permitido => invalid_scope.
	_, err = f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, []string{"payments"})
	wantCode(t, err, ErrInvalidScope)
}

func TestAuthenticate_OwnerScopeFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", []string{"profile", "orders"})
	o := f.seedOwner(t, "u1", "alice", "pw")
	f.setOwnerScopes(t, o.ID, "profile")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, []string{"profile:read", "orders:read"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(tok.Scopes) != 1 || tok.Scopes[0] != "profile:read" {
		t.Fatalf("el filtro del owner debía dejar solo profile:read: %v", tok.Scopes)
	}

	_, err = f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, []string{"orders:read"})
	wantCode(t, err, ErrInvalidScope)
}

// ---- verify ----

func TestVerify_UnknownOrEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, tokstr := range []string{"", "nope"} {
		auth, err := f.engine.Verify(ctx, tokstr)
		if err != nil {
			t.Fatalf("Verify(%q): %v", tokstr, err)
		}
		if auth != nil {
			t.Fatalf("Verify(%q) debía ser nil", tokstr)
		}
	}
}

func TestVerify_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	auth, err := f.engine.Verify(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if auth != nil {
		t.Fatalf("token expirado no debe verificar")
	}
}

func TestVerify_RequiredScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", []string{"profile"})
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, []string{"profile"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// El scope otorgado cubre requerimientos más profundos.
	auth, err := f.engine.Verify(ctx, tok.AccessToken, "profile:read")
	if err != nil || auth == nil {
		t.Fatalf("profile debía cubrir profile:read: auth=%v err=%v", auth, err)
	}
	// Un requerimiento fuera del grant no pasa.
	auth, err = f.engine.Verify(ctx, tok.AccessToken, "orders")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if auth != nil {
		t.Fatalf("orders no está otorgado")
	}
}

func TestVerify_UnscopedTokenPassesAnyRequirement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", nil) // sin scoping
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	auth, err := f.engine.Verify(ctx, tok.AccessToken, "anything:at:all")
	if err != nil || auth == nil {
		t.Fatalf("token sin scoping pasa cualquier requerimiento: auth=%v err=%v", auth, err)
	}
	if !auth.Allows(scope.MustParse("whatever")) {
		t.Fatalf("Authorization sin scopes permite todo")
	}
}

// ---- refresh grant ----

func TestRefresh_RotatesAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	old, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", time.Hour, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	renewed, err := f.engine.Refresh(ctx, *old.RefreshToken, "c1", "s", nil)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if renewed.AccessToken == old.AccessToken {
		t.Fatalf("el access token debe rotar")
	}
	if renewed.RefreshToken == nil || *renewed.RefreshToken != *old.RefreshToken {
		t.Fatalf("el refresh token string se conserva")
	}
	// Renovación: misma duración original, contada desde ahora.
	if got := renewed.Lifetime(); got != time.Hour {
		t.Fatalf("lifetime renovado: %v", got)
	}

	// El access viejo queda muerto, el nuevo verifica.
	auth, err := f.engine.Verify(ctx, old.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if auth != nil {
		t.Fatalf("el access reemplazado no debe verificar")
	}
	auth, err = f.engine.Verify(ctx, renewed.AccessToken)
	if err != nil || auth == nil {
		t.Fatalf("el access nuevo debe verificar: auth=%v err=%v", auth, err)
	}
}

func TestRefresh_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", nil)
	f.seedClient(t, "c2", "s2", "", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	_, err = f.engine.Refresh(ctx, "", "c1", "s", nil)
	wantCode(t, err, ErrInvalidRequest)

	_, err = f.engine.Refresh(ctx, "unknown-refresh", "c1", "s", nil)
	wantCode(t, err, ErrInvalidGrant)

	// Token emitido a otro client.
	_, err = f.engine.Refresh(ctx, *tok.RefreshToken, "c2", "s2", nil)
	wantCode(t, err, ErrInvalidGrant)

	// Secreto incorrecto.
	_, err = f.engine.Refresh(ctx, *tok.RefreshToken, "c1", "wrong", nil)
	wantCode(t, err, ErrInvalidClient)
}

func TestRefresh_NarrowScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", []string{"profile", "orders"})
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, []string{"profile", "orders"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// Estrechar a un subset más profundo está permitido.
	renewed, err := f.engine.Refresh(ctx, *tok.RefreshToken, "c1", "s", []string{"profile:read"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(renewed.Scopes) != 1 || renewed.Scopes[0] != "profile:read" {
		t.Fatalf("scopes renovados: %v", renewed.Scopes)
	}

	// Ampliar fuera del grant original es invalid_scope.
	_, err = f.engine.Refresh(ctx, *renewed.RefreshToken, "c1", "s", []string{"payments"})
	wantCode(t, err, ErrInvalidScope)
}

func TestRefresh_StoresCanonicalScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", []string{"profile"})
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, []string{"profile"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// El parser tolera whitespace alrededor; el token renovado debe quedar
	// con la forma canónica, no con el input crudo.
	renewed, err := f.engine.Refresh(ctx, *tok.RefreshToken, "c1", "s", []string{"  profile:read  "})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(renewed.Scopes) != 1 || renewed.Scopes[0] != "profile:read" {
		t.Fatalf("scopes renovados no canónicos: %q", renewed.Scopes)
	}
}

// ---- authorization code grant ----

func TestCodeFlow_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "https://app.example/cb", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	ac, err := f.engine.AuthenticateForCode(ctx, "alice", "pw", "c1", 0, nil)
	if err != nil {
		t.Fatalf("AuthenticateForCode: %v", err)
	}
	if ac.Code == "" || ac.OwnerID != "u1" {
		t.Fatalf("code inesperado: %+v", ac)
	}

	tok, err := f.engine.Exchange(ctx, ac.Code, "c1", "s", 0)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	auth, err := f.engine.Verify(ctx, tok.AccessToken)
	if err != nil || auth == nil {
		t.Fatalf("el token canjeado debe verificar: auth=%v err=%v", auth, err)
	}
}

func TestCodeFlow_NoRedirectURI(t *testing.T) {
	f := newFixture(t)
	f.seedClient(t, "c1", "s", "", nil)
	f.seedOwner(t, "u1", "alice", "pw")
	_, err := f.engine.AuthenticateForCode(context.Background(), "alice", "pw", "c1", 0, nil)
	wantCode(t, err, ErrUnauthorizedClient)
}

func TestCodeFlow_BadOwnerCredentialsAreAccessDenied(t *testing.T) {
	f := newFixture(t)
	f.seedClient(t, "c1", "s", "https://app.example/cb", nil)
	f.seedOwner(t, "u1", "alice", "pw")
	_, err := f.engine.AuthenticateForCode(context.Background(), "alice", "wrong", "c1", 0, nil)
	wantCode(t, err, ErrAccessDenied)
	_, err = f.engine.AuthenticateForCode(context.Background(), "ghost", "pw", "c1", 0, nil)
	wantCode(t, err, ErrAccessDenied)
}

func TestCodeFlow_ReplayRevokesIssuedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "https://app.example/cb", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	ac, err := f.engine.AuthenticateForCode(ctx, "alice", "pw", "c1", 0, nil)
	if err != nil {
		t.Fatalf("AuthenticateForCode: %v", err)
	}
	tok, err := f.engine.Exchange(ctx, ac.Code, "c1", "s", 0)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	// Segundo canje: invalid_grant y el token emitido queda revocado.
	_, err = f.engine.Exchange(ctx, ac.Code, "c1", "s", 0)
	wantCode(t, err, ErrInvalidGrant)

	auth, err := f.engine.Verify(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if auth != nil {
		t.Fatalf("el token del primer canje debe quedar revocado tras el replay")
	}
}

func TestCodeFlow_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "https://app.example/cb", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	ac, err := f.engine.AuthenticateForCode(ctx, "alice", "pw", "c1", time.Millisecond, nil)
	if err != nil {
		t.Fatalf("AuthenticateForCode: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, err = f.engine.Exchange(ctx, ac.Code, "c1", "s", 0)
	wantCode(t, err, ErrInvalidGrant)
	// El code revocado tampoco sirve después.
	_, err = f.engine.Exchange(ctx, ac.Code, "c1", "s", 0)
	wantCode(t, err, ErrInvalidGrant)
}

func TestCodeFlow_WrongClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "https://app.example/cb", nil)
	f.seedClient(t, "c2", "s2", "https://other.example/cb", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	ac, err := f.engine.AuthenticateForCode(ctx, "alice", "pw", "c1", 0, nil)
	if err != nil {
		t.Fatalf("AuthenticateForCode: %v", err)
	}
	_, err = f.engine.Exchange(ctx, ac.Code, "c2", "s2", 0)
	wantCode(t, err, ErrInvalidGrant)
}

// ---- revocaciones ----

func TestRevokeClient_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	// Primer grant mete el client en el cache.
	if _, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, nil); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := f.engine.RevokeClient(ctx, "c1"); err != nil {
		t.Fatalf("RevokeClient: %v", err)
	}
	// Revocado: el próximo grant no lo encuentra aunque estaba cacheado.
	_, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, nil)
	wantCode(t, err, ErrInvalidClient)
}

func TestRevokeOwnerAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := f.engine.RevokeOwnerAccess(ctx, "u1"); err != nil {
		t.Fatalf("RevokeOwnerAccess: %v", err)
	}
	auth, err := f.engine.Verify(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if auth != nil {
		t.Fatalf("el acceso del owner revocado no debe verificar")
	}
}

// measureMin ejecuta fn n veces y devuelve la duración mínima (amortigua
// ruido del scheduler).
func measureMin(n int, fn func()) time.Duration {
	best := time.Duration(1<<63 - 1)
	for i := 0; i < n; i++ {
		start := time.Now()
		fn()
		if d := time.Since(start); d < best {
			best = d
		}
	}
	return best
}

func TestAuthenticate_UnknownClientPaysFullDerivation(t *testing.T) {
	// Rondas altas para que la derivación domine el tiempo de la llamada.
	const rounds = 50000
	st := memory.New()
	e, err := New(st, Config{HashRounds: rounds, HashKeyLen: 32})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	salt := "salt-c1"
	h := secret.Hash(secret.Params{Rounds: rounds, KeyLen: 32}, "real-secret", salt)
	if cerr := st.CreateClient(context.Background(), &core.Client{
		ID: "c1", Name: "c1", SecretSalt: salt, SecretHash: &h, CreatedAt: time.Now().UTC(),
	}); cerr != nil {
		t.Fatalf("CreateClient: %v", cerr)
	}

	ctx := context.Background()

	wrongSecret := measureMin(3, func() {
		if _, aerr := e.Authenticate(ctx, "alice", "pw", "c1", "wrong", 0, nil); !IsCode(aerr, ErrInvalidClient) {
			t.Fatalf("esperaba invalid_client: %v", aerr)
		}
	})
	unknownClient := measureMin(3, func() {
		if _, aerr := e.Authenticate(ctx, "alice", "pw", "ghost", "wrong", 0, nil); !IsCode(aerr, ErrInvalidClient) {
			t.Fatalf("esperaba invalid_client: %v", aerr)
		}
	})
	missingSecret := measureMin(3, func() {
		if _, aerr := e.Authenticate(ctx, "alice", "pw", "c1", "", 0, nil); !IsCode(aerr, ErrInvalidClient) {
			t.Fatalf("esperaba invalid_client: %v", aerr)
		}
	})

	// Ambos paths de falla deben costar una derivación, como wrong-secret.
	// Un path barato delataría "el client existe / no existe" por timing.
	if unknownClient*5 < wrongSecret {
		t.Fatalf("client desconocido (%v) es mucho más barato que secreto incorrecto (%v)", unknownClient, wrongSecret)
	}
	if missingSecret*5 < wrongSecret {
		t.Fatalf("secreto faltante (%v) es mucho más barato que secreto incorrecto (%v)", missingSecret, wrongSecret)
	}
}

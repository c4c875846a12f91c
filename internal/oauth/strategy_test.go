package oauth

import (
	"context"
	"testing"
)

func TestBasicStrategy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "c1-secret", "", nil)

	basic := f.engine.BasicStrategy()

	auth, err := basic.Authenticate(ctx, BasicCredentials{Username: "c1", Secret: "c1-secret"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if auth == nil || auth.ClientID != "c1" {
		t.Fatalf("esperaba autorización para c1: %+v", auth)
	}
	if auth.OwnerID != nil {
		t.Fatalf("una autorización de client no lleva owner")
	}

	// Credenciales malas: nil silencioso, sin error.
	for _, creds := range []BasicCredentials{
		{Username: "c1", Secret: "wrong"},
		{Username: "ghost", Secret: "x"},
		{Username: "c1", Secret: ""},
	} {
		auth, err := basic.Authenticate(ctx, creds)
		if err != nil {
			t.Fatalf("Authenticate(%+v): %v", creds, err)
		}
		if auth != nil {
			t.Fatalf("credenciales inválidas deben dar nil: %+v", creds)
		}
	}
}

func TestBearerStrategy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedClient(t, "c1", "s", "", nil)
	f.seedOwner(t, "u1", "alice", "pw")

	tok, err := f.engine.Authenticate(ctx, "alice", "pw", "c1", "s", 0, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	bearer := f.engine.BearerStrategy()
	auth, err := bearer.Authenticate(ctx, BearerCredentials{Token: tok.AccessToken})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if auth == nil || auth.ClientID != "c1" {
		t.Fatalf("autorización inesperada: %+v", auth)
	}

	auth, err = bearer.Authenticate(ctx, BearerCredentials{Token: "nope"})
	if err != nil || auth != nil {
		t.Fatalf("token desconocido debe dar nil/nil: %v %v", auth, err)
	}
}

func TestStrategy_Misuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.BasicStrategy().Authenticate(ctx, BearerCredentials{Token: "x"}); err != ErrStrategyMisuse {
		t.Fatalf("basic con bearer creds: %v", err)
	}
	if _, err := f.engine.BearerStrategy().Authenticate(ctx, BasicCredentials{Username: "a"}); err != ErrStrategyMisuse {
		t.Fatalf("bearer con basic creds: %v", err)
	}
}

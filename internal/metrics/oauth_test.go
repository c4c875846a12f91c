package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegister_ServesProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := Register(reg)

	ObserveGrant("password", "ok", 5*time.Millisecond)
	ObserveVerify("active")
	ObserveVerify("inactive")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	// Si el handler sirviera el gatherer default, nada de esto aparecería.
	for _, want := range []string{
		`grantd_grants_total{grant="password",result="ok"} 1`,
		`grantd_token_verifications_total{result="active"} 1`,
		`grantd_token_verifications_total{result="inactive"} 1`,
		"grantd_grant_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("falta %q en /metrics:\n%s", want, body)
		}
	}
}

// Package metrics expone los contadores Prometheus del servicio.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	grantsTotal   *prometheus.CounterVec
	grantDuration *prometheus.HistogramVec
	verifyTotal   *prometheus.CounterVec
)

// Register inicializa y registra las métricas. Devuelve el handler para
// /metrics. Idempotente: solo el primer Register registra.
func Register(registry prometheus.Registerer) http.Handler {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	once.Do(func() {
		grantsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantd_grants_total",
			Help: "Grants procesados por tipo y resultado",
		}, []string{"grant", "result"}) // result: ok | <error code> | fault

		grantDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grantd_grant_duration_seconds",
			Help:    "Latencia de los grant flows",
			Buckets: prometheus.DefBuckets,
		}, []string{"grant"})

		verifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantd_token_verifications_total",
			Help: "Verificaciones de bearer token por resultado",
		}, []string{"result"}) // result: active | inactive

		registry.MustRegister(grantsTotal, grantDuration, verifyTotal)
	})
	// Servir desde el mismo registry donde se registró, no siempre el default.
	if g, ok := registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// ObserveGrant registra el resultado y la duración de un grant flow.
func ObserveGrant(grant, result string, d time.Duration) {
	if grantsTotal == nil {
		return
	}
	grantsTotal.WithLabelValues(grant, result).Inc()
	grantDuration.WithLabelValues(grant).Observe(d.Seconds())
}

// ObserveVerify registra el resultado de una verificación de token.
func ObserveVerify(result string) {
	if verifyTotal == nil {
		return
	}
	verifyTotal.WithLabelValues(result).Inc()
}

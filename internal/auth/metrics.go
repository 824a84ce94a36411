package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts token-lifecycle outcomes and cache effectiveness.
type Metrics struct {
	LoginSuccess   prometheus.Counter
	LoginFailure   prometheus.Counter
	RefreshSuccess prometheus.Counter
	RefreshFailure prometheus.Counter
	Logout         prometheus.Counter

	ValidationHit  prometheus.Counter
	ValidationMiss prometheus.Counter
	RefreshHit     prometheus.Counter
	RefreshMiss    prometheus.Counter
}

// NewMetrics registers the counters on reg. Pass a fresh registry in
// tests; prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginSuccess: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_login_success_total", Help: "Successful logins",
		}),
		LoginFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_login_failure_total", Help: "Failed logins",
		}),
		RefreshSuccess: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_success_total", Help: "Successful token refreshes",
		}),
		RefreshFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_failure_total", Help: "Rejected token refreshes",
		}),
		Logout: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_logout_total", Help: "Logouts",
		}),
		ValidationHit: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_validation_cache_hits_total", Help: "Access-token validations served from cache",
		}),
		ValidationMiss: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_validation_cache_misses_total", Help: "Access-token validations requiring full verification",
		}),
		RefreshHit: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_cache_hits_total", Help: "Refresh comparisons served from cache",
		}),
		RefreshMiss: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_cache_misses_total", Help: "Refresh comparisons falling back to durable state",
		}),
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"swipe-engine/internal/domain"
)

var (
	Swipes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swipe_engine_swipes_total", Help: "Swipe attempts by action and result"},
		[]string{"action", "result"},
	)
	MatchesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swipe_engine_matches_created_total", Help: "Matches created"},
	)
	CreditDebits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swipe_engine_credit_debits_total", Help: "Credit debit attempts by result"},
		[]string{"result"},
	)
	CreditGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swipe_engine_credit_grants_total", Help: "Applied pack purchases"},
		[]string{"pack"},
	)
	Boosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swipe_engine_boosts_total", Help: "Boost purchases by result"},
		[]string{"result"},
	)
	NotifyConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "swipe_engine_notify_connections", Help: "Open websocket connections"},
	)
	NotifyDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swipe_engine_notify_dropped_total", Help: "Events dropped for slow clients"},
	)
)

func init() {
	prometheus.MustRegister(Swipes, MatchesCreated, CreditDebits, CreditGrants, Boosts, NotifyConnections, NotifyDropped)
}

// Result 把错误折叠成低基数的 label
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

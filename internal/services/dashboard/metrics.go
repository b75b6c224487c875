package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AdakHaddad/capdash/internal/model"
)

var (
	decodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capdash_messages_decoded_total",
		Help: "Inbound messages decoded, by wire format tag.",
	}, []string{"format"})

	unrecognizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capdash_messages_unrecognized_total",
		Help: "Inbound messages no matcher recognized.",
	})

	ignoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capdash_messages_ignored_total",
		Help: "Inbound messages ignored (unrelated topics, test pings).",
	})

	relayFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capdash_command_relay_fallbacks_total",
		Help: "Commands that went out via the HTTP relay instead of the live session.",
	})

	commandErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capdash_command_errors_total",
		Help: "Command dispatches rejected or failed on every available path.",
	})

	connStatusGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capdash_connection_status",
		Help: "Broker session status (0 idle .. 5 error).",
	})
)

// ObserveConnStatus mirrors the session status into the gauge; wired as the
// connection manager's status callback.
func ObserveConnStatus(s model.ConnStatus, _ string) {
	connStatusGauge.Set(float64(s))
}

// internal/service/moderation/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lekker_moderation_decisions_total",
		Help: "Moderation decisions applied to payments, by verdict.",
	}, []string{"verdict"})

	ticketsMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lekker_tickets_minted_total",
		Help: "Tickets minted by approved payments.",
	})

	artifactFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lekker_ticket_artifact_failures_total",
		Help: "Ticket artifact requests that could not be delivered.",
	})
)

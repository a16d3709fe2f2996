// internal/service/purchase/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lekker_payments_created_total",
		Help: "Payments created and waiting for moderation.",
	})
	burstsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lekker_proof_bursts_flushed_total",
		Help: "Proof image bursts handed over to moderation.",
	})
	promoRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lekker_promo_rejections_total",
		Help: "Promo codes rejected as unknown or fully redeemed.",
	})
)

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeRejected      = "rejected"
	OutcomeStockConflict = "stock_conflict"
	OutcomeFailed        = "failed"
)

// StorefrontMetrics records cart, checkout and rating activity. A nil receiver is a no-op.
type StorefrontMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	checkouts        *prometheus.CounterVec
	cartRejections   *prometheus.CounterVec
	ratings          *prometheus.CounterVec
	stockDecrements  prometheus.Counter
}

// NewStorefrontMetrics registers the storefront metrics on the provided registerer.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	cartRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_rejections_total",
		Help: "Cart mutations rejected by validation.",
	}, []string{"reason"})
	ratings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratings_submitted_total",
		Help: "Rating submissions by score.",
	}, []string{"score"})
	stockDecrements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_decrements_total",
		Help: "Product stock decrement writes issued by checkout.",
	})
	reg.MustRegister(checkoutDuration, checkouts, cartRejections, ratings, stockDecrements)
	return &StorefrontMetrics{
		checkoutDuration: checkoutDuration,
		checkouts:        checkouts,
		cartRejections:   cartRejections,
		ratings:          ratings,
		stockDecrements:  stockDecrements,
	}
}

// ObserveCheckout records one checkout attempt.
func (m *StorefrontMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.checkouts.WithLabelValues(outcome).Inc()
	m.checkoutDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncCartRejection counts a rejected cart mutation.
func (m *StorefrontMetrics) IncCartRejection(reason string) {
	if m == nil || m.cartRejections == nil {
		return
	}
	m.cartRejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncRating counts a submitted rating.
func (m *StorefrontMetrics) IncRating(score int) {
	if m == nil || m.ratings == nil {
		return
	}
	m.ratings.WithLabelValues(scoreLabel(score)).Inc()
}

// IncStockDecrement counts one stock write.
func (m *StorefrontMetrics) IncStockDecrement() {
	if m == nil || m.stockDecrements == nil {
		return
	}
	m.stockDecrements.Inc()
}

func scoreLabel(score int) string {
	if score < 1 || score > 5 {
		return "invalid"
	}
	return strconv.Itoa(score)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

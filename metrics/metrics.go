// Package metrics exposes Prometheus counters for the propagation kernel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StepsTotal counts completed steps per integration method.
	StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbital_steps_total",
			Help: "Total number of integration steps taken.",
		},
		[]string{"method"},
	)

	// StepsSkippedTotal counts steps skipped because of a massless body.
	StepsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbital_steps_skipped_total",
			Help: "Total number of integration steps skipped for massless bodies.",
		},
		[]string{"method"},
	)

	// GravitySkippedTotal counts attractors ignored because they coincide with the body.
	GravitySkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbital_gravity_contributors_skipped_total",
			Help: "Total number of attractor evaluations skipped below the minimum distance.",
		},
	)

	// GravityClampedTotal counts attractor contributions capped at the force ceiling.
	GravityClampedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbital_gravity_force_clamped_total",
			Help: "Total number of attractor evaluations clamped to the maximum force.",
		},
	)

	// DragEvaluationsTotal counts drag evaluations per outcome.
	DragEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbital_drag_evaluations_total",
			Help: "Total number of drag evaluations by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(StepsTotal)
	prometheus.MustRegister(StepsSkippedTotal)
	prometheus.MustRegister(GravitySkippedTotal)
	prometheus.MustRegister(GravityClampedTotal)
	prometheus.MustRegister(DragEvaluationsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStep records one completed step and the gravity guards hit during its stages.
func ObserveStep(method string, gravitySkipped, gravityClamped int) {
	StepsTotal.WithLabelValues(method).Inc()
	if gravitySkipped > 0 {
		GravitySkippedTotal.Add(float64(gravitySkipped))
	}
	if gravityClamped > 0 {
		GravityClampedTotal.Add(float64(gravityClamped))
	}
}

// ObserveDrag records n drag evaluations with the same outcome.
func ObserveDrag(outcome string, n int) {
	if n > 0 {
		DragEvaluationsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveSkip records a step which was not taken.
func ObserveSkip(method string) {
	StepsSkippedTotal.WithLabelValues(method).Inc()
}

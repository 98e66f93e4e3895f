package people

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("profilesync.people")

var (
	// dispatchTotal counts dispatched mutations by action and outcome.
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilesync_dispatch_total",
		Help: "Dispatched profile mutations by action and outcome",
	}, []string{"action", "outcome"})

	// requeueTotal counts flush entries put back after a transport failure.
	requeueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilesync_requeue_total",
		Help: "Pending mutations re-enqueued after a failed flush send",
	}, []string{"action"})

	// validationErrorsTotal counts properties dropped at encode time.
	validationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilesync_validation_errors_total",
		Help: "Properties dropped by validation, by action",
	}, []string{"action"})

	// usageErrorsTotal counts operations rejected by identity state or consent.
	usageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilesync_usage_errors_total",
		Help: "Operations rejected before dispatch, by error code",
	}, []string{"code"})
)

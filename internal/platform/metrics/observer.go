// Package metrics exports reminder pipeline measurements to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/pecal/pecal-reminders/internal/reminder"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "pecal_reminders"

// PrometheusObserver implements reminder.Observer. A nil observer records
// nothing.
type PrometheusObserver struct {
	streamEvents  *prometheus.CounterVec
	emitFailures  prometheus.Counter
	jobsRetired   *prometheus.CounterVec
	notifications prometheus.Counter
	pushMessages  *prometheus.CounterVec
	pushFailures  prometheus.Counter
	stageDuration *prometheus.HistogramVec
}

var _ reminder.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the pipeline metrics with reg. Collectors
// that are already registered are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &PrometheusObserver{}
	if o.streamEvents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_events_total",
		Help:      "Reminder events read from the event log, by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if o.emitFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emit_failures_total",
		Help:      "Reminder events that could not be appended to the event log.",
	})); err != nil {
		return nil, err
	}
	if o.jobsRetired, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_retired_total",
		Help:      "Scheduled reminder jobs removed by the dispatcher, by reason.",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if o.notifications, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "In-app reminder notifications written.",
	})); err != nil {
		return nil, err
	}
	if o.pushMessages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_messages_total",
		Help:      "Push tickets returned by the gateway, by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if o.pushFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_failures_total",
		Help:      "Push batches that reported a delivery error.",
	})); err != nil {
		return nil, err
	}
	if o.stageDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Latency of consumer and dispatcher runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register reminder metric: %w", err)
	}
	return c, nil
}

// EventsApplied implements reminder.Observer.
func (o *PrometheusObserver) EventsApplied(n int) {
	if o == nil || n <= 0 {
		return
	}
	o.streamEvents.WithLabelValues("applied").Add(float64(n))
}

// EventSkipped implements reminder.Observer.
func (o *PrometheusObserver) EventSkipped() {
	if o == nil {
		return
	}
	o.streamEvents.WithLabelValues("skipped").Inc()
}

// EmitFailed implements reminder.Observer.
func (o *PrometheusObserver) EmitFailed() {
	if o == nil {
		return
	}
	o.emitFailures.Inc()
}

// JobRetired implements reminder.Observer.
func (o *PrometheusObserver) JobRetired(reason string) {
	if o == nil {
		return
	}
	o.jobsRetired.WithLabelValues(reason).Inc()
}

// NotificationsSent implements reminder.Observer.
func (o *PrometheusObserver) NotificationsSent(n int) {
	if o == nil || n <= 0 {
		return
	}
	o.notifications.Add(float64(n))
}

// PushDelivered implements reminder.Observer.
func (o *PrometheusObserver) PushDelivered(sent, invalid int, err error) {
	if o == nil {
		return
	}
	if sent > 0 {
		o.pushMessages.WithLabelValues("sent").Add(float64(sent))
	}
	if invalid > 0 {
		o.pushMessages.WithLabelValues("invalid").Add(float64(invalid))
	}
	if err != nil {
		o.pushFailures.Inc()
	}
}

// StageCompleted implements reminder.Observer.
func (o *PrometheusObserver) StageCompleted(stage string, duration time.Duration) {
	if o == nil {
		return
	}
	o.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

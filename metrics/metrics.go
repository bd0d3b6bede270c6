package metrics

import (
	"time"

	"github.com/giantswarm/microerror"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "autoscaling_scenario"

	resultFailure = "failure"
	resultSuccess = "success"
)

type Config struct {
	Registerer prometheus.Registerer
}

// Recorder observes the remote calls issued by the scenario and the number of
// times the scenario polled a group while waiting for it to converge.
type Recorder struct {
	apiCalls     *prometheus.CounterVec
	apiDuration  *prometheus.HistogramVec
	pollAttempts prometheus.Counter
}

func New(config Config) (*Recorder, error) {
	if config.Registerer == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Registerer must not be empty", config)
	}

	r := &Recorder{
		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "calls_total",
				Help:      "Number of remote API calls issued, by operation and result.",
			},
			[]string{"operation", "result"},
		),
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "call_duration_seconds",
				Help:      "Latency of remote API calls, by operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		pollAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wait",
				Name:      "poll_attempts_total",
				Help:      "Number of times a group was fetched while waiting for it to converge.",
			},
		),
	}

	for _, c := range []prometheus.Collector{r.apiCalls, r.apiDuration, r.pollAttempts} {
		err := config.Registerer.Register(c)
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	return r, nil
}

// ObserveCall records a single remote call that started at start and returned
// err.
func (r *Recorder) ObserveCall(operation string, start time.Time, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}

	r.apiCalls.WithLabelValues(operation, result).Inc()
	r.apiDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (r *Recorder) PollAttempt() {
	r.pollAttempts.Inc()
}

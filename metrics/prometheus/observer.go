// Package prometheus records authclient request telemetry with client_golang.
package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-auth-client"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "authclient"

var _ authclient.Observer = (*Observer)(nil)

// Observer implements authclient.Observer
type Observer struct {
	requests *prom.CounterVec
	duration *prom.HistogramVec
	refresh  *prom.CounterVec
	gatherer prom.Gatherer
}

// Option configures the Observer
type Option func(*options)

type options struct {
	namespace string
	registry  *prom.Registry
	buckets   []float64
}

// WithNamespace overrides DefaultNamespace
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithRegistry registers metrics on reg instead of a private registry
func WithRegistry(reg *prom.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// WithBuckets sets the request duration buckets in seconds
func WithBuckets(buckets ...float64) Option {
	return func(o *options) {
		if len(buckets) > 0 {
			o.buckets = buckets
		}
	}
}

// New registers the collectors
func New(opts ...Option) (*Observer, error) {
	o := &options{
		namespace: DefaultNamespace,
		buckets:   prom.DefBuckets,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prom.NewRegistry()
	}

	obs := &Observer{
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: o.namespace,
			Name:      "requests_total",
			Help:      "Requests sent to the API by endpoint, method and status code.",
		}, []string{"endpoint", "method", "code"}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: o.namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by endpoint.",
			Buckets:   o.buckets,
		}, []string{"endpoint"}),
		refresh: prom.NewCounterVec(prom.CounterOpts{
			Namespace: o.namespace,
			Name:      "session_refresh_total",
			Help:      "Session refresh attempts by outcome.",
		}, []string{"outcome"}),
		gatherer: o.registry,
	}

	for _, c := range []prom.Collector{obs.requests, obs.duration, obs.refresh} {
		if err := o.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "register collector")
		}
	}

	return obs, nil
}

// ObserveRequest implements authclient.Observer. A zero status is a transport failure.
func (o *Observer) ObserveRequest(endpoint, method string, statusCode int, d time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	o.requests.WithLabelValues(endpoint, method, code).Inc()
	o.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRefresh implements authclient.Observer
func (o *Observer) ObserveRefresh(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	o.refresh.WithLabelValues(outcome).Inc()
}

// Handler exposes the metrics
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})
}

// WriteFile dumps the metrics in text format, for textfile collectors.
func (o *Observer) WriteFile(path string) error {
	if err := prom.WriteToTextfile(path, o.gatherer); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}

// Package observability carries the Prometheus metrics and OpenTelemetry
// tracing setup shared by the feed pipeline and the HTTP surface.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes used for the outcome label of flightkml_requests_total.
const (
	OutcomeOK         = "ok"
	OutcomeFetchError = "fetch_error"
	OutcomeError      = "error"
)

// FeedCollector bundles the feed metrics. A nil *FeedCollector is valid and
// records nothing.
type FeedCollector struct {
	gatherer prometheus.Gatherer

	Requests        *prometheus.CounterVec
	RenderDurations *prometheus.HistogramVec
	SkippedRecords  *prometheus.CounterVec
	FetchErrors     *prometheus.CounterVec
	Placemarks      *prometheus.GaugeVec
}

// NewFeedCollector registers the feed metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry reuses the existing collectors.
func NewFeedCollector(reg prometheus.Registerer) (*FeedCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightkml_requests_total",
		Help: "Rendered feed requests, labeled by feed, output format and outcome.",
	}, []string{"feed", "format", "outcome"}), "flightkml_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightkml_render_duration_seconds",
		Help:    "Time from fetch start to finished document, in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"feed", "format"}), "flightkml_render_duration_seconds")
	if err != nil {
		return nil, err
	}

	skipped, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightkml_records_skipped_total",
		Help: "Raw records dropped by the normalizer, labeled by feed and reason.",
	}, []string{"feed", "reason"}), "flightkml_records_skipped_total")
	if err != nil {
		return nil, err
	}

	fetchErrors, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightkml_fetch_errors_total",
		Help: "Failed snapshot fetches, labeled by feed and provider.",
	}, []string{"feed", "provider"}), "flightkml_fetch_errors_total")
	if err != nil {
		return nil, err
	}

	placemarks, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flightkml_placemarks",
		Help: "Placemarks in the most recently rendered document of each feed.",
	}, []string{"feed"}), "flightkml_placemarks")
	if err != nil {
		return nil, err
	}

	return &FeedCollector{
		gatherer:        gatherer,
		Requests:        requests,
		RenderDurations: durations,
		SkippedRecords:  skipped,
		FetchErrors:     fetchErrors,
		Placemarks:      placemarks,
	}, nil
}

// ObserveRender records one finished render.
func (c *FeedCollector) ObserveRender(feed, format, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(feed, format, outcome).Inc()
	c.RenderDurations.WithLabelValues(feed, format).Observe(elapsed.Seconds())
}

func (c *FeedCollector) RecordSkipped(feed, reason string) {
	if c == nil {
		return
	}
	c.SkippedRecords.WithLabelValues(feed, reason).Inc()
}

func (c *FeedCollector) RecordFetchError(feed, provider string) {
	if c == nil {
		return
	}
	c.FetchErrors.WithLabelValues(feed, provider).Inc()
}

func (c *FeedCollector) SetPlacemarks(feed string, n int) {
	if c == nil {
		return
	}
	c.Placemarks.WithLabelValues(feed).Set(float64(n))
}

// Handler exposes the /metrics endpoint for the collector's registry.
func (c *FeedCollector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}

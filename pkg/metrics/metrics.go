package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJobName = "colorvariant_harvester"

// Metrics holds all Prometheus metrics of a harvest run. They live on a private
// registry so a batch run exports only its own series.
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetchedTotal    *prometheus.CounterVec
	GalleriesTotal       *prometheus.CounterVec
	ImagesSavedTotal     prometheus.Counter
	ImageBytesTotal      prometheus.Counter
	FetchDuration        *prometheus.HistogramVec
	LastSuccessTimestamp prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PagesFetchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_pages_fetched_total",
			Help: "Total number of page fetch attempts.",
		}, []string{"status"}), // success, failure
		GalleriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_galleries_total",
			Help: "Galleries seen by the extractor.",
		}, []string{"result"}), // accepted, skipped
		ImagesSavedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvester_images_saved_total",
			Help: "Total number of images written to disk.",
		}),
		ImageBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "harvester_image_bytes_total",
			Help: "Total number of image bytes written to disk.",
		}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_fetch_duration_seconds",
			Help:    "Duration of HTTP fetches.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}), // page, image
		LastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed without error.",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_http_requests_total",
			Help: "Total number of outgoing HTTP requests.",
		}, []string{"method", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_http_request_duration_seconds",
			Help:    "Duration of outgoing HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
}

// InstrumentTransport wraps rt so every outgoing request is counted and timed.
func (m *Metrics) InstrumentTransport(rt http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperCounter(m.HTTPRequestsTotal,
		promhttp.InstrumentRoundTripperDuration(m.HTTPRequestDuration, rt),
	)
}

func (m *Metrics) ObservePage(success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.PagesFetchedTotal.WithLabelValues(status).Inc()
	m.FetchDuration.WithLabelValues("page").Observe(d.Seconds())
}

func (m *Metrics) ObserveGallery(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "skipped"
	}
	m.GalleriesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveImage(bytes int64, d time.Duration) {
	m.ImagesSavedTotal.Inc()
	m.ImageBytesTotal.Add(float64(bytes))
	m.FetchDuration.WithLabelValues("image").Observe(d.Seconds())
}

func (m *Metrics) MarkSuccess(t time.Time) {
	m.LastSuccessTimestamp.Set(float64(t.Unix()))
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push sends the registry to a Prometheus Pushgateway.
func (m *Metrics) Push(gatewayURL string) error {
	if err := push.New(gatewayURL, pushJobName).Gatherer(m.Registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}

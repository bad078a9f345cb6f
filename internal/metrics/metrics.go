package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	layoutRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrprint",
			Name:      "layout_runs_total",
			Help:      "Layout runs by result (success, empty, error)",
		},
		[]string{"result"},
	)

	layoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "qrprint",
			Name:      "layout_run_duration_seconds",
			Help:      "Duration of layout runs",
			Buckets:   prometheus.DefBuckets,
		},
	)

	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrprint",
			Name:      "images_total",
			Help:      "Images handled by the renderer by result (placed, skipped)",
		},
		[]string{"result"},
	)

	pagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qrprint",
			Name:      "pages_rendered_total",
			Help:      "Total pages written to print documents",
		},
	)

	communesExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qrprint",
			Name:      "communes_extracted_total",
			Help:      "Commune records written by the spreadsheet extractor",
		},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrprint",
			Name:      "interval_reservations_total",
			Help:      "Interval reservation attempts by result (reserved, overlap, error)",
		},
		[]string{"result"},
	)

	jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrprint",
			Name:      "jobs_total",
			Help:      "HTTP jobs by mode and result",
		},
		[]string{"mode", "result"},
	)

	sseClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "qrprint",
			Name:      "event_clients",
			Help:      "Connected progress event clients",
		},
	)

	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(layoutRuns, layoutDuration, imagesTotal, pagesTotal, communesExtracted, reservations, jobs, sseClients)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveLayout(result string, dur time.Duration) {
	layoutRuns.WithLabelValues(result).Inc()
	layoutDuration.Observe(dur.Seconds())
}

func IncImage(result string) { imagesTotal.WithLabelValues(result).Inc() }
func AddPages(n int) { pagesTotal.Add(float64(n)) }
func AddCommunes(n int) { communesExtracted.Add(float64(n)) }
func IncReservation(result string) { reservations.WithLabelValues(result).Inc() }
func IncJob(mode, result string) { jobs.WithLabelValues(mode, result).Inc() }
func SetEventClients(n int) { sseClients.Set(float64(n)) }

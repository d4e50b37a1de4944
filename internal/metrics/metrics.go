// Package metrics collects Prometheus metrics and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the middleware, the auth gate and the book service report
// to. Collector is the Prometheus implementation.
type Recorder interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
	AuthRejected(reason string)
	BookCreated()
	BookDeleted()
	ImageCleanupFailed()
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	authRejected  *prometheus.CounterVec
	booksCreated  prometheus.Counter
	booksDeleted  prometheus.Counter
	cleanupFailed prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklog_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booklog_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booklog_auth_rejected_total",
			Help: "Requests turned away by the auth gate, by reason.",
		}, []string{"reason"}),
		booksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklog_books_created_total",
			Help: "Books created.",
		}),
		booksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklog_books_deleted_total",
			Help: "Books deleted.",
		}),
		cleanupFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booklog_image_cleanup_failures_total",
			Help: "Hosted images that could not be removed after a delete or a failed create.",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authRejected,
		c.booksCreated,
		c.booksDeleted,
		c.cleanupFailed,
	)

	return c
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) AuthRejected(reason string) {
	c.authRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) BookCreated() { c.booksCreated.Inc() }

func (c *Collector) BookDeleted() { c.booksDeleted.Inc() }

func (c *Collector) ImageCleanupFailed() { c.cleanupFailed.Inc() }

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

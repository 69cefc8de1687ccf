// Package metrics collects and exposes the engine host's running
// counts as Prometheus metrics.
//
// Metric shape:
//
//	enginehost_engines_created_total / enginehost_engines_alive
//	enginehost_threads_created_total / enginehost_threads_alive
//	enginehost_requests_created_total / enginehost_requests_alive
//	enginehost_dispatch_latency_seconds
//
// The "created" series is monotonic; the "alive" series is a live
// gauge, mirroring the total/alive split the engine and thread
// bookkeeping already draws (engines and slaves are only ever created
// or reaped, never renamed or resized in place).
//
// Each Collector owns a private *prometheus.Registry rather than
// registering against the global DefaultRegisterer, so more than one
// Collector can exist in the same process (tests, multiple engine
// hosts under one supervisor) without a duplicate-registration panic.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"
)

// ClassCounter tracks a class of resource (engines, threads,
// requests): a monotonic count of everything ever created, and a live
// gauge of what's currently alive. It satisfies the small Counters
// interfaces declared independently by internal/future and
// internal/engine, so those packages never need to import metrics
// directly.
type ClassCounter struct {
	total atomic.Int64
	alive atomic.Int64
}

func (c *ClassCounter) Created() {
	c.total.Add(1)
	c.alive.Add(1)
}

func (c *ClassCounter) Destroyed() {
	c.alive.Add(-1)
}

func (c *ClassCounter) Total() int64 { return c.total.Load() }
func (c *ClassCounter) Alive() int64 { return c.alive.Load() }

// Collector is the process's metrics sink.
type Collector struct {
	Engines  ClassCounter
	Threads  ClassCounter
	Requests ClassCounter

	registry        *prometheus.Registry
	dispatchLatency prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "enginehost_dispatch_latency_seconds",
			Help:    "Time between a job being pushed and a slave picking it up",
			Buckets: prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(c.dispatchLatency)
	c.registry.MustRegister(classGaugeFunc("enginehost_engines_created_total", "Total engines ever created", c.Engines.Total))
	c.registry.MustRegister(classGaugeFunc("enginehost_engines_alive", "Engines currently registered", c.Engines.Alive))
	c.registry.MustRegister(classGaugeFunc("enginehost_threads_created_total", "Total slave processes ever spawned", c.Threads.Total))
	c.registry.MustRegister(classGaugeFunc("enginehost_threads_alive", "Slave processes currently running", c.Threads.Alive))
	c.registry.MustRegister(classGaugeFunc("enginehost_requests_created_total", "Total futures ever allocated", c.Requests.Total))
	c.registry.MustRegister(classGaugeFunc("enginehost_requests_alive", "Futures currently pending", c.Requests.Alive))

	return c
}

func classGaugeFunc(name, help string, fn func() int64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
		return float64(fn())
	})
}

// ObserveDispatch records how long a job waited between Push and
// being handed to an idle slave.
func (c *Collector) ObserveDispatch(seconds float64) {
	c.dispatchLatency.Observe(seconds)
}

// Handler returns the http.Handler that should be mounted at
// "/metrics" for Prometheus to scrape.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

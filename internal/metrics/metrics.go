// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics holds the Prometheus collectors for bus, relay and
// magnetometer activity. Collectors are usable before Register is called;
// registration only exposes them on /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BusOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_ops_total",
			Help: "Single register operations issued to the bus, by op and result.",
		},
		[]string{"op", "result"},
	)

	RelayTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_transactions_total",
			Help: "Passthrough transactions driven through the bridge slot.",
		},
		[]string{"direction"},
	)

	RelayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_errors_total",
			Help: "Passthrough transactions that failed on the bus.",
		},
		[]string{"direction"},
	)

	PollAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mag_poll_attempts",
		Help:    "Status reads needed before the data block was fetched.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	StaleSamples = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mag_stale_samples_total",
		Help: "Samples read after the data-ready bit was never observed.",
	})

	OverflowSamples = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mag_overflow_total",
		Help: "Samples with the magnetic sensor overflow flag set.",
	})
)

var registerOnce sync.Once

// Register adds all collectors to the default Prometheus registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(BusOps)
		prometheus.MustRegister(RelayTransactions)
		prometheus.MustRegister(RelayErrors)
		prometheus.MustRegister(PollAttempts)
		prometheus.MustRegister(StaleSamples)
		prometheus.MustRegister(OverflowSamples)
	})
}

// Handler returns the /metrics handler.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

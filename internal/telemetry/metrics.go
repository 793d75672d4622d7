/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the HTTP surface,
// the database layer and the playback engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segue_api_requests_total",
		Help: "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segue_api_request_duration_seconds",
		Help:    "HTTP API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "segue_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segue_db_query_duration_seconds",
		Help:    "Database operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "segue_db_errors_total",
		Help: "Database operation errors.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "segue_db_connections_active",
		Help: "Open database connections.",
	})

	TracksPlayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segue_tracks_played_total",
		Help: "Tracks that reached their natural end.",
	})

	CrossfadesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segue_crossfades_total",
		Help: "Completed crossfade transitions.",
	})

	PlaybackErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "segue_playback_errors_total",
		Help: "Playback errors reported by the engine.",
	})

	PlaybackState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "segue_playback_state",
		Help: "Current playback state (1 for the active state, 0 otherwise).",
	}, []string{"state"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

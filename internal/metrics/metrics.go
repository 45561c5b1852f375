// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Media server client metrics
	MediaServerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_requests_total",
			Help: "Total number of media server API attempts",
		},
		[]string{"server_id", "status"}, // status: HTTP code, "error" for transport failures
	)

	MediaServerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_server_request_duration_seconds",
			Help:    "Media server API call duration including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"server_id"},
	)

	MediaServerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_retries_total",
			Help: "Total number of retried media server API attempts",
		},
		[]string{"server_id"},
	)

	// Sync Operation Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync pipelines in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"entity"},
	)

	SyncEntities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_entities_total",
			Help: "Entities processed by sync pipelines",
		},
		[]string{"entity", "action"}, // action: inserted, updated, unchanged
	)

	SyncAPIRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_api_requests_total",
			Help: "Media server API requests made by sync pipelines",
		},
	)

	SyncDBWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_db_writes_total",
			Help: "Database writes made by sync pipelines",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors",
		},
		[]string{"entity", "kind"}, // kind: record, pipeline
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last completed full sync",
		},
		[]string{"server_id"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Job queue metrics
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Jobs accepted by the queue",
		},
		[]string{"job"},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_finished_total",
			Help: "Job attempts by outcome",
		},
		[]string{"job", "outcome"}, // outcome: completed, retry, failed, expired
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Job handler run time",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900, 3600},
		},
		[]string{"job"},
	)

	JobQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Jobs currently stored in the queue by state",
		},
		[]string{"state"},
	)

	// Session poller metrics
	SessionPollCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_poll_cycles_total",
			Help: "Completed session poll cycles",
		},
	)

	SessionPollSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_poll_skipped_total",
			Help: "Poll ticks skipped because a cycle was still running",
		},
	)

	SessionPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_poll_duration_seconds",
			Help:    "Duration of one poll cycle across all servers",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Tracked playback sessions",
		},
		[]string{"server_id"},
	)

	SessionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_recorded_total",
			Help: "Finished playback sessions persisted",
		},
		[]string{"completed"},
	)

	// Event bus and WebSocket metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events published to the bus",
		},
		[]string{"topic"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordMediaServerAttempt records one HTTP attempt against a media server.
// statusCode 0 means the request never produced a response.
func RecordMediaServerAttempt(serverID string, statusCode int) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	MediaServerRequests.WithLabelValues(serverID, status).Inc()
}

// RecordSyncStage records the duration and outcome of one entity pipeline.
func RecordSyncStage(entity string, duration time.Duration, err error) {
	SyncDuration.WithLabelValues(entity).Observe(duration.Seconds())
	if err != nil {
		SyncErrors.WithLabelValues(entity, "pipeline").Inc()
	}
}

// RecordJobOutcome records a finished job attempt.
func RecordJobOutcome(job, outcome string, duration time.Duration) {
	JobsFinished.WithLabelValues(job, outcome).Inc()
	if duration > 0 {
		JobDuration.WithLabelValues(job).Observe(duration.Seconds())
	}
}

// RecordSessionPersisted counts a finished session written to storage.
func RecordSessionPersisted(completed bool) {
	SessionsRecorded.WithLabelValues(strconv.FormatBool(completed)).Inc()
}

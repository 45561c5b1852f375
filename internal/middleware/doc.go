// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package middleware instruments HTTP handlers with Prometheus metrics.

PrometheusMetrics records api_requests_total, api_request_duration_seconds
and api_active_requests. Requests are labelled with the chi route pattern
(for example /api/v1/servers/{id}/status) rather than the raw path, so
server ids never become label values:

	r := chi.NewRouter()
	r.Use(middleware.PrometheusMetrics)
*/
package middleware

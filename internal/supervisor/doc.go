// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package supervisor runs the long-lived mediasync services under a suture v4
tree.

Services are grouped into three layers that restart independently:

	mediasync
	├── jobs-layer
	│   ├── job-queue          worker teams and lease maintenance
	│   └── job-scheduler      periodic enqueue per server
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── websocket-forwarder  event bus to websocket clients
	│   └── session-poller     live session tracking (when enabled)
	└── api-layer
	    └── http-server

A failing forwarder or poller is restarted without touching the HTTP server
or running jobs. Supervisor events (start, failure, backoff) are logged
through sutureslog on top of the zerolog-backed slog handler.

Typical wiring:

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	supervisor.Build(tree, supervisor.Components{
	    Queue:     queue,
	    Scheduler: scheduler,
	    Hub:       hub,
	    Forwarder: forwarder,
	    Poller:    poller,
	    HTTP:      services.NewHTTPServerService(srv, 10*time.Second),
	})
	err := tree.Serve(ctx)

Every component passed to Build implements suture.Service directly. The
services subpackage adapts components that do not, such as *http.Server.
*/
package supervisor

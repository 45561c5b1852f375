// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package sync mirrors Jellyfin servers into the database and records live
playback sessions.

Key Components:

  - Client: rate-limited, retrying access to the Jellyfin REST API
  - CircuitBreakerClient: fails fast while a server is unhealthy
  - Syncer: the users, libraries, items and activities pipelines
  - Orchestrator: runs pipelines under the sync status state machine
  - SessionPoller: turns GET /Sessions snapshots into session records

Client:

Every call takes a concurrency slot and a rate token per attempt, then
retries with exponential backoff (factor 2, bounded by MinTimeout and
MaxTimeout) up to MaxRetries times. Retry sleeps hold neither.

Pipelines:

Each pipeline returns a Result built by NewResult:

  - success: every record synced
  - partial: some records failed; their errors are in Result.Errors
  - error: the pipeline could not run (Result.Err)

Per-record failures (RecordError) are recoverable and never stop a
pipeline. Pipeline failures (PipelineError) are fatal for that pipeline.

Items are diffed field by field (DiffItem). Only changed columns are
written, and the stored raw_data is kept from the first insert. An item
whose etag matches the stored one is skipped without a diff.

The recent activities walk pages the log newest first and stops at the
newest stored activity, or after MaxPages pages.

Sync State:

Server sync status moves only through Transition:

	pending|completed|failed --Begin--> syncing
	syncing --Advance--> syncing (stage moves forward)
	syncing --Complete--> completed
	syncing --Fail--> failed

A Begin while syncing fails with ErrSyncInProgress. On startup,
RecoverInterrupted fails servers left in syncing by a crash.

Session Poller:

Each cycle fetches sessions from every server in turn and classifies them
by SessionKey into new, updated and ended. Play time accrues only while
playing. Ended sessions longer than one second are stored; they count as
completed above 90% progress. Cycles never overlap; ticks that arrive
during a cycle are skipped and counted.

Thread Safety:

Client, CircuitBreakerClient, Syncer, Orchestrator and SessionPoller are
safe for concurrent use.
*/
package sync

// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

/*
Package jobs is the durable job queue that runs sync work.

Jobs live in BadgerDB as JSON documents keyed by type and a time-ordered
ID. A worker claims a job in one transaction: the job turns active, its
attempt counter increments and it receives a lease until now+ExpireIn.
Finishing an attempt checks that the lease still belongs to it, so a run
that outlived its lease cannot overwrite the retry that replaced it.

Lifecycle:

	created ──claim──▶ active ──ok──────────▶ completed
	retry   ──claim──▶ active ──error──┬────▶ retry   (attempts <= retryLimit)
	                          │        └────▶ failed
	                          └─lease expired─▶ retry | expired

Concurrency per type is bounded by WorkOptions: TeamSize worker loops,
each running up to TeamConcurrency handlers. Finished jobs keep their
record for the configured retention via Badger TTLs.

Every finished attempt is handed to a Recorder; ResultRecorder writes it
to the job_results table and publishes a jobs.completed event.

The Scheduler enqueues full-sync, recent-items-sync and
recent-activities-sync for every server on fixed intervals, with singleton
keys so a slow run is never queued twice.
*/
package jobs

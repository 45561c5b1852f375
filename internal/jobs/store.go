// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mediasync/internal/logging"
)

// Key layout:
//
//	job/<name>/<id>            JSON Job
//	singleton/<name>/<key>     job ID holding the singleton
//
// IDs are UUIDv7, so iterating a name prefix yields jobs in send order.
const (
	prefixJob       = "job/"
	prefixSingleton = "singleton/"

	// conflictRetries bounds re-runs of a transaction that lost a
	// read-write conflict against a concurrent claim.
	conflictRetries = 5

	gcDiscardRatio = 0.5
)

func jobKey(name, id string) []byte {
	return []byte(prefixJob + name + "/" + id)
}

func jobPrefix(name string) []byte {
	return []byte(prefixJob + name + "/")
}

func singletonKey(name, key string) []byte {
	return []byte(prefixSingleton + name + "/" + key)
}

// StoreConfig configures the BadgerDB job store.
type StoreConfig struct {
	// Path is the database directory. Empty keeps everything in memory.
	Path string

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Retention is the TTL of finished jobs. Zero keeps them forever.
	Retention time.Duration
}

// Store persists jobs in BadgerDB. Every state change is one transaction,
// so a claim either fully takes a job or not at all.
type Store struct {
	db        *badger.DB
	retention time.Duration

	mu     sync.RWMutex
	closed bool
}

// OpenStore opens (or creates) the store.
func OpenStore(cfg StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = newBadgerLogger(logging.WithComponent("badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.Path == "").
		Dur("retention", cfg.Retention).
		Msg("Job store opened")
	return &Store{db: db, retention: cfg.Retention}, nil
}

// Close closes the database. Further calls return ErrQueueClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// update runs fn in a read-write transaction, re-running it when it loses
// a conflict.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrQueueClosed
	}

	var err error
	for range conflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrQueueClosed
	}
	return s.db.View(fn)
}

func readJob(item *badger.Item) (*Job, error) {
	var j Job
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &j)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", item.Key(), err)
	}
	return &j, nil
}

func getJob(txn *badger.Txn, name, id string) (*Job, error) {
	item, err := txn.Get(jobKey(name, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return readJob(item)
}

// putJob writes j. Terminal jobs get the retention TTL and release their
// singleton key.
func (s *Store) putJob(txn *badger.Txn, j *Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", j.ID, err)
	}
	e := badger.NewEntry(jobKey(j.Name, j.ID), data)
	if j.State.Terminal() && s.retention > 0 {
		e = e.WithTTL(s.retention)
	}
	if err := txn.SetEntry(e); err != nil {
		return fmt.Errorf("set job %s: %w", j.ID, err)
	}

	if j.State.Terminal() && j.SingletonKey != "" {
		return releaseSingleton(txn, j)
	}
	return nil
}

func releaseSingleton(txn *badger.Txn, j *Job) error {
	key := singletonKey(j.Name, j.SingletonKey)
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get singleton %s: %w", j.SingletonKey, err)
	}
	holder, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if string(holder) != j.ID {
		return nil
	}
	return txn.Delete(key)
}

// Insert stores a new job. With a singleton key it fails with
// ErrDuplicateJob while another job holding that key is not terminal.
func (s *Store) Insert(j *Job) error {
	return s.update(func(txn *badger.Txn) error {
		if j.SingletonKey != "" {
			key := singletonKey(j.Name, j.SingletonKey)
			item, err := txn.Get(key)
			switch {
			case err == nil:
				holder, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				existing, err := getJob(txn, j.Name, string(holder))
				if err == nil && !existing.State.Terminal() {
					return fmt.Errorf("%w: %s", ErrDuplicateJob, existing.ID)
				}
				if err != nil && !errors.Is(err, ErrJobNotFound) {
					return err
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return fmt.Errorf("get singleton %s: %w", j.SingletonKey, err)
			}
			if err := txn.Set(key, []byte(j.ID)); err != nil {
				return fmt.Errorf("set singleton %s: %w", j.SingletonKey, err)
			}
		}
		return s.putJob(txn, j)
	})
}

// Get returns one job.
func (s *Store) Get(name, id string) (*Job, error) {
	var j *Job
	err := s.view(func(txn *badger.Txn) error {
		var err error
		j, err = getJob(txn, name, id)
		return err
	})
	return j, err
}

// Claim leases up to limit claimable jobs of name to holder, oldest first.
// Each claimed job is active with Attempts incremented and a lease of its
// ExpireIn.
func (s *Store) Claim(name, holder string, limit int, now time.Time) ([]*Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*Job
	err := s.update(func(txn *badger.Txn) error {
		claimed = claimed[:0]

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := jobPrefix(name)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(claimed) < limit; it.Next() {
			j, err := readJob(it.Item())
			if err != nil {
				logging.Warn().Err(err).Msg("Skipping unreadable job")
				continue
			}
			if j.claimable(now) {
				claimed = append(claimed, j)
			}
		}
		it.Close()

		for _, j := range claimed {
			started := now
			j.State = StateActive
			j.Attempts++
			j.StartedAt = &started
			j.LeaseHolder = holder
			j.LeaseExpiry = now.Add(j.ExpireIn)
			if err := s.putJob(txn, j); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// finish applies fn to the stored copy of j if the attempt of j still
// holds the lease.
func (s *Store) finish(j *Job, fn func(stored *Job)) (*Job, error) {
	var out *Job
	err := s.update(func(txn *badger.Txn) error {
		stored, err := getJob(txn, j.Name, j.ID)
		if errors.Is(err, ErrJobNotFound) {
			return ErrLeaseLost
		}
		if err != nil {
			return err
		}
		if stored.State != StateActive || stored.LeaseHolder != j.LeaseHolder || stored.Attempts != j.Attempts {
			return ErrLeaseLost
		}
		fn(stored)
		stored.LeaseHolder = ""
		stored.LeaseExpiry = time.Time{}
		out = stored
		return s.putJob(txn, stored)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete marks the attempt of j as completed with output.
func (s *Store) Complete(j *Job, output json.RawMessage, now time.Time) (*Job, error) {
	return s.finish(j, func(stored *Job) {
		stored.State = StateCompleted
		stored.FinishedAt = &now
		stored.Output = output
		stored.LastError = ""
	})
}

// Fail records a failed attempt of j. With retries left the job waits
// RetryDelay in retry; otherwise it is failed.
func (s *Store) Fail(j *Job, cause string, output json.RawMessage, now time.Time) (*Job, error) {
	return s.finish(j, func(stored *Job) {
		stored.LastError = cause
		stored.Output = output
		if stored.retriesLeft() {
			stored.State = StateRetry
			stored.StartAfter = now.Add(stored.RetryDelay)
			return
		}
		stored.State = StateFailed
		stored.FinishedAt = &now
	})
}

// Release returns an interrupted attempt of j to the queue without
// counting it.
func (s *Store) Release(j *Job, now time.Time) (*Job, error) {
	return s.finish(j, func(stored *Job) {
		stored.State = StateRetry
		stored.Attempts--
		stored.StartAfter = now
	})
}

// ExpireLeases moves active jobs whose lease ran out to retry, or to
// expired when no retries are left. It returns the moved jobs with the
// attempt number that expired.
func (s *Store) ExpireLeases(now time.Time) ([]*Job, error) {
	var moved []*Job
	err := s.update(func(txn *badger.Txn) error {
		moved = moved[:0]

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(prefixJob)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			j, err := readJob(it.Item())
			if err != nil {
				continue
			}
			if j.State == StateActive && now.After(j.LeaseExpiry) {
				moved = append(moved, j)
			}
		}
		it.Close()

		for _, j := range moved {
			j.LastError = fmt.Sprintf("lease expired after %s", j.ExpireIn)
			j.LeaseHolder = ""
			j.LeaseExpiry = time.Time{}
			if j.retriesLeft() {
				j.State = StateRetry
				j.StartAfter = now.Add(j.RetryDelay)
			} else {
				finished := now
				j.State = StateExpired
				j.FinishedAt = &finished
			}
			if err := s.putJob(txn, j); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Counts returns the number of stored jobs per state.
func (s *Store) Counts() (map[State]int, error) {
	counts := make(map[State]int, len(AllStates))
	err := s.view(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixJob)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			j, err := readJob(it.Item())
			if err != nil {
				continue
			}
			counts[j.State]++
		}
		return nil
	})
	return counts, err
}

// List returns the stored jobs of name in send order, or of every name
// when name is empty.
func (s *Store) List(name string, limit int) ([]*Job, error) {
	prefix := []byte(prefixJob)
	if name != "" {
		prefix = jobPrefix(name)
	}

	var out []*Job
	err := s.view(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			j, err := readJob(it.Item())
			if err != nil {
				continue
			}
			out = append(out, j)
		}
		return nil
	})
	return out, err
}

// RunGC reclaims value log space. It is a no-op for in-memory stores.
func (s *Store) RunGC() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrQueueClosed
	}

	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		case errors.Is(err, badger.ErrRejected):
			return nil
		default:
			return fmt.Errorf("value log GC: %w", err)
		}
	}
}


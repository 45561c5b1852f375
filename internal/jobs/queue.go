// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mediasync/internal/config"
	"github.com/tomtom215/mediasync/internal/logging"
	"github.com/tomtom215/mediasync/internal/metrics"
	"github.com/tomtom215/mediasync/internal/models"
	"github.com/tomtom215/mediasync/internal/validation"
)

// terminalWriteTimeout bounds the writes that finish a job. They run
// detached from the worker context so shutdown cannot drop them.
const terminalWriteTimeout = 30 * time.Second

// Handler runs one job. The returned value, if any, is stored as the job
// output; it is kept even when err is non-nil.
type Handler func(ctx context.Context, job *Job) (any, error)

// Config holds queue timing and the defaults of SendOptions.
type Config struct {
	PollInterval        time.Duration
	MaintenanceInterval time.Duration
	RetryLimit          int
	RetryDelay          time.Duration
	ExpireIn            time.Duration
}

// ConfigFrom maps the queue configuration section.
func ConfigFrom(c config.QueueConfig) Config {
	return Config{
		PollInterval:        c.PollInterval,
		MaintenanceInterval: c.MaintenanceInterval,
		RetryLimit:          c.RetryLimit,
		RetryDelay:          c.RetryDelay,
		ExpireIn:            c.ExpireIn,
	}
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = 30 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Minute
	}
	if c.ExpireIn <= 0 {
		c.ExpireIn = 4 * time.Hour
	}
	return c
}

type registration struct {
	name    string
	opts    WorkOptions
	handler Handler
	wake    chan struct{}
	running atomic.Int64
}

// Queue runs registered handlers over jobs held in a Store. Delivery is
// at-least-once: an attempt whose lease expires is retried, and its late
// completion is discarded.
type Queue struct {
	store    *Store
	cfg      Config
	recorder Recorder
	holder   string
	now      func() time.Time

	mu      sync.RWMutex
	regs    map[string]*registration
	serving bool

	inflight sync.WaitGroup
}

// New creates a queue over store. recorder may be nil.
func New(store *Store, cfg Config, recorder Recorder) *Queue {
	return &Queue{
		store:    store,
		cfg:      cfg.withDefaults(),
		recorder: recorder,
		holder:   "worker-" + uuid.NewString()[:8],
		now:      time.Now,
		regs:     make(map[string]*registration),
	}
}

// String names the queue for the supervisor.
func (q *Queue) String() string {
	return "job-queue"
}

// Register binds a handler to a job type. It must be called before Serve.
func (q *Queue) Register(name string, opts WorkOptions, h Handler) error {
	if verr := validation.ValidateStruct(&struct {
		Name string `json:"name" validate:"required,jobname"`
		WorkOptions
	}{Name: name, WorkOptions: opts}); verr != nil {
		return fmt.Errorf("register %q: %w", name, verr)
	}
	if h == nil {
		return fmt.Errorf("register %q: nil handler", name)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.serving {
		return fmt.Errorf("register %q: queue already serving", name)
	}
	if _, ok := q.regs[name]; ok {
		return fmt.Errorf("register %q: already registered", name)
	}
	q.regs[name] = &registration{
		name:    name,
		opts:    opts,
		handler: h,
		wake:    make(chan struct{}, 1),
	}
	return nil
}

// Registered returns the registered job types.
func (q *Queue) Registered() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	names := make([]string, 0, len(q.regs))
	for name := range q.regs {
		names = append(names, name)
	}
	return names
}

// DefaultSendOptions returns the configured retry and expiry defaults.
func (q *Queue) DefaultSendOptions() SendOptions {
	return SendOptions{
		RetryLimit: q.cfg.RetryLimit,
		RetryDelay: q.cfg.RetryDelay,
		ExpireIn:   q.cfg.ExpireIn,
	}
}

// Send validates payload and stores a new job, returning its ID. Struct
// payloads are checked against their validate tags.
func (q *Queue) Send(ctx context.Context, name string, payload any, opts SendOptions) (string, error) {
	q.mu.RLock()
	reg, ok := q.regs[name]
	q.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	if verr := validation.ValidateStruct(&opts); verr != nil {
		return "", fmt.Errorf("invalid send options: %w", verr)
	}
	if rv := reflect.Indirect(reflect.ValueOf(payload)); rv.Kind() == reflect.Struct {
		if verr := validation.ValidateStruct(payload); verr != nil {
			return "", fmt.Errorf("invalid %s payload: %w", name, verr)
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", name, err)
	}

	if opts.RetryDelay <= 0 {
		opts.RetryDelay = q.cfg.RetryDelay
	}
	if opts.ExpireIn <= 0 {
		opts.ExpireIn = q.cfg.ExpireIn
	}
	now := q.now().UTC()
	startAfter := now
	if opts.StartAfter.After(now) {
		startAfter = opts.StartAfter.UTC()
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	j := &Job{
		ID:           id.String(),
		Name:         name,
		Payload:      data,
		State:        StateCreated,
		RetryLimit:   opts.RetryLimit,
		RetryDelay:   opts.RetryDelay,
		ExpireIn:     opts.ExpireIn,
		SingletonKey: opts.SingletonKey,
		CreatedAt:    now,
		StartAfter:   startAfter,

		CorrelationID: logging.CorrelationIDFromContext(ctx),
	}
	if err := q.store.Insert(j); err != nil {
		return "", err
	}

	metrics.JobsEnqueued.WithLabelValues(name).Inc()
	logging.Ctx(ctx).Debug().Str("job", name).Str("job_id", j.ID).Msg("Job enqueued")

	select {
	case reg.wake <- struct{}{}:
	default:
	}
	return j.ID, nil
}

// Running returns the number of handlers running per job type.
func (q *Queue) Running() map[string]int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make(map[string]int64, len(q.regs))
	for name, r := range q.regs {
		out[name] = r.running.Load()
	}
	return out
}

// Counts returns the number of stored jobs per state.
func (q *Queue) Counts() (map[State]int, error) {
	return q.store.Counts()
}

// Serve runs the workers of every registered type and the maintenance
// loop until ctx is canceled, then waits for running handlers.
func (q *Queue) Serve(ctx context.Context) error {
	q.mu.Lock()
	if q.serving {
		q.mu.Unlock()
		return errors.New("job queue already serving")
	}
	q.serving = true
	regs := make([]*registration, 0, len(q.regs))
	for _, r := range q.regs {
		regs = append(regs, r)
	}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.serving = false
		q.mu.Unlock()
	}()

	var loops sync.WaitGroup
	for _, r := range regs {
		for range r.opts.TeamSize {
			loops.Add(1)
			go func() {
				defer loops.Done()
				q.work(ctx, r)
			}()
		}
	}
	loops.Add(1)
	go func() {
		defer loops.Done()
		q.maintain(ctx)
	}()

	logging.Info().Int("job_types", len(regs)).Str("holder", q.holder).Msg("Job queue started")
	<-ctx.Done()
	loops.Wait()
	q.inflight.Wait()
	logging.Info().Msg("Job queue stopped")
	return ctx.Err()
}

// work is one team member: it claims jobs into its free slots on every
// poll tick and whenever a job is sent or finishes.
func (q *Queue) work(ctx context.Context, r *registration) {
	slots := make(chan struct{}, r.opts.TeamConcurrency)
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		q.fill(ctx, r, slots)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

func (q *Queue) fill(ctx context.Context, r *registration, slots chan struct{}) {
	free := cap(slots) - len(slots)
	if free == 0 || ctx.Err() != nil {
		return
	}

	claimed, err := q.store.Claim(r.name, q.holder, free, q.now().UTC())
	if err != nil {
		logging.Error().Err(err).Str("job", r.name).Msg("Failed to claim jobs")
		return
	}
	for _, j := range claimed {
		slots <- struct{}{}
		q.inflight.Add(1)
		r.running.Add(1)
		go func() {
			defer func() {
				r.running.Add(-1)
				<-slots
				q.inflight.Done()
				select {
				case r.wake <- struct{}{}:
				default:
				}
			}()
			q.run(ctx, r, j)
		}()
	}
}

// run executes one claimed attempt and finishes it in the store.
func (q *Queue) run(ctx context.Context, r *registration, j *Job) {
	serverID := payloadServerID(j)
	if j.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, j.CorrelationID)
	}
	ctx = logging.ContextWithJob(ctx, j.ID, serverID)
	log := logging.Ctx(ctx).With().Str("job", j.Name).Int("attempt", j.Attempts).Logger()

	hctx, cancel := context.WithDeadline(ctx, j.LeaseExpiry)
	start := time.Now()
	out, herr := invoke(hctx, r.handler, j)
	took := time.Since(start)
	cancel()

	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer wcancel()

	// Shutdown interrupted the attempt; give it back without counting it.
	if herr != nil && ctx.Err() != nil {
		if _, err := q.store.Release(j, q.now().UTC()); err != nil && !errors.Is(err, ErrLeaseLost) {
			log.Error().Err(err).Msg("Failed to release interrupted job")
		}
		metrics.RecordJobOutcome(j.Name, "released", took)
		log.Info().Msg("Job interrupted by shutdown, released")
		return
	}

	output := encodeOutput(&log, out)
	var (
		finished *Job
		status   models.JobStatus
		cause    string
		err      error
	)
	if herr == nil {
		finished, err = q.store.Complete(j, output, q.now().UTC())
		status = models.JobStatusCompleted
	} else {
		cause = herr.Error()
		finished, err = q.store.Fail(j, cause, output, q.now().UTC())
		if err == nil && finished.State == StateRetry {
			status = models.JobStatusRetry
		} else {
			status = models.JobStatusFailed
		}
	}
	if errors.Is(err, ErrLeaseLost) {
		metrics.RecordJobOutcome(j.Name, "lease_lost", took)
		log.Warn().Dur("took", took).Msg("Job finished after its lease was lost, result discarded")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to store job outcome")
		return
	}

	metrics.RecordJobOutcome(j.Name, string(status), took)
	ev := log.Info()
	if herr != nil {
		ev = log.Warn().Err(herr)
	}
	ev.Str("status", string(status)).Dur("took", took).Msg("Job finished")

	q.record(wctx, newJobResult(finished, serverID, status, cause, took, q.now()))
}

func (q *Queue) record(ctx context.Context, res *models.JobResult) {
	if q.recorder == nil {
		return
	}
	if err := q.recorder.Record(ctx, res); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("job_id", res.JobID).Msg("Failed to record job result")
	}
}

// invoke calls h, turning a panic into an error.
func invoke(ctx context.Context, h Handler, j *Job) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, r)
		}
	}()
	return h(ctx, j)
}

func encodeOutput(log *zerolog.Logger, out any) json.RawMessage {
	if out == nil {
		return nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		log.Warn().Err(err).Msg("Job output is not JSON encodable, dropped")
		return nil
	}
	return data
}

// payloadServerID reads the serverId field shared by sync payloads.
func payloadServerID(j *Job) string {
	var p struct {
		ServerID string `json:"serverId"`
	}
	_ = json.Unmarshal(j.Payload, &p)
	return p.ServerID
}

// maintain expires abandoned leases, refreshes queue depth gauges and
// reclaims badger space.
func (q *Queue) maintain(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.RunMaintenance(ctx)
		}
	}
}

// RunMaintenance runs one maintenance pass.
func (q *Queue) RunMaintenance(ctx context.Context) {
	now := q.now().UTC()
	expired, err := q.store.ExpireLeases(now)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to expire job leases")
	}
	for _, j := range expired {
		metrics.RecordJobOutcome(j.Name, string(models.JobStatusExpired), 0)
		logging.Warn().
			Str("job", j.Name).
			Str("job_id", j.ID).
			Int("attempt", j.Attempts).
			Str("state", string(j.State)).
			Msg("Job lease expired")

		var took time.Duration
		if j.StartedAt != nil {
			took = now.Sub(*j.StartedAt)
		}
		q.record(ctx, newJobResult(j, payloadServerID(j), models.JobStatusExpired, j.LastError, took, now))
		if j.State == StateRetry {
			q.wakeType(j.Name)
		}
	}

	if counts, err := q.store.Counts(); err == nil {
		for _, s := range AllStates {
			metrics.JobQueueDepth.WithLabelValues(string(s)).Set(float64(counts[s]))
		}
	}
	if err := q.store.RunGC(); err != nil {
		logging.Warn().Err(err).Msg("Job store GC failed")
	}
}

func (q *Queue) wakeType(name string) {
	q.mu.RLock()
	r, ok := q.regs[name]
	q.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

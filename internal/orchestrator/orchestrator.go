// Package orchestrator drives import jobs through their state machine:
// claim, validate, build, commit. Many workers may run concurrently,
// in one process or several; the job store's compare-and-swap is the
// only arbiter of ownership.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/builder"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/logger"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/metrics"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/parser"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/repository"
	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/validator"
)

const (
	// QueueSendTimeout bounds how long Submit waits on a full queue.
	QueueSendTimeout = 5 * time.Second
)

// Config carries the externally supplied policy values.
type Config struct {
	// RetryLimit is the retry ceiling: a failed job may be retried
	// while its retry counter has not exceeded this value.
	RetryLimit int
	// MaxPayloadBytes rejects oversized submissions before a job is
	// created.
	MaxPayloadBytes int64
	// PhaseTimeout bounds each of the parse/validate/build phases.
	PhaseTimeout time.Duration
	// WorkerCount sizes the background worker pool.
	WorkerCount int
}

// SubmitRequest is the input of Submit.
type SubmitRequest struct {
	SourceKind     domain.SourceKind
	Format         domain.Format
	Payload        []byte
	CollectionName string
	Principal      string
	Filename       string
}

// task is one unit of background work.
type task struct {
	jobID string
}

// Orchestrator advances import jobs. All public operations are safe
// for concurrent use.
type Orchestrator struct {
	jobs      repository.JobStore
	graphs    repository.GraphStore
	history   repository.HistoryStore
	parsers   *parser.Registry
	validator *validator.Validator
	builder   *builder.Builder
	cfg       Config

	queue    chan task
	stopChan chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
}

// New creates an Orchestrator and starts its worker pool.
func New(
	jobs repository.JobStore,
	graphs repository.GraphStore,
	history repository.HistoryStore,
	parsers *parser.Registry,
	v *validator.Validator,
	b *builder.Builder,
	cfg Config,
) *Orchestrator {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	o := &Orchestrator{
		jobs:      jobs,
		graphs:    graphs,
		history:   history,
		parsers:   parsers,
		validator: v,
		builder:   b,
		cfg:       cfg,
		queue:     make(chan task, cfg.WorkerCount*2),
		stopChan:  make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go o.worker()
	}

	return o
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()

	for {
		select {
		case t, ok := <-o.queue:
			if !ok {
				return
			}
			o.run(t)
		case <-o.stopChan:
			return
		}
	}
}

// Close shuts down the worker pool. Jobs caught mid-phase stay claimed
// and are picked up again through explicit Advance calls.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	close(o.stopChan)
	close(o.queue)
	o.wg.Wait()
}

// run drives one job until it is terminal or another worker holds it.
func (o *Orchestrator) run(t task) {
	ctx := context.Background()
	log := logger.WithJobID(t.jobID)

	for {
		status, err := o.Advance(ctx, t.jobID)
		if errors.Is(err, domain.ErrConflict) {
			return
		}
		if err != nil {
			log.Error("advance failed", slog.String("error", err.Error()))
			return
		}
		if status.Terminal() {
			return
		}
	}
}

// Submit validates the structural preconditions of a request and
// creates a pending job. The job is queued for background processing;
// callers may also drive it explicitly through Advance.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*domain.ImportJob, error) {
	if len(req.Payload) == 0 {
		return nil, &domain.InvalidRequestError{Reason: "payload is empty"}
	}
	if o.cfg.MaxPayloadBytes > 0 && int64(len(req.Payload)) > o.cfg.MaxPayloadBytes {
		return nil, &domain.InvalidRequestError{
			Reason: fmt.Sprintf("payload exceeds limit of %d bytes", o.cfg.MaxPayloadBytes),
		}
	}
	if !domain.IsValidSourceKind(string(req.SourceKind)) {
		return nil, &domain.InvalidRequestError{Reason: fmt.Sprintf("unrecognized source kind %q", req.SourceKind)}
	}
	if req.Format == "" {
		req.Format = domain.FormatUnknown
	}
	if !domain.IsValidFormat(string(req.Format)) {
		return nil, &domain.InvalidRequestError{Reason: fmt.Sprintf("unrecognized format %q", req.Format)}
	}
	if req.CollectionName == "" {
		return nil, &domain.InvalidRequestError{Reason: "collection name is required"}
	}

	now := time.Now().UTC()
	job := &domain.ImportJob{
		ID:             uuid.New().String(),
		SourceKind:     req.SourceKind,
		Format:         req.Format,
		Status:         domain.JobStatusPending,
		Principal:      req.Principal,
		Payload:        req.Payload,
		CollectionName: req.CollectionName,
		Filename:       req.Filename,
		SizeBytes:      int64(len(req.Payload)),
		CreatedAt:      now,
	}

	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	metrics.JobsSubmitted.WithLabelValues(string(job.SourceKind), string(job.Format)).Inc()
	metrics.PayloadBytes.Observe(float64(job.SizeBytes))
	logger.WithJobID(job.ID).Info("import job submitted",
		slog.String("source_kind", string(job.SourceKind)),
		slog.String("format", string(job.Format)),
		slog.String("collection", job.CollectionName),
		slog.Int64("size_bytes", job.SizeBytes))

	o.enqueue(task{jobID: job.ID})
	return job, nil
}

// enqueue hands a task to the worker pool without blocking Submit
// indefinitely when the queue is full.
func (o *Orchestrator) enqueue(t task) {
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return
	}
	o.mu.RUnlock()

	select {
	case o.queue <- t:
	case <-time.After(QueueSendTimeout):
		logger.WithJobID(t.jobID).Warn("worker queue full, deferring job")
		go func() {
			o.mu.RLock()
			if o.closed {
				o.mu.RUnlock()
				return
			}
			o.mu.RUnlock()
			select {
			case o.queue <- t:
			case <-o.stopChan:
			}
		}()
	}
}

// Get returns a read-only snapshot of the job.
func (o *Orchestrator) Get(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// Collection returns a published collection graph.
func (o *Orchestrator) Collection(ctx context.Context, id string) (*domain.Collection, error) {
	col, err := o.graphs.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, domain.ErrNotFound
	}
	return col, nil
}

// ListHistory lists import history records, newest first.
func (o *Orchestrator) ListHistory(ctx context.Context, filter repository.HistoryFilter) ([]domain.ImportHistory, error) {
	return o.history.ListHistory(ctx, filter)
}

// Advance performs one claim-and-run step of the state machine. Any
// non-terminal job can be resumed this way, including one stranded
// mid-phase by a dead worker. Calling it on a terminal job is a no-op
// returning the current status. When another worker wins the claim the
// caller gets ErrConflict and should retry the claim, not the job.
func (o *Orchestrator) Advance(ctx context.Context, jobID string) (domain.JobStatus, error) {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", domain.ErrNotFound
	}

	switch job.Status {
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		if job.Status == domain.JobStatusCompleted {
			if err := o.ensurePublished(ctx, job); err != nil {
				return job.Status, err
			}
		}
		return job.Status, nil

	case domain.JobStatusValidating:
		// Mid-validation: a live worker may hold it, or a crashed one
		// left it behind. Re-claim through the version CAS; validation
		// is pure, so a stolen claim only costs the loser a Conflict on
		// its next swap.
		claimed := *job
		ok, err := o.jobs.CompareAndSwap(ctx, &claimed, job.Version, nil, "")
		if err != nil {
			return job.Status, err
		}
		if !ok {
			return job.Status, domain.ErrConflict
		}
		return o.runValidation(ctx, &claimed)

	case domain.JobStatusPending:
		now := time.Now().UTC()
		claimed, err := domain.BeginValidation(*job, now)
		if err != nil {
			return job.Status, err
		}
		ok, err := o.jobs.CompareAndSwap(ctx, &claimed, job.Version, nil, "")
		if err != nil {
			return job.Status, err
		}
		if !ok {
			return job.Status, domain.ErrConflict
		}
		return o.runValidation(ctx, &claimed)

	case domain.JobStatusProcessing:
		// Exclusive claim for the build phase: a bare version bump.
		claimed := *job
		ok, err := o.jobs.CompareAndSwap(ctx, &claimed, job.Version, nil, "")
		if err != nil {
			return job.Status, err
		}
		if !ok {
			return job.Status, domain.ErrConflict
		}
		return o.runBuild(ctx, &claimed)

	default:
		return job.Status, domain.ErrInvalidState
	}
}

// Retry re-claims a failed job below the retry ceiling back into the
// validation phase and runs it. Valid only from FAILED; anything else,
// including a job past the ceiling, is rejected with ErrInvalidState.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) (domain.JobStatus, error) {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", domain.ErrNotFound
	}

	now := time.Now().UTC()
	claimed, err := domain.ResetForRetry(*job, o.cfg.RetryLimit, now)
	if err != nil {
		return job.Status, err
	}

	ok, err := o.jobs.CompareAndSwap(ctx, &claimed, job.Version, nil, "")
	if err != nil {
		return job.Status, err
	}
	if !ok {
		return job.Status, domain.ErrConflict
	}

	metrics.JobRetries.Inc()
	logger.WithJobID(job.ID).Info("import job retried",
		slog.Int("retry_count", claimed.RetryCount))

	status, err := o.runValidation(ctx, &claimed)
	if err != nil {
		return status, err
	}
	if status == domain.JobStatusProcessing {
		o.enqueue(task{jobID: job.ID})
	}
	return status, nil
}

// runValidation executes the parse and validate phases against a
// claimed VALIDATING snapshot and commits the outcome.
func (o *Orchestrator) runValidation(ctx context.Context, job *domain.ImportJob) (domain.JobStatus, error) {
	log := logger.WithJobID(job.ID)
	start := time.Now()

	var doc *domain.Document
	err := o.runPhase(ctx, "validation", func() error {
		parsed, err := o.parsers.Parse(job.Payload, job.Format)
		if err != nil {
			return err
		}
		doc = parsed
		return nil
	})
	if err != nil {
		return o.failJob(ctx, job, err, nil)
	}

	report := o.validator.Validate(doc)
	metrics.PhaseDuration.WithLabelValues("validation").Observe(time.Since(start).Seconds())

	if !report.Valid {
		log.Warn("document validation failed",
			slog.Int("errors", len(report.Errors)),
			slog.Int("missing_dependencies", len(report.MissingDependencies)))
		return o.failJob(ctx, job, &domain.ValidationFailedError{Report: report}, &report)
	}

	now := time.Now().UTC()
	next, err := domain.BeginProcessing(*job, report, now)
	if err != nil {
		return job.Status, err
	}
	ok, err := o.jobs.CompareAndSwap(ctx, &next, job.Version, nil, "")
	if err != nil {
		return job.Status, err
	}
	if !ok {
		return job.Status, domain.ErrConflict
	}

	log.Info("document validated",
		slog.Int("endpoints", len(doc.Endpoints)),
		slog.Int("warnings", len(report.Warnings)))
	*job = next
	return job.Status, nil
}

// runBuild executes the graph build phase against a claimed PROCESSING
// snapshot and performs the terminal commit: stage the graph invisible,
// then flip job status, append history, and publish the graph in one
// swap. The staged graph is discarded whenever the swap does not land.
func (o *Orchestrator) runBuild(ctx context.Context, job *domain.ImportJob) (domain.JobStatus, error) {
	// Cancellation is cooperative: do not start the build phase on a
	// dead context.
	if err := ctx.Err(); err != nil {
		return job.Status, err
	}

	log := logger.WithJobID(job.ID)
	start := time.Now()

	var col *domain.Collection
	var counters domain.GraphCounters
	err := o.runPhase(ctx, "processing", func() error {
		// Parsing is pure and deterministic, so re-deriving the
		// document from the stored payload is safe here.
		doc, err := o.parsers.Parse(job.Payload, job.Format)
		if err != nil {
			return err
		}
		built, c, err := o.builder.Build(doc, uuid.New().String(), job.CollectionName)
		if err != nil {
			return err
		}
		col = built
		counters = c
		return nil
	})
	if err != nil {
		return o.failJob(ctx, job, err, nil)
	}

	ref, err := o.graphs.Stage(ctx, col)
	if err != nil {
		return o.failJob(ctx, job, err, nil)
	}

	now := time.Now().UTC()
	next, err := domain.Complete(*job, col.ID, counters, now)
	if err != nil {
		o.discard(ctx, ref)
		return job.Status, err
	}
	record := domain.NewHistory(uuid.New().String(), next, now)

	ok, err := o.jobs.CompareAndSwap(ctx, &next, job.Version, &record, ref)
	if err != nil {
		// The commit failed: roll back the staged graph and leave the
		// job observably PROCESSING.
		o.discard(ctx, ref)
		return job.Status, err
	}
	if !ok {
		o.discard(ctx, ref)
		return job.Status, domain.ErrConflict
	}

	metrics.PhaseDuration.WithLabelValues("processing").Observe(time.Since(start).Seconds())
	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
	log.Info("import job completed",
		slog.String("collection_id", col.ID),
		slog.Int("endpoints_imported", counters.EndpointsImported),
		slog.Int("folders_created", counters.FoldersCreated),
		slog.Int("implementations_generated", counters.ImplementationsGenerated))

	*job = next
	return job.Status, nil
}

// failJob commits a failure transition for a claimed job. A history
// record is appended atomically when the failure is permanent.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.ImportJob, cause error, report *domain.ValidationReport) (domain.JobStatus, error) {
	now := time.Now().UTC()
	next, err := domain.Fail(*job, cause.Error(), report, now)
	if err != nil {
		return job.Status, err
	}

	var record *domain.ImportHistory
	if next.PermanentlyFailed(o.cfg.RetryLimit) {
		rec := domain.NewHistory(uuid.New().String(), next, now)
		record = &rec
	}

	ok, err := o.jobs.CompareAndSwap(ctx, &next, job.Version, record, "")
	if err != nil {
		return job.Status, err
	}
	if !ok {
		return job.Status, domain.ErrConflict
	}

	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusFailed)).Inc()
	logger.WithJobID(job.ID).Warn("import job failed",
		slog.String("error", cause.Error()),
		slog.Int("retry_count", next.RetryCount),
		slog.Bool("permanent", record != nil))

	*job = next
	return job.Status, nil
}

// runPhase executes fn under the configured phase timeout. On timeout
// the phase reports a retryable TimeoutError; the goroutine running fn
// is left to finish on its own since phases are pure CPU work.
func (o *Orchestrator) runPhase(ctx context.Context, phase string, fn func() error) error {
	if o.cfg.PhaseTimeout <= 0 {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.PhaseTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.TimeoutError{Phase: phase}
		}
		return ctx.Err()
	}
}

// ensurePublished flips a completed job's graph visible when it is not.
// The terminal commit publishes inside the status swap, so this only
// ever writes for rows produced outside that path.
func (o *Orchestrator) ensurePublished(ctx context.Context, job *domain.ImportJob) error {
	if job.CollectionID == "" {
		return nil
	}
	col, err := o.graphs.GetCollection(ctx, job.CollectionID)
	if err != nil || col != nil {
		return err
	}
	if err := o.graphs.Publish(ctx, job.CollectionID); err != nil {
		return err
	}
	logger.WithJobID(job.ID).Info("republished staged graph",
		slog.String("collection_id", job.CollectionID))
	return nil
}

// discard rolls back a staged graph, logging rather than failing: the
// staged rows are invisible either way.
func (o *Orchestrator) discard(ctx context.Context, ref string) {
	if err := o.graphs.Discard(ctx, ref); err != nil {
		logger.Error("discarding staged graph failed",
			slog.String("ref", ref),
			slog.String("error", err.Error()))
	}
}

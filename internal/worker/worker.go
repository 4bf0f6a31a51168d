package worker

import (
	"context"
	"log/slog"
	"time"

	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/infra/logger"
	"copilot-orchestrator/internal/usecase"
)

const (
	defaultPollInterval   = 100 * time.Millisecond
	defaultIdleMaxBackoff = 10 * time.Second
	defaultMaxAttempts    = 3
	jobTimeout            = 5 * time.Minute
	markTimeout           = 10 * time.Second
	initialBackoff        = 1 * time.Second
)

// Options tunes the polling loop. Zero values fall back to the defaults
// above.
type Options struct {
	PollInterval   time.Duration
	IdleMaxBackoff time.Duration
	MaxAttempts    int
}

// IngestWorker drains the ingestion queue: it claims pending jobs and runs
// them through the ingest usecase. Polling backs off while the queue is empty
// or jobs keep failing, and snaps back to the base interval on success.
type IngestWorker struct {
	jobs         domain.JobRepository
	ingest       usecase.IngestUsecase
	pollInterval time.Duration
	maxBackoff   time.Duration
	maxAttempts  int
	log          *slog.Logger
	stopChan     chan struct{}
	done         chan struct{}
	backoff      time.Duration
}

func NewIngestWorker(
	jobs domain.JobRepository,
	ingest usecase.IngestUsecase,
	opts Options,
	log *slog.Logger,
) *IngestWorker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.IdleMaxBackoff <= 0 {
		opts.IdleMaxBackoff = defaultIdleMaxBackoff
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &IngestWorker{
		jobs:         jobs,
		ingest:       ingest,
		pollInterval: opts.PollInterval,
		maxBackoff:   opts.IdleMaxBackoff,
		maxAttempts:  opts.MaxAttempts,
		log:          log,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (w *IngestWorker) Start() {
	w.log.Info("starting ingest worker",
		"poll_interval", w.pollInterval, "max_attempts", w.maxAttempts)
	go w.run()
}

// Stop signals the loop and waits for an in-flight job to finish.
func (w *IngestWorker) Stop() {
	w.log.Info("stopping ingest worker")
	close(w.stopChan)
	<-w.done
}

func (w *IngestWorker) run() {
	defer close(w.done)

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-timer.C:
			w.processNext()
			if w.backoff > 0 {
				timer.Reset(w.backoff)
			} else {
				timer.Reset(w.pollInterval)
			}
		}
	}
}

// processNext claims and runs one job. It adjusts w.backoff: zero after a
// successful job, growing after an empty poll, an acquire error, or a failed
// job (so a dead dependency cannot burn the attempt budget in a tight loop).
func (w *IngestWorker) processNext() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := w.jobs.AcquireNext(ctx)
	if err != nil {
		w.log.Error("failed to acquire next job", "error", err)
		w.backoff = w.nextBackoff(w.backoff)
		return
	}
	if job == nil {
		w.backoff = w.nextBackoff(w.backoff)
		return
	}

	ctx = logger.WithJobID(ctx, job.ID.String())
	ctx = logger.WithDocumentID(ctx, job.DocumentID.String())
	log := logger.FromContext(ctx, w.log).With("attempt", job.Attempts)
	log.Info("processing ingest job")

	if err := w.ingest.ProcessJob(ctx, job); err != nil {
		w.backoff = w.nextBackoff(w.backoff)
		log.Warn("ingest job failed", "error", err, "backoff", w.backoff)
		if markErr := w.markFailed(job, err.Error()); markErr != nil {
			log.Error("failed to mark job failed", "error", markErr)
		}
		return
	}

	w.backoff = 0
	if err := w.markDone(job); err != nil {
		log.Error("failed to mark job done", "error", err)
		return
	}
	log.Info("ingest job done")
}

// Status updates run on a fresh context: the job context may already be
// expired, and a job stuck in processing would never be re-acquired.
func (w *IngestWorker) markDone(job *domain.IngestJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), markTimeout)
	defer cancel()
	return w.jobs.MarkDone(ctx, job.ID)
}

func (w *IngestWorker) markFailed(job *domain.IngestJob, cause string) error {
	ctx, cancel := context.WithTimeout(context.Background(), markTimeout)
	defer cancel()
	return w.jobs.MarkFailed(ctx, job.ID, cause, w.maxAttempts)
}

func (w *IngestWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > w.maxBackoff {
		return w.maxBackoff
	}
	return next
}

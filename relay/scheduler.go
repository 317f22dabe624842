package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/logging"
	"github.com/hashanchor/receipt-bridge/repository"
)

var ErrJobTerminal = errors.New("job is already in a terminal status")

// Scheduler owns the relay-and-monitor pipelines. Every bridge job gets
// exactly one pipeline goroutine, which preserves the single in-flight
// writer contract: the pipeline is the only writer of its job row, except
// for cancellation, which is guarded by compare-and-set updates.
type Scheduler struct {
	logger  logging.Logger
	repo    *repository.Repo
	relayer *Relayer
	monitor *Monitor

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(logger logging.Logger, repo *repository.Repo, relayer *Relayer, monitor *Monitor) *Scheduler {
	return &Scheduler{
		logger:  logger,
		repo:    repo,
		relayer: relayer,
		monitor: monitor,
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// StartJob launches the pipeline for a freshly created or resumed job and
// returns immediately. Pipelines of different jobs run concurrently and are
// fully isolated, a failure of one never affects its siblings.
func (s *Scheduler) StartJob(ctx context.Context, job *entity.BridgeJob, receipt *entity.Receipt) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if _, ok := s.cancels[job.ID]; ok {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	JobsInFlight.WithLabelValues(string(job.TargetChain)).Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer JobsInFlight.WithLabelValues(string(job.TargetChain)).Dec()
		defer cancel()
		defer s.unregister(job.ID)
		s.runPipeline(ctx, job, receipt)
	}()
}

// CancelJob marks a non-terminal job as cancelled and stops its pipeline.
// Returns ErrJobTerminal when the job already reached a terminal status and
// entity.ErrStaleJobStatus when it reached one concurrently.
func (s *Scheduler) CancelJob(ctx context.Context, id uuid.UUID) error {
	job, err := s.repo.BridgeJobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is already %s: %w", id, job.Status, ErrJobTerminal)
	}
	err = s.repo.BridgeJobs.UpdateStatus(ctx, id, job.Status, &entity.JobUpdate{Status: entity.JobCancelled})
	if err != nil {
		return err
	}
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	s.logger.WithField("job_id", id).Info("bridge job cancelled")
	TerminalJobs.WithLabelValues(string(job.TargetChain), string(entity.JobCancelled)).Inc()
	return nil
}

// ResumeJobs restarts pipelines for all jobs that were non-terminal when the
// process stopped. Jobs stuck in pending or submitting retry with their
// remaining attempt budget, jobs in pending_confirmation re-enter polling
// with a fresh polling window.
func (s *Scheduler) ResumeJobs(ctx context.Context) error {
	jobs, err := s.repo.BridgeJobs.FindNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("can't load non-terminal jobs: %w", err)
	}
	for _, job := range jobs {
		receipt, err := s.repo.Receipts.GetByID(ctx, job.ReceiptID)
		if err != nil {
			s.logger.WithError(err).WithField("job_id", job.ID).Error("can't load receipt for interrupted job")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"job_id": job.ID,
			"status": job.Status,
		}).Info("resuming interrupted bridge job")
		s.StartJob(ctx, job, receipt)
	}
	return nil
}

// Wait blocks until all running pipelines finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) unregister(id uuid.UUID) {
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}

func (s *Scheduler) runPipeline(ctx context.Context, job *entity.BridgeJob, receipt *entity.Receipt) {
	logger := s.logger.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"doc_hash":     job.DocHash,
		"target_chain": job.TargetChain,
	})

	// cur tracks the last persisted status, every write is a compare-and-set
	// against it. A stale status means someone else (cancellation) won the
	// race, in which case the pipeline stops without touching the job again.
	cur := job.Status
	persist := func(upd *entity.JobUpdate) error {
		if err := s.repo.BridgeJobs.UpdateStatus(ctx, job.ID, cur, upd); err != nil {
			return err
		}
		cur = upd.Status
		if upd.Status.Terminal() {
			TerminalJobs.WithLabelValues(string(job.TargetChain), string(upd.Status)).Inc()
		}
		return nil
	}

	if cur == entity.JobPending || cur == entity.JobSubmitting {
		err := s.relayer.RetryRelay(ctx, job, receipt, func(status entity.JobStatus, txHash *common.Hash, attemptErr error) error {
			upd := &entity.JobUpdate{
				Status:   status,
				Attempts: &job.Attempts,
				TxHash:   txHash,
			}
			if attemptErr != nil {
				msg := attemptErr.Error()
				upd.LastError = &msg
			}
			return persist(upd)
		})
		if err != nil {
			logger.WithError(err).Warn("relay pipeline stopped before completion")
			return
		}
	}

	if cur != entity.JobPendingConfirmation {
		return
	}
	if job.TxHash == nil {
		logger.Error("job is awaiting confirmation but has no transaction hash")
		return
	}
	err := s.monitor.StartPolling(ctx, job.DocHash, job.TargetChain, *job.TxHash, func(confirmations uint64, status entity.JobStatus) error {
		conf := uint(confirmations)
		job.Status = status
		job.Confirmations = conf
		upd := &entity.JobUpdate{
			Status:        status,
			Confirmations: &conf,
		}
		if status == entity.JobConfirmed {
			now := time.Now()
			job.ConfirmedAt = &now
			upd.ConfirmedAt = &now
		}
		return persist(upd)
	})
	if err != nil {
		logger.WithError(err).Warn("confirmation polling stopped before completion")
	}
}

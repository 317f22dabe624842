package relay

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/hashanchor/receipt-bridge/config"
	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/ethclient"
	"github.com/hashanchor/receipt-bridge/logging"
	"github.com/hashanchor/receipt-bridge/utils"
)

// UpdateFunc is invoked synchronously after every submission attempt, so that
// the caller can persist the job state. The relayer itself owns no persistence.
type UpdateFunc func(status entity.JobStatus, txHash *common.Hash, attemptErr error) error

type Relayer struct {
	logger          logging.Logger
	clients         map[entity.Chain]ethclient.Client
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
}

func NewRelayer(logger logging.Logger, clients map[entity.Chain]ethclient.Client, cfg *config.RelayConfig) *Relayer {
	return &Relayer{
		logger:          logger,
		clients:         clients,
		retryBackoff:    time.Duration(cfg.RetryBackoff),
		maxRetryBackoff: time.Duration(cfg.MaxRetryBackoff),
	}
}

// Backoff returns the delay before the next submission attempt. The delay
// grows linearly with the attempt count and never decreases, so repeated
// failures cannot hammer the target chain.
func (r *Relayer) Backoff(attempt uint) time.Duration {
	d := time.Duration(attempt) * r.retryBackoff
	if d > r.maxRetryBackoff {
		d = r.maxRetryBackoff
	}
	return d
}

// RetryRelay drives a single bridge job through proof submission, retrying
// transient failures up to the job's attempt budget. The job struct is
// mutated in place before each onUpdate call. Callers must never run two
// RetryRelay invocations for the same job concurrently, the relayer assumes
// a single in-flight submission per job.
func (r *Relayer) RetryRelay(ctx context.Context, job *entity.BridgeJob, receipt *entity.Receipt, onUpdate UpdateFunc) error {
	client, ok := r.clients[job.TargetChain]
	if !ok {
		return fmt.Errorf("no client for chain %q: %w", job.TargetChain, entity.ErrUnsupportedChain)
	}
	logger := r.logger.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"doc_hash":     job.DocHash,
		"target_chain": job.TargetChain,
	})
	if job.Attempts >= job.MaxAttempts {
		// Can happen after a restart, when the crash hit between recording
		// the last attempt and recording the terminal status.
		job.Status = entity.JobFailed
		logger.Warn("job has no remaining attempts, marking as failed")
		return onUpdate(entity.JobFailed, nil, fmt.Errorf("all %d submission attempts exhausted", job.MaxAttempts))
	}

	job.Status = entity.JobSubmitting
	if err := onUpdate(entity.JobSubmitting, nil, nil); err != nil {
		return fmt.Errorf("can't record submitting status: %w", err)
	}
	payload := anchorPayload(receipt)
	for {
		txHash, err := client.SubmitProof(ctx, payload)
		job.Attempts++
		if err == nil {
			SubmissionAttempts.WithLabelValues(string(job.TargetChain), "ok").Inc()
			job.Status = entity.JobPendingConfirmation
			job.TxHash = &txHash
			logger.WithFields(logrus.Fields{
				"tx_hash": txHash,
				"attempt": job.Attempts,
			}).Info("anchor proof submitted")
			return onUpdate(entity.JobPendingConfirmation, &txHash, nil)
		}
		SubmissionAttempts.WithLabelValues(string(job.TargetChain), "error").Inc()
		msg := err.Error()
		job.LastError = &msg
		if job.Attempts >= job.MaxAttempts {
			job.Status = entity.JobFailed
			logger.WithError(err).WithField("attempt", job.Attempts).Error("anchor proof submission failed, no attempts left")
			return onUpdate(entity.JobFailed, nil, err)
		}
		logger.WithError(err).WithField("attempt", job.Attempts).Warn("anchor proof submission failed, retrying")
		if err2 := onUpdate(entity.JobSubmitting, nil, err); err2 != nil {
			return fmt.Errorf("can't record failed attempt: %w", err2)
		}
		if utils.ContextSleep(ctx, r.Backoff(job.Attempts)) == nil {
			return ctx.Err()
		}
	}
}

// anchorPayload is the calldata submitted to the anchor contract: the content
// hash, the receipt's subject sequence number and the proof blob.
func anchorPayload(receipt *entity.Receipt) []byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], receipt.Sequence)
	payload := make([]byte, 0, common.HashLength+len(seq)+len(receipt.Proof))
	payload = append(payload, receipt.ContentHash.Bytes()...)
	payload = append(payload, seq[:]...)
	payload = append(payload, receipt.Proof...)
	return payload
}

package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/hashanchor/receipt-bridge/config"
	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/ethclient"
	"github.com/hashanchor/receipt-bridge/logging"
)

// ConfirmationFunc is invoked after every poll tick with the best-known
// confirmation count and the resulting job status.
type ConfirmationFunc func(confirmations uint64, status entity.JobStatus) error

// Monitor polls target chains for confirmation depth of submitted anchor
// transactions.
type Monitor struct {
	logger          logging.Logger
	clients         map[entity.Chain]ethclient.Client
	pollIntervals   map[entity.Chain]time.Duration
	required        map[entity.Chain]uint64
	maxPollDuration time.Duration
}

func NewMonitor(logger logging.Logger, clients map[entity.Chain]ethclient.Client, cfg *config.Config) *Monitor {
	pollIntervals := make(map[entity.Chain]time.Duration, len(cfg.Chains))
	required := make(map[entity.Chain]uint64, len(cfg.Chains))
	for name, chainCfg := range cfg.Chains {
		pollIntervals[entity.Chain(name)] = time.Duration(chainCfg.PollInterval)
		required[entity.Chain(name)] = uint64(chainCfg.RequiredConfirmations)
	}
	return &Monitor{
		logger:          logger,
		clients:         clients,
		pollIntervals:   pollIntervals,
		required:        required,
		maxPollDuration: time.Duration(cfg.Relay.MaxPollDuration),
	}
}

// StartPolling blocks until the transaction reaches a terminal status or ctx
// is cancelled. Status transitions reported via onConfirmation:
//   - pending_confirmation while the confirmation count is below the chain's
//     required threshold,
//   - confirmed once the threshold is reached,
//   - failed when the chain reports the transaction reverted,
//   - timeout when the maximum polling duration elapses first (covers
//     transactions that were dropped and never mined).
//
// Reported confirmation counts never decrease, short reorg dips are absorbed.
func (m *Monitor) StartPolling(ctx context.Context, docHash common.Hash, targetChain entity.Chain, txHash common.Hash, onConfirmation ConfirmationFunc) error {
	client, ok := m.clients[targetChain]
	if !ok {
		return fmt.Errorf("no client for chain %q: %w", targetChain, entity.ErrUnsupportedChain)
	}
	logger := m.logger.WithFields(logrus.Fields{
		"doc_hash":     docHash,
		"target_chain": targetChain,
		"tx_hash":      txHash,
	})
	required := m.required[targetChain]
	deadline := time.Now().Add(m.maxPollDuration)
	ticker := time.NewTicker(m.pollIntervals[targetChain])
	defer ticker.Stop()

	var confirmations uint64
	for {
		status, err := client.TransactionStatus(ctx, txHash)
		if err != nil {
			ConfirmationPolls.WithLabelValues(string(targetChain), "error").Inc()
			logger.WithError(err).Error("can't poll anchor transaction status")
		} else {
			ConfirmationPolls.WithLabelValues(string(targetChain), "ok").Inc()
			if status.Confirmations > confirmations {
				confirmations = status.Confirmations
			}
			switch {
			case status.Reverted:
				logger.Warn("anchor transaction was reverted by the target chain")
				return onConfirmation(confirmations, entity.JobFailed)
			case status.Mined && confirmations >= required:
				logger.WithField("confirmations", confirmations).Info("anchor transaction confirmed")
				return onConfirmation(confirmations, entity.JobConfirmed)
			default:
				logger.WithField("confirmations", confirmations).Debug("anchor transaction is not yet confirmed")
				if err2 := onConfirmation(confirmations, entity.JobPendingConfirmation); err2 != nil {
					return err2
				}
			}
		}

		if time.Now().After(deadline) {
			logger.Warn("anchor transaction was not confirmed within the polling window")
			return onConfirmation(confirmations, entity.JobTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

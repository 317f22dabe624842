package relay

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/hashanchor/receipt-bridge/entity"
)

type ChainStatus struct {
	Status        entity.JobStatus `json:"status"`
	TxHash        *common.Hash     `json:"txHash,omitempty"`
	Confirmations uint             `json:"confirmations"`
	LastError     *string          `json:"lastError,omitempty"`
}

// GetCrossChainStatus aggregates all known bridge jobs of a document hash
// into a per-target-chain view. The function is pure: it has no side effects
// and yields identical output for identical input. Every chain with at least
// one job is present in the result, failed jobs included. When a chain was
// relayed to more than once, the newest job wins.
func GetCrossChainStatus(docHash common.Hash, jobs []*entity.BridgeJob) map[entity.Chain]*ChainStatus {
	latest := make(map[entity.Chain]*entity.BridgeJob, len(jobs))
	for _, job := range jobs {
		if job.DocHash != docHash {
			continue
		}
		prev, ok := latest[job.TargetChain]
		if ok && prev.CreatedAt != nil && job.CreatedAt != nil && job.CreatedAt.Before(*prev.CreatedAt) {
			continue
		}
		latest[job.TargetChain] = job
	}
	res := make(map[entity.Chain]*ChainStatus, len(latest))
	for chain, job := range latest {
		res[chain] = &ChainStatus{
			Status:        job.Status,
			TxHash:        job.TxHash,
			Confirmations: job.Confirmations,
			LastError:     job.LastError,
		}
	}
	return res
}

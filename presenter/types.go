package presenter

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/relay"
)

type RelayRequest struct {
	ReceiptID    uuid.UUID       `json:"receiptId"`
	TargetChains []string        `json:"targetChains"`
	Metadata     entity.Metadata `json:"metadata,omitempty"`
}

type CreateReceiptRequest struct {
	Type        string        `json:"type"`
	SubjectID   string        `json:"subjectId"`
	ContentHash common.Hash   `json:"contentHash"`
	Proof       hexutil.Bytes `json:"proof"`
}

type JobInfo struct {
	ID                    uuid.UUID        `json:"id"`
	ReceiptID             uuid.UUID        `json:"receiptId"`
	DocHash               common.Hash      `json:"docHash"`
	SourceChain           string           `json:"sourceChain"`
	TargetChain           entity.Chain     `json:"targetChain"`
	Status                entity.JobStatus `json:"status"`
	Confirmations         uint             `json:"confirmations"`
	RequiredConfirmations uint             `json:"requiredConfirmations"`
	Attempts              uint             `json:"attempts"`
	MaxAttempts           uint             `json:"maxAttempts"`
	LastError             *string          `json:"lastError,omitempty"`
	TxHash                *common.Hash     `json:"txHash,omitempty"`
	ConfirmedAt           *time.Time       `json:"confirmedAt,omitempty"`
	CreatedAt             *time.Time       `json:"createdAt,omitempty"`
}

type RelayResult struct {
	Jobs []*JobInfo `json:"jobs"`
}

type StatusResult struct {
	DocHash common.Hash                          `json:"docHash"`
	Chains  map[entity.Chain]*relay.ChainStatus `json:"chains"`
}

type ReceiptInfo struct {
	ID          uuid.UUID     `json:"id"`
	Type        string        `json:"type"`
	SubjectID   string        `json:"subjectId"`
	ContentHash common.Hash   `json:"contentHash"`
	Proof       hexutil.Bytes `json:"proof"`
	Sequence    uint64        `json:"sequence"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
}

type ReceiptResult struct {
	Receipt          *ReceiptInfo                         `json:"receipt"`
	CrossChainStatus map[entity.Chain]*relay.ChainStatus `json:"crossChainStatus"`
}

type CancelResult struct {
	ID     uuid.UUID        `json:"id"`
	Status entity.JobStatus `json:"status"`
}

func jobToInfo(job *entity.BridgeJob) *JobInfo {
	return &JobInfo{
		ID:                    job.ID,
		ReceiptID:             job.ReceiptID,
		DocHash:               job.DocHash,
		SourceChain:           job.SourceChain,
		TargetChain:           job.TargetChain,
		Status:                job.Status,
		Confirmations:         job.Confirmations,
		RequiredConfirmations: job.RequiredConfirmations,
		Attempts:              job.Attempts,
		MaxAttempts:           job.MaxAttempts,
		LastError:             job.LastError,
		TxHash:                job.TxHash,
		ConfirmedAt:           job.ConfirmedAt,
		CreatedAt:             job.CreatedAt,
	}
}

func receiptToInfo(receipt *entity.Receipt) *ReceiptInfo {
	return &ReceiptInfo{
		ID:          receipt.ID,
		Type:        receipt.Type,
		SubjectID:   receipt.SubjectID,
		ContentHash: receipt.ContentHash,
		Proof:       receipt.Proof,
		Sequence:    receipt.Sequence,
		CreatedAt:   receipt.CreatedAt,
	}
}

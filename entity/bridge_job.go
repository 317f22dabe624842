package entity

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending             JobStatus = "pending"
	JobSubmitting          JobStatus = "submitting"
	JobPendingConfirmation JobStatus = "pending_confirmation"
	JobConfirmed           JobStatus = "confirmed"
	JobFailed              JobStatus = "failed"
	JobTimeout             JobStatus = "timeout"
	JobCancelled           JobStatus = "cancelled"
)

// Terminal tells if no further transition can leave the given status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobConfirmed, JobFailed, JobTimeout, JobCancelled:
		return true
	}
	return false
}

type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("can't scan %T into Metadata", src)
	}
	return json.Unmarshal(raw, m)
}

// BridgeJob is one relay attempt of a receipt to one target chain. Jobs are
// never deleted, they serve as an audit trail of all relay activity.
type BridgeJob struct {
	ID                    uuid.UUID    `db:"id"`
	ReceiptID             uuid.UUID    `db:"receipt_id"`
	DocHash               common.Hash  `db:"doc_hash"`
	SourceChain           string       `db:"source_chain"`
	TargetChain           Chain        `db:"target_chain"`
	Status                JobStatus    `db:"status"`
	Confirmations         uint         `db:"confirmations"`
	RequiredConfirmations uint         `db:"required_confirmations"`
	Attempts              uint         `db:"attempts"`
	MaxAttempts           uint         `db:"max_attempts"`
	LastError             *string      `db:"last_error"`
	TxHash                *common.Hash `db:"tx_hash"`
	Metadata              Metadata     `db:"metadata"`
	ConfirmedAt           *time.Time   `db:"confirmed_at"`
	CreatedAt             *time.Time   `db:"created_at"`
	UpdatedAt             *time.Time   `db:"updated_at"`
}

// ErrStaleJobStatus is returned by compare-and-set updates when the job status
// changed concurrently, e.g. when the job was cancelled while a relay attempt
// or a confirmation poll was in flight.
var ErrStaleJobStatus = errors.New("job status changed concurrently")

// JobUpdate is a partial bridge job update. Nil fields are left untouched.
type JobUpdate struct {
	Status        JobStatus
	Attempts      *uint
	Confirmations *uint
	TxHash        *common.Hash
	LastError     *string
	ConfirmedAt   *time.Time
}

type BridgeJobsRepo interface {
	Create(ctx context.Context, job *BridgeJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*BridgeJob, error)
	FindByDocHash(ctx context.Context, docHash common.Hash) ([]*BridgeJob, error)
	FindNonTerminal(ctx context.Context) ([]*BridgeJob, error)
	// UpdateStatus applies upd to the job iff its current status equals
	// expected, returns ErrStaleJobStatus otherwise. Terminal states stay
	// sticky because no caller ever passes a terminal expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected JobStatus, upd *JobUpdate) error
}

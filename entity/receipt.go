package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Receipt is an immutable record of an anchored event. It is created once and
// never mutated, bridge jobs reference it by id.
type Receipt struct {
	ID          uuid.UUID   `db:"id"`
	Type        string      `db:"type"`
	SubjectID   string      `db:"subject_id"`
	ContentHash common.Hash `db:"content_hash"`
	Proof       []byte      `db:"proof"`
	Sequence    uint64      `db:"sequence"`
	CreatedAt   *time.Time  `db:"created_at"`
}

type ReceiptsRepo interface {
	Create(ctx context.Context, receipt *Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*Receipt, error)
	GetByContentHash(ctx context.Context, hash common.Hash) (*Receipt, error)
	// NextSequence returns the next unused sequence number for the subject.
	// Sequence numbers are monotonic per subject and establish a total order
	// among the subject's receipts.
	NextSequence(ctx context.Context, subjectID string) (uint64, error)
}

package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/hashanchor/receipt-bridge/db"
	"github.com/hashanchor/receipt-bridge/entity"
)

type receiptsRepo basePostgresRepo

func NewReceiptsRepo(table string, db *db.DB) entity.ReceiptsRepo {
	return (*receiptsRepo)(newBasePostgresRepo(table, db))
}

func (r *receiptsRepo) Create(ctx context.Context, receipt *entity.Receipt) error {
	q, args, err := sq.Insert(r.table).
		Columns("id", "type", "subject_id", "content_hash", "proof", "sequence").
		Values(receipt.ID, receipt.Type, receipt.SubjectID, receipt.ContentHash, receipt.Proof, receipt.Sequence).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert receipt: %w", err)
	}
	return nil
}

func (r *receiptsRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	return r.get(ctx, sq.Eq{"id": id})
}

func (r *receiptsRepo) GetByContentHash(ctx context.Context, hash common.Hash) (*entity.Receipt, error) {
	return r.get(ctx, sq.Eq{"content_hash": hash})
}

func (r *receiptsRepo) get(ctx context.Context, pred sq.Eq) (*entity.Receipt, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(pred).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	receipt := new(entity.Receipt)
	err = r.db.GetContext(ctx, receipt, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get receipt: %w", err)
	}
	return receipt, nil
}

func (r *receiptsRepo) NextSequence(ctx context.Context, subjectID string) (uint64, error) {
	q, args, err := sq.Select("COALESCE(MAX(sequence), 0) + 1").
		From(r.table).
		Where(sq.Eq{"subject_id": subjectID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var seq uint64
	err = r.db.GetContext(ctx, &seq, q, args...)
	if err != nil {
		return 0, fmt.Errorf("can't get next receipt sequence: %w", err)
	}
	return seq, nil
}

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

type bridgeJobsRepo basePostgresRepo

func NewBridgeJobsRepo(table string, db *db.DB) entity.BridgeJobsRepo {
	return (*bridgeJobsRepo)(newBasePostgresRepo(table, db))
}

func (r *bridgeJobsRepo) Create(ctx context.Context, job *entity.BridgeJob) error {
	q, args, err := sq.Insert(r.table).
		Columns(
			"id", "receipt_id", "doc_hash", "source_chain", "target_chain",
			"status", "confirmations", "required_confirmations",
			"attempts", "max_attempts", "metadata",
		).
		Values(
			job.ID, job.ReceiptID, job.DocHash, job.SourceChain, job.TargetChain,
			job.Status, job.Confirmations, job.RequiredConfirmations,
			job.Attempts, job.MaxAttempts, job.Metadata,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert bridge job: %w", err)
	}
	return nil
}

func (r *bridgeJobsRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.BridgeJob, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	job := new(entity.BridgeJob)
	err = r.db.GetContext(ctx, job, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get bridge job: %w", err)
	}
	return job, nil
}

func (r *bridgeJobsRepo) FindByDocHash(ctx context.Context, docHash common.Hash) ([]*entity.BridgeJob, error) {
	return r.find(ctx, sq.Eq{"doc_hash": docHash})
}

func (r *bridgeJobsRepo) FindNonTerminal(ctx context.Context) ([]*entity.BridgeJob, error) {
	return r.find(ctx, sq.Eq{"status": []entity.JobStatus{
		entity.JobPending,
		entity.JobSubmitting,
		entity.JobPendingConfirmation,
	}})
}

func (r *bridgeJobsRepo) find(ctx context.Context, pred sq.Eq) ([]*entity.BridgeJob, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(pred).
		OrderBy("created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	jobs := make([]*entity.BridgeJob, 0, 3)
	err = r.db.SelectContext(ctx, &jobs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find bridge jobs: %w", err)
	}
	return jobs, nil
}

func (r *bridgeJobsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expected entity.JobStatus, upd *entity.JobUpdate) error {
	b := sq.Update(r.table).
		Set("status", upd.Status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": expected}).
		PlaceholderFormat(sq.Dollar)
	if upd.Attempts != nil {
		b = b.Set("attempts", *upd.Attempts)
	}
	if upd.Confirmations != nil {
		b = b.Set("confirmations", *upd.Confirmations)
	}
	if upd.TxHash != nil {
		b = b.Set("tx_hash", *upd.TxHash)
	}
	if upd.LastError != nil {
		b = b.Set("last_error", *upd.LastError)
	}
	if upd.ConfirmedAt != nil {
		b = b.Set("confirmed_at", *upd.ConfirmedAt)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't update bridge job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s is not in status %q anymore: %w", id, expected, entity.ErrStaleJobStatus)
	}
	return nil
}

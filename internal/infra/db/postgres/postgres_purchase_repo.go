package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*PostgresPurchaseRepo)(nil)

// uniqPurchaseActorSubject backs the one-purchase-per-item rule (see init.sql).
const uniqPurchaseActorSubject = "purchases_actor_subject_key"

type PostgresPurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPurchaseRepo(pool *pgxpool.Pool) *PostgresPurchaseRepo {
	return &PostgresPurchaseRepo{pool: pool}
}

func (r *PostgresPurchaseRepo) Save(ctx context.Context, tx repository.Tx, pu *model.Purchase) error {
	if pu.CreatedAt.IsZero() {
		pu.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO purchases (id, actor_id, subject_id, transaction_id, amount_paid, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, pu.ID, pu.ActorID, pu.SubjectID, pu.TransactionID, pu.AmountPaid, pu.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, uniqPurchaseActorSubject) {
			return domain.ErrAlreadyPurchased
		}
		if isUniqueViolation(err, "") {
			return domain.ErrAlreadyExists
		}
		return mapExecErr(err)
	}
	return nil
}

func (r *PostgresPurchaseRepo) FindByActorAndSubject(ctx context.Context, tx repository.Tx, actorID, subjectID string) (*model.Purchase, error) {
	const q = `
SELECT id, actor_id, subject_id, transaction_id, amount_paid, created_at
  FROM purchases WHERE actor_id=$1 AND subject_id=$2 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, actorID, subjectID)
	if err != nil {
		return nil, err
	}
	var pu model.Purchase
	if err := row.Scan(&pu.ID, &pu.ActorID, &pu.SubjectID, &pu.TransactionID, &pu.AmountPaid, &pu.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &pu, nil
}

func (r *PostgresPurchaseRepo) ListByActor(ctx context.Context, tx repository.Tx, actorID string) ([]*model.Purchase, error) {
	const q = `
SELECT id, actor_id, subject_id, transaction_id, amount_paid, created_at
  FROM purchases WHERE actor_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, actorID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()
	var out []*model.Purchase
	for rows.Next() {
		var pu model.Purchase
		if err := rows.Scan(&pu.ID, &pu.ActorID, &pu.SubjectID, &pu.TransactionID, &pu.AmountPaid, &pu.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &pu)
	}
	return out, rows.Err()
}

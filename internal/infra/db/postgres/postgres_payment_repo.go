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

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, actor_id, subject_id, beneficiary_id, amount, kind, status, provider_reference, created_at`

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = model.TransactionStatusPaid
	}
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.ActorID, t.SubjectID, t.BeneficiaryID, t.Amount, string(t.Kind), string(t.Status), t.ProviderReference, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.ErrAlreadyExists
		}
		return mapExecErr(err)
	}
	return nil
}

func (r *transactionRepo) FindByReference(ctx context.Context, tx repository.Tx, providerRef string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE provider_reference=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", providerRef)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *transactionRepo) ListByActor(ctx context.Context, tx repository.Tx, actorID string) ([]*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE actor_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, actorID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t           model.Transaction
		kind, state string
	)
	if err := row.Scan(&t.ID, &t.ActorID, &t.SubjectID, &t.BeneficiaryID, &t.Amount, &kind, &state, &t.ProviderReference, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Kind = model.Purpose(kind)
	t.Status = model.TransactionStatus(state)
	return &t, nil
}

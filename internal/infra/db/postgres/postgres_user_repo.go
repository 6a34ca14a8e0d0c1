package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/repository"
)

var _ repository.ActorRepository = (*PostgresUserRepo)(nil)

// PostgresUserRepo reads the users table as actor projections.
type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Actor, error) {
	const q = `SELECT id, email, display_name, is_creator FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var a model.Actor
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.IsCreator); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &a, nil
}

func (r *PostgresUserRepo) SetCreator(ctx context.Context, tx repository.Tx, id string, creator bool) error {
	const q = `UPDATE users SET is_creator=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, creator)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Save upserts a user row. Used by the seed command.
func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, a *model.Actor) error {
	const q = `
INSERT INTO users (id, email, display_name, is_creator)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET
  email=EXCLUDED.email, display_name=EXCLUDED.display_name,
  is_creator=EXCLUDED.is_creator, updated_at=NOW();`
	if _, err := execSQL(ctx, r.pool, tx, q, a.ID, a.Email, a.DisplayName, a.IsCreator); err != nil {
		return mapExecErr(err)
	}
	return nil
}

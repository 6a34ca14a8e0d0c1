package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/repository"
)

var _ repository.ContentRepository = (*contentRepo)(nil)

type contentRepo struct{ pool *pgxpool.Pool }

func NewContentRepo(pool *pgxpool.Pool) *contentRepo {
	return &contentRepo{pool: pool}
}

const contentColumns = `id, owner_id, title, price, status, views, created_at`

func (r *contentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Content, error) {
	const q = `SELECT ` + contentColumns + ` FROM contents WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	c, err := scanContent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *contentRepo) SearchByTitle(ctx context.Context, tx repository.Tx, hint string, limit int) ([]*model.Content, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + contentColumns + `
  FROM contents
 WHERE status='published' AND title ILIKE '%' || $1 || '%' ESCAPE '\'
 ORDER BY created_at DESC
 LIMIT $2;`
	return r.list(ctx, tx, q, escapeLike(hint), limit)
}

func (r *contentRepo) ListByPrice(ctx context.Context, tx repository.Tx, price int64, limit int) ([]*model.Content, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + contentColumns + `
  FROM contents
 WHERE status='published' AND price=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	return r.list(ctx, tx, q, price, limit)
}

func (r *contentRepo) IncrementViews(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE contents SET views = views + 1 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *contentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Content, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()
	var out []*model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContent(row pgx.Row) (*model.Content, error) {
	var (
		c      model.Content
		status string
	)
	if err := row.Scan(&c.ID, &c.BeneficiaryID, &c.Title, &c.Price, &status, &c.Views, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = model.ContentStatus(status)
	return &c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// Save upserts a content row; views are left untouched on update.
func (r *contentRepo) Save(ctx context.Context, tx repository.Tx, c *model.Content) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO contents (id, owner_id, title, price, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  owner_id=EXCLUDED.owner_id, title=EXCLUDED.title,
  price=EXCLUDED.price, status=EXCLUDED.status;`
	if _, err := execSQL(ctx, r.pool, tx, q, c.ID, c.BeneficiaryID, c.Title, c.Price, string(c.Status), c.CreatedAt); err != nil {
		return mapExecErr(err)
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blueprint-api/internal/model"
)

const specColumns = `id, user_id, idea, spec_json, created_at, updated_at`

type SpecRepository struct {
	pool *pgxpool.Pool
}

func NewSpecRepository(pool *pgxpool.Pool) *SpecRepository {
	return &SpecRepository{pool: pool}
}

func (r *SpecRepository) Create(ctx context.Context, spec model.Spec) error {
	doc, err := json.Marshal(spec.Document)
	if err != nil {
		return fmt.Errorf("marshal spec document: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO specs (id, user_id, idea, spec_json, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		spec.ID, spec.UserID, spec.Idea, doc, spec.CreatedAt, spec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create spec: %w", err)
	}
	return nil
}

// FindForUser returns the spec only when userID owns it.
func (r *SpecRepository) FindForUser(ctx context.Context, id string, userID string) (model.Spec, error) {
	spec, err := scanSpec(r.pool.QueryRow(ctx,
		`SELECT `+specColumns+` FROM specs WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Spec{}, model.ErrSpecNotFound
	}
	if err != nil {
		return model.Spec{}, fmt.Errorf("find spec: %w", err)
	}
	return spec, nil
}

func (r *SpecRepository) ListRecentForUser(ctx context.Context, userID string, limit int) ([]model.Spec, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+specColumns+`
		 FROM specs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list specs: %w", err)
	}
	defer rows.Close()

	specs := make([]model.Spec, 0, limit)
	for rows.Next() {
		spec, err := scanSpec(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spec: %w", err)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// UpdateDocument replaces the document of an owned spec. updated_at always
// moves forward, even when two writes land within the clock resolution.
func (r *SpecRepository) UpdateDocument(ctx context.Context, id string, userID string, doc model.Document) (model.Spec, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return model.Spec{}, fmt.Errorf("marshal spec document: %w", err)
	}

	spec, err := scanSpec(r.pool.QueryRow(ctx,
		`UPDATE specs
		 SET spec_json = $3,
		     updated_at = greatest(now(), updated_at + interval '1 microsecond')
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+specColumns, id, userID, raw))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Spec{}, model.ErrSpecNotFound
	}
	if err != nil {
		return model.Spec{}, fmt.Errorf("update spec: %w", err)
	}
	return spec, nil
}

func scanSpec(row pgx.Row) (model.Spec, error) {
	var (
		spec model.Spec
		raw  []byte
	)
	if err := row.Scan(&spec.ID, &spec.UserID, &spec.Idea, &raw, &spec.CreatedAt, &spec.UpdatedAt); err != nil {
		return model.Spec{}, err
	}
	if err := json.Unmarshal(raw, &spec.Document); err != nil {
		return model.Spec{}, fmt.Errorf("decode spec document: %w", err)
	}
	return spec, nil
}

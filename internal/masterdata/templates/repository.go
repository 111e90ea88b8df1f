package templates

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doha-roastery/roastery/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Template, int, error)
	Get(ctx context.Context, id string) (Template, error)
	GetMany(ctx context.Context, ids []string) (map[string]Template, error)
	Create(ctx context.Context, tpl Template) (Template, error)
	Update(ctx context.Context, id string, tpl Template) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const templateColumns = `id, size_label, weight_kg, unit_cost, shelf_life_days, sku_prefix, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Template, int, error) {
	query := `SELECT ` + templateColumns + ` FROM packaging_templates WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM packaging_templates WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (size_label ILIKE $` + strconv.Itoa(argCount) + ` OR sku_prefix ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filters.SortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch filters.SortBy {
	case "weight_kg":
		query += " ORDER BY weight_kg " + dir
	case "created_at":
		query += " ORDER BY created_at " + dir
	default:
		query += " ORDER BY size_label " + dir
	}

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		if err := scanTemplate(rows, &t); err != nil {
			return nil, 0, err
		}
		templates = append(templates, t)
	}
	return templates, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Template, error) {
	query := `SELECT ` + templateColumns + ` FROM packaging_templates WHERE id = $1`
	var t Template
	err := scanTemplate(r.db.QueryRow(ctx, query, id), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, shared.ErrNotFound
	}
	return t, err
}

func (r *repository) GetMany(ctx context.Context, ids []string) (map[string]Template, error) {
	if len(ids) == 0 {
		return map[string]Template{}, nil
	}
	query := `SELECT ` + templateColumns + ` FROM packaging_templates WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Template, len(ids))
	for rows.Next() {
		var t Template
		if err := scanTemplate(rows, &t); err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, tpl Template) (Template, error) {
	query := `INSERT INTO packaging_templates (id, size_label, weight_kg, unit_cost, shelf_life_days, sku_prefix, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now()
	tpl.ID = uuid.NewString()
	if _, err := r.db.Exec(ctx, query, tpl.ID, tpl.SizeLabel, tpl.WeightKg, tpl.UnitCost, tpl.ShelfLifeDays, tpl.SKUPrefix, tpl.IsActive, now, now); err != nil {
		return Template{}, err
	}
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return tpl, nil
}

func (r *repository) Update(ctx context.Context, id string, tpl Template) error {
	query := `UPDATE packaging_templates SET size_label = $1, weight_kg = $2, unit_cost = $3, shelf_life_days = $4, sku_prefix = $5, is_active = $6, updated_at = $7 WHERE id = $8`
	tag, err := r.db.Exec(ctx, query, tpl.SizeLabel, tpl.WeightKg, tpl.UnitCost, tpl.ShelfLifeDays, tpl.SKUPrefix, tpl.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	query := `UPDATE packaging_templates SET is_active = FALSE, updated_at = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

func scanTemplate(row pgx.Row, t *Template) error {
	return row.Scan(&t.ID, &t.SizeLabel, &t.WeightKg, &t.UnitCost, &t.ShelfLifeDays, &t.SKUPrefix, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
}

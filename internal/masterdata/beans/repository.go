package beans

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
	List(ctx context.Context, filters shared.ListFilters) ([]Bean, int, error)
	Get(ctx context.Context, id string) (Bean, error)
	Create(ctx context.Context, bean Bean) (Bean, error)
	Update(ctx context.Context, id string, bean Bean) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Bean, int, error) {
	query := `SELECT id, name, origin, process, stock_kg, cost_per_kg, is_active, created_at, updated_at FROM beans WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM beans WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR origin ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Origin != "" {
		argCount++
		clause := ` AND origin = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filters.Origin)
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

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

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

	var beans []Bean
	for rows.Next() {
		var b Bean
		if err := rows.Scan(&b.ID, &b.Name, &b.Origin, &b.Process, &b.StockKg, &b.CostPerKg, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		beans = append(beans, b)
	}
	return beans, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Bean, error) {
	query := `SELECT id, name, origin, process, stock_kg, cost_per_kg, is_active, created_at, updated_at FROM beans WHERE id = $1`
	var b Bean
	err := r.db.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Origin, &b.Process, &b.StockKg, &b.CostPerKg, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bean{}, shared.ErrNotFound
	}
	return b, err
}

func (r *repository) Create(ctx context.Context, bean Bean) (Bean, error) {
	query := `INSERT INTO beans (id, name, origin, process, stock_kg, cost_per_kg, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now()
	bean.ID = uuid.NewString()
	if _, err := r.db.Exec(ctx, query, bean.ID, bean.Name, bean.Origin, bean.Process, bean.StockKg, bean.CostPerKg, bean.IsActive, now, now); err != nil {
		return Bean{}, err
	}
	bean.CreatedAt = now
	bean.UpdatedAt = now
	return bean, nil
}

func (r *repository) Update(ctx context.Context, id string, bean Bean) error {
	query := `UPDATE beans SET name = $1, origin = $2, process = $3, stock_kg = $4, cost_per_kg = $5, is_active = $6, updated_at = $7 WHERE id = $8`
	tag, err := r.db.Exec(ctx, query, bean.Name, bean.Origin, bean.Process, bean.StockKg, bean.CostPerKg, bean.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	query := `UPDATE beans SET is_active = FALSE, updated_at = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir
	case "origin":
		return "origin " + dir
	case "stock_kg":
		return "stock_kg " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}

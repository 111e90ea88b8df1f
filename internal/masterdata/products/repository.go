package products

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doha-roastery/roastery/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id string) (Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id string, product Product) error
	Delete(ctx context.Context, id string) error
	GetRecipe(ctx context.Context, productID string) (Recipe, error)
	ReplaceRecipe(ctx context.Context, productID string, ingredients []RecipeIngredient) error
	ListAddOns(ctx context.Context) ([]AddOn, error)
	GetAddOns(ctx context.Context, ids []string) (map[string]AddOn, error)
	CreateAddOn(ctx context.Context, addOn AddOn) (AddOn, error)
	DeleteAddOn(ctx context.Context, id string) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, category, template_id, base_price, image_url, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND name ILIKE $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Category != "" {
		argCount++
		clause := ` AND category = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filters.Category)
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
	case "base_price":
		query += " ORDER BY base_price " + dir
	case "category":
		query += " ORDER BY category " + dir + ", name ASC"
	case "created_at":
		query += " ORDER BY created_at " + dir
	default:
		query += " ORDER BY name " + dir
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

	var products []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	var p Product
	err := scanProduct(r.db.QueryRow(ctx, query, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) GetMany(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	query := `INSERT INTO products (id, name, category, template_id, base_price, image_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now()
	product.ID = uuid.NewString()
	if _, err := r.db.Exec(ctx, query, product.ID, product.Name, product.Category, nullString(product.TemplateID), product.BasePrice, nullString(product.ImageURL), product.IsActive, now, now); err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id string, product Product) error {
	query := `UPDATE products SET name = $1, category = $2, template_id = $3, base_price = $4, image_url = $5, is_active = $6, updated_at = $7 WHERE id = $8`
	tag, err := r.db.Exec(ctx, query, product.Name, product.Category, nullString(product.TemplateID), product.BasePrice, nullString(product.ImageURL), product.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	query := `UPDATE products SET is_active = FALSE, updated_at = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

func (r *repository) GetRecipe(ctx context.Context, productID string) (Recipe, error) {
	rows, err := r.db.Query(ctx, `SELECT ingredient_id, name, amount, unit FROM recipe_ingredients WHERE product_id = $1 ORDER BY position`, productID)
	if err != nil {
		return Recipe{}, err
	}
	defer rows.Close()

	recipe := Recipe{ProductID: productID}
	for rows.Next() {
		var ing RecipeIngredient
		var ingredientID sql.NullString
		if err := rows.Scan(&ingredientID, &ing.Name, &ing.Amount, &ing.Unit); err != nil {
			return Recipe{}, err
		}
		ing.IngredientID = ingredientID.String
		recipe.Ingredients = append(recipe.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return Recipe{}, err
	}
	if len(recipe.Ingredients) == 0 {
		return Recipe{}, shared.ErrNotFound
	}
	return recipe, nil
}

func (r *repository) ReplaceRecipe(ctx context.Context, productID string, ingredients []RecipeIngredient) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM recipe_ingredients WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for i, ing := range ingredients {
		if _, err := tx.Exec(ctx, `INSERT INTO recipe_ingredients (product_id, position, ingredient_id, name, amount, unit)
VALUES ($1, $2, $3, $4, $5, $6)`,
			productID, i, nullString(ing.IngredientID), ing.Name, ing.Amount, ing.Unit); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repository) ListAddOns(ctx context.Context) ([]AddOn, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, price, ingredient_id, created_at FROM add_ons ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addOns []AddOn
	for rows.Next() {
		var a AddOn
		if err := scanAddOn(rows, &a); err != nil {
			return nil, err
		}
		addOns = append(addOns, a)
	}
	return addOns, rows.Err()
}

func (r *repository) GetAddOns(ctx context.Context, ids []string) (map[string]AddOn, error) {
	if len(ids) == 0 {
		return map[string]AddOn{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, price, ingredient_id, created_at FROM add_ons WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]AddOn, len(ids))
	for rows.Next() {
		var a AddOn
		if err := scanAddOn(rows, &a); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *repository) CreateAddOn(ctx context.Context, addOn AddOn) (AddOn, error) {
	addOn.ID = uuid.NewString()
	addOn.CreatedAt = time.Now()
	_, err := r.db.Exec(ctx, `INSERT INTO add_ons (id, name, price, ingredient_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		addOn.ID, addOn.Name, addOn.Price, nullString(addOn.IngredientID), addOn.CreatedAt)
	if err != nil {
		return AddOn{}, err
	}
	return addOn, nil
}

func (r *repository) DeleteAddOn(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM add_ons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanAddOn(row pgx.Row, a *AddOn) error {
	var ingredientID sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &a.Price, &ingredientID, &a.CreatedAt); err != nil {
		return err
	}
	a.IngredientID = ingredientID.String
	return nil
}

func scanProduct(row pgx.Row, p *Product) error {
	var templateID, imageURL sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &templateID, &p.BasePrice, &imageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	p.TemplateID = templateID.String
	p.ImageURL = imageURL.String
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

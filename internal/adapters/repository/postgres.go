package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pelyams/cached_product_service/internal/domain"
)

// PostgresRepository works with both registered postgres drivers
// ("postgres" from lib/pq and "pgx" from pgx/v5/stdlib).
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storeError("ping failed", err)
	}
	return nil
}

func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := r.db.QueryRowContext(ctx, "SELECT id, name, brand, amount FROM products WHERE id = $1", id).
		Scan(&product.Id, &product.Name, &product.Brand, &product.Amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError(id)
		}
		return nil, storeError("failed to get product %d", err, id)
	}
	return &product, nil
}

func (r *PostgresRepository) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, brand, amount FROM products ORDER BY id")
	if err != nil {
		return nil, storeError("failed to get all products", err)
	}
	return scanProducts(rows, 0)
}

func (r *PostgresRepository) GetProductsPaged(ctx context.Context, limit int64, offset int64) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, brand, amount FROM products ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, storeError("failed to get paginated products", err)
	}
	return scanProducts(rows, limit)
}

func (r *PostgresRepository) StoreProduct(ctx context.Context, product domain.NewProduct) (*domain.Product, error) {
	stored := domain.Product{Name: product.Name, Brand: product.Brand, Amount: product.Amount}
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO products (name, brand, amount) VALUES ($1, $2, $3) RETURNING id",
		product.Name, product.Brand, product.Amount).Scan(&stored.Id)
	if err != nil {
		return nil, storeError("failed to store product", err)
	}
	return &stored, nil
}

func (r *PostgresRepository) SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var saved domain.Product
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (id, name, brand, amount) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, brand = EXCLUDED.brand, amount = EXCLUDED.amount
		RETURNING id, name, brand, amount`,
		product.Id, product.Name, product.Brand, product.Amount).
		Scan(&saved.Id, &saved.Name, &saved.Brand, &saved.Amount)
	if err != nil {
		return nil, storeError("failed to save product %d", err, product.Id)
	}
	return &saved, nil
}

func (r *PostgresRepository) DeleteProductById(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return storeError("failed to delete product %d", err, id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to delete product %d", err, id)
	}
	if affected == 0 {
		return domain.NewNotFoundError(id)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllProducts(ctx context.Context) (int64, error) {
	var count int64
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeError("failed to start transaction", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, "SELECT COUNT (*) FROM products").Scan(&count); err != nil {
		return 0, storeError("failed to count rows", err)
	}
	// TRUNCATE keeps the id sequence, so ids are not reused.
	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE products"); err != nil {
		return 0, storeError("failed to truncate table", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeError("failed to commit transaction", err)
	}
	return count, nil
}

// maxPrealloc bounds the slice capacity reserved up front for a page; larger
// pages grow as rows arrive.
const maxPrealloc = 1000

func pageCapacity(limit int64) int64 {
	return min(max(limit, 0), maxPrealloc)
}

func scanProducts(rows *sql.Rows, capacity int64) ([]domain.Product, error) {
	defer rows.Close()
	products := make([]domain.Product, 0, pageCapacity(capacity))
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.Id, &product.Name, &product.Brand, &product.Amount); err != nil {
			return nil, storeError("failed to convert row into go type", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("error while iterating over rows", err)
	}
	return products, nil
}

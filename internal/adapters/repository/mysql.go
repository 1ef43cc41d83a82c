package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pelyams/cached_product_service/internal/domain"
)

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (m *MySQLRepository) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return storeError("ping failed", err)
	}
	return nil
}

func (m *MySQLRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, brand, amount
		FROM products WHERE id = ?`, id,
	).Scan(&product.Id, &product.Name, &product.Brand, &product.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(id)
	}
	if err != nil {
		return nil, storeError("query product %d", err, id)
	}
	return &product, nil
}

func (m *MySQLRepository) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, brand, amount FROM products ORDER BY id`)
	if err != nil {
		return nil, storeError("query products", err)
	}
	return scanProducts(rows, 0)
}

func (m *MySQLRepository) GetProductsPaged(ctx context.Context, limit int64, offset int64) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, brand, amount
		FROM products ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, storeError("query products page", err)
	}
	return scanProducts(rows, limit)
}

func (m *MySQLRepository) StoreProduct(ctx context.Context, product domain.NewProduct) (*domain.Product, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO products (name, brand, amount) VALUES (?, ?, ?)`,
		product.Name, product.Brand, product.Amount,
	)
	if err != nil {
		return nil, storeError("insert product", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, storeError("read inserted id", err)
	}
	return &domain.Product{Id: id, Name: product.Name, Brand: product.Brand, Amount: product.Amount}, nil
}

func (m *MySQLRepository) SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, brand, amount) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), brand = VALUES(brand), amount = VALUES(amount)`,
		product.Id, product.Name, product.Brand, product.Amount,
	)
	if err != nil {
		return nil, storeError("upsert product %d", err, product.Id)
	}
	saved := product
	return &saved, nil
}

func (m *MySQLRepository) DeleteProductById(ctx context.Context, id int64) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return storeError("delete product %d", err, id)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storeError("delete product %d", err, id)
	}
	if rows == 0 {
		return domain.NewNotFoundError(id)
	}
	return nil
}

// DeleteAllProducts uses DELETE rather than TRUNCATE: TRUNCATE resets
// AUTO_INCREMENT in MySQL and ids would be handed out again.
func (m *MySQLRepository) DeleteAllProducts(ctx context.Context) (int64, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, storeError("delete all products", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("delete all products", err)
	}
	return rows, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"github.com/pelyams/cached_product_service/internal/domain"
	"github.com/pelyams/cached_product_service/testhelpers"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	schema, err := os.ReadFile(testhelpers.MySQLSchemaPath())
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM products`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	return db
}

func TestMySQLStoreAndGet(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLRepository(db)

	stored, err := repo.StoreProduct(ctx, domain.NewProduct{Name: "Drill", Brand: "Bosch", Amount: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Id == 0 {
		t.Fatal("expected store-assigned id")
	}

	got, err := repo.GetProduct(ctx, stored.Id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got != *stored {
		t.Errorf("expected %+v, got %+v", *stored, *got)
	}
}

func TestMySQLSaveOverwrites(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLRepository(db)

	stored, err := repo.StoreProduct(ctx, domain.NewProduct{Name: "Saw", Brand: "Stanley", Amount: 1})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	updated := stored.WithFields(domain.NewProduct{Name: "Hand saw", Brand: "Bahco", Amount: 9})
	if _, err := repo.SaveProduct(ctx, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.GetProduct(ctx, stored.Id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got != updated {
		t.Errorf("expected %+v, got %+v", updated, *got)
	}
}

func TestMySQLDeleteMissing(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLRepository(db)

	err := repo.DeleteProductById(ctx, 987654321)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	if _, err := repo.GetProduct(ctx, 987654321); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMySQLDeleteAllKeepsIdsGrowing(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLRepository(db)

	first, err := repo.StoreProduct(ctx, domain.NewProduct{Name: "a", Brand: "x", Amount: 1})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	count, err := repo.DeleteAllProducts(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 deleted row, got %d", count)
	}
	next, err := repo.StoreProduct(ctx, domain.NewProduct{Name: "b", Brand: "x", Amount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Id <= first.Id {
		t.Errorf("expected id after %d, got %d", first.Id, next.Id)
	}
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mise/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT,
		price REAL NOT NULL DEFAULT 0,
		discounted_price REAL NOT NULL DEFAULT 0,
		description TEXT,
		brand TEXT,
		specifications TEXT,
		image_urls TEXT,
		saved_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_products_position ON products(position);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveProducts replaces the snapshot in a single transaction.
func (s *SQLiteStorage) SaveProducts(ctx context.Context, products []*models.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO products
		 (id, position, name, category, price, discounted_price, description, brand, specifications, image_urls, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for i, p := range products {
		specsJSON, err := json.Marshal(p.Specifications)
		if err != nil {
			return fmt.Errorf("failed to marshal specifications: %w", err)
		}
		imagesJSON, err := json.Marshal(p.ImageURLs)
		if err != nil {
			return fmt.Errorf("failed to marshal image urls: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, i, p.Name, p.Category, p.Price, p.DiscountedPrice, p.Description, p.Brand,
			string(specsJSON), string(imagesJSON), now,
		); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

const productColumns = `id, name, category, price, discounted_price, description, brand, specifications, image_urls`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p                     models.Product
		specsJSON, imageJSON  sql.NullString
		category, desc, brand sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &category, &p.Price, &p.DiscountedPrice, &desc, &brand, &specsJSON, &imageJSON); err != nil {
		return nil, err
	}
	p.Category, p.Description, p.Brand = category.String, desc.String, brand.String
	p.Specifications = map[string]string{}
	if specsJSON.String != "" {
		if err := json.Unmarshal([]byte(specsJSON.String), &p.Specifications); err != nil {
			return nil, fmt.Errorf("failed to unmarshal specifications: %w", err)
		}
	}
	p.ImageURLs = []string{}
	if imageJSON.String != "" {
		if err := json.Unmarshal([]byte(imageJSON.String), &p.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal image urls: %w", err)
		}
	}
	// a nil map or slice is stored as JSON null
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	return &p, nil
}

// GetProduct returns a product by ID.
func (s *SQLiteStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns products in snapshot order with offset and limit.
func (s *SQLiteStorage) ListProducts(ctx context.Context, offset, limit int) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY position LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CountProducts returns the number of stored products.
func (s *SQLiteStorage) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

// LastSaved returns when the snapshot was written.
func (s *SQLiteStorage) LastSaved(ctx context.Context) (time.Time, error) {
	var saved sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(saved_at) FROM products`).Scan(&saved)
	if err != nil || !saved.Valid {
		return time.Time{}, err
	}
	return time.Unix(0, saved.Int64), nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

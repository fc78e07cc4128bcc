// Package storage provides SQLite implementation of the Storage interface.
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

	"github.com/orbitblue/nitamono/internal/models"
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
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		brand_code TEXT NOT NULL,
		sku TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		tags TEXT,
		attributes TEXT,
		description TEXT,
		image_url TEXT,
		on_sale INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (brand_code, sku)
	);

	CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);
	CREATE INDEX IF NOT EXISTS idx_products_brand_updated ON products(brand_code, updated_at);

	CREATE TABLE IF NOT EXISTS vision_feature_cache (
		trace_id TEXT PRIMARY KEY,
		brand_code TEXT NOT NULL,
		scene TEXT,
		features TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feature_cache_expires ON vision_feature_cache(expires_at);
	`
	_, err := db.Exec(schema)
	return err
}

const productColumns = `id, brand_code, sku, name, price, tags, attributes, description, image_url, on_sale, created_at, updated_at`

// upsertSetOnSale writes on_sale from the input.
const upsertSetOnSale = `
	INSERT INTO products (brand_code, sku, name, price, tags, attributes, description, image_url, on_sale, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(brand_code, sku) DO UPDATE SET
		name = excluded.name,
		price = excluded.price,
		tags = excluded.tags,
		attributes = excluded.attributes,
		description = excluded.description,
		image_url = excluded.image_url,
		on_sale = excluded.on_sale,
		updated_at = excluded.updated_at`

// upsertKeepOnSale leaves on_sale untouched: the column default applies on
// insert and the stored value survives an update.
const upsertKeepOnSale = `
	INSERT INTO products (brand_code, sku, name, price, tags, attributes, description, image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(brand_code, sku) DO UPDATE SET
		name = excluded.name,
		price = excluded.price,
		tags = excluded.tags,
		attributes = excluded.attributes,
		description = excluded.description,
		image_url = excluded.image_url,
		updated_at = excluded.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var tags, attrs, desc, img sql.NullString
	if err := row.Scan(&p.ID, &p.BrandCode, &p.SKU, &p.Name, &p.Price,
		&tags, &attrs, &desc, &img, &p.OnSale, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &p.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	p.Description = desc.String
	p.ImageURL = img.String
	return &p, nil
}

func encodeProductJSON(in *models.ProductInput) (tags, attrs sql.NullString, err error) {
	if len(in.Tags) > 0 {
		b, merr := json.Marshal(in.Tags)
		if merr != nil {
			return tags, attrs, fmt.Errorf("failed to marshal tags: %w", merr)
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}
	if len(in.Attributes) > 0 {
		b, merr := json.Marshal(in.Attributes)
		if merr != nil {
			return tags, attrs, fmt.Errorf("failed to marshal attributes: %w", merr)
		}
		attrs = sql.NullString{String: string(b), Valid: true}
	}
	return tags, attrs, nil
}

// UpsertProduct inserts a product or updates the existing (brand_code, sku)
// row, then returns the stored row. OnSale is only written when the input
// carries it. id and created_at are never touched by an update.
func (s *SQLiteStorage) UpsertProduct(ctx context.Context, in *models.ProductInput) (*models.Product, error) {
	if in.BrandCode == "" || in.SKU == "" {
		return nil, fmt.Errorf("brand_code and sku are required")
	}
	tags, attrs, err := encodeProductJSON(in)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if in.OnSale != nil {
		_, err = s.db.ExecContext(ctx, upsertSetOnSale,
			in.BrandCode, in.SKU, in.Name, in.Price, tags, attrs, in.Description, in.ImageURL, *in.OnSale, now, now)
	} else {
		_, err = s.db.ExecContext(ctx, upsertKeepOnSale,
			in.BrandCode, in.SKU, in.Name, in.Price, tags, attrs, in.Description, in.ImageURL, now, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product %s/%s: %w", in.BrandCode, in.SKU, err)
	}

	return s.GetProduct(ctx, in.BrandCode, in.SKU)
}

// BatchUpsertProducts upserts products in a single transaction and returns
// the number of rows written. Inputs missing brand or SKU are skipped.
func (s *SQLiteStorage) BatchUpsertProducts(ctx context.Context, inputs []*models.ProductInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	setOnSale, err := tx.PrepareContext(ctx, upsertSetOnSale)
	if err != nil {
		return 0, err
	}
	defer setOnSale.Close()

	keepOnSale, err := tx.PrepareContext(ctx, upsertKeepOnSale)
	if err != nil {
		return 0, err
	}
	defer keepOnSale.Close()

	now := time.Now()
	written := 0
	for _, in := range inputs {
		if in.BrandCode == "" || in.SKU == "" {
			continue
		}
		tags, attrs, err := encodeProductJSON(in)
		if err != nil {
			return 0, err
		}
		if in.OnSale != nil {
			_, err = setOnSale.ExecContext(ctx,
				in.BrandCode, in.SKU, in.Name, in.Price, tags, attrs, in.Description, in.ImageURL, *in.OnSale, now, now)
		} else {
			_, err = keepOnSale.ExecContext(ctx,
				in.BrandCode, in.SKU, in.Name, in.Price, tags, attrs, in.Description, in.ImageURL, now, now)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to upsert product %s/%s: %w", in.BrandCode, in.SKU, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// GetProduct returns the product with the given brand and SKU.
func (s *SQLiteStorage) GetProduct(ctx context.Context, brandCode, sku string) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE brand_code = ? AND sku = ?`,
		brandCode, sku,
	)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s/%s: %w", brandCode, sku, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes a product row. Deleting a missing product is not an error.
func (s *SQLiteStorage) DeleteProduct(ctx context.Context, brandCode, sku string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM products WHERE brand_code = ? AND sku = ?`, brandCode, sku)
	return err
}

// CandidatesByBrand returns the freshest products of one brand for rule-based
// matching, newest updates first. A limit <= 0 uses DefaultCandidateLimit.
func (s *SQLiteStorage) CandidatesByBrand(ctx context.Context, brandCode string, onSaleOnly bool, limit int) ([]*models.Product, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE brand_code = ?`
	if onSaleOnly {
		query += ` AND on_sale = 1`
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, brandCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListProducts returns products ordered by id, which keeps index rebuilds stable.
func (s *SQLiteStorage) ListProducts(ctx context.Context, offset, limit int) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// PutFeatureRecord stores or replaces a cached vision analysis result.
func (s *SQLiteStorage) PutFeatureRecord(ctx context.Context, rec *models.FeatureRecord) error {
	featuresJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vision_feature_cache (trace_id, brand_code, scene, features, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(trace_id) DO UPDATE SET
			brand_code = excluded.brand_code,
			scene = excluded.scene,
			features = excluded.features,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		rec.TraceID, rec.BrandCode, rec.Scene, string(featuresJSON), rec.CreatedAt, rec.ExpiresAt,
	)
	return err
}

// GetFeatureRecord returns the cached record for traceID. Expired rows are
// reported as ErrNotFound, same as missing ones.
func (s *SQLiteStorage) GetFeatureRecord(ctx context.Context, traceID string) (*models.FeatureRecord, error) {
	var rec models.FeatureRecord
	var scene sql.NullString
	var featuresJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT trace_id, brand_code, scene, features, created_at, expires_at
		 FROM vision_feature_cache WHERE trace_id = ?`, traceID,
	).Scan(&rec.TraceID, &rec.BrandCode, &scene, &featuresJSON, &rec.CreatedAt, &rec.ExpiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trace %s: %w", traceID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		return nil, fmt.Errorf("trace %s expired: %w", traceID, ErrNotFound)
	}

	rec.Scene = scene.String
	if err := json.Unmarshal([]byte(featuresJSON), &rec.Features); err != nil {
		return nil, fmt.Errorf("failed to unmarshal features: %w", err)
	}
	return &rec, nil
}

// DeleteExpiredFeatures removes cache rows whose expiry has passed.
func (s *SQLiteStorage) DeleteExpiredFeatures(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM vision_feature_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountProducts returns the total number of products.
func (s *SQLiteStorage) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

// CountBrands returns the number of distinct brand codes.
func (s *SQLiteStorage) CountBrands(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT brand_code) FROM products`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

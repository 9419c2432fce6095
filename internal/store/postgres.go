package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgPool is the slice of pgxpool.Pool the provider needs; pgxmock satisfies
// it in tests.
type pgPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

// dedupColumns whitelists the columns existence checks may query; anything
// else is a programming error, not user input.
var dedupColumns = map[string]struct{}{
	FieldProductURL:    {},
	FieldArticleNumber: {},
}

// PostgresProvider implements Provider on a pgx connection pool. The target
// table:
//
//	CREATE TABLE catalog_products (
//	    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//	    title TEXT NOT NULL,
//	    price_final DOUBLE PRECISION,
//	    price_original DOUBLE PRECISION,
//	    product_url TEXT NOT NULL,
//	    image_url TEXT,
//	    article_number TEXT,
//	    embedding REAL[],
//	    metadata JSONB,
//	    created_at TIMESTAMPTZ DEFAULT NOW()
//	);
type PostgresProvider struct {
	pool pgPool
}

// NewPostgresProvider connects the pool and verifies it with a ping. The DSN
// comes from the environment; a missing or unreachable store is a startup
// failure, never a per-record one.
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresProvider{pool: pool}, nil
}

// newWithPool wires an existing pool; tests inject pgxmock through it.
func newWithPool(pool pgPool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// Exists runs an existence-only lookup capped at one row.
func (p *PostgresProvider) Exists(ctx context.Context, field, value string) (bool, error) {
	if _, ok := dedupColumns[field]; !ok {
		return false, fmt.Errorf("unsupported dedup field %q", field)
	}
	var one int
	query := `SELECT 1 FROM catalog_products WHERE ` + field + ` = $1 LIMIT 1`
	err := p.pool.QueryRow(ctx, query, value).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence lookup on %s: %w", field, err)
	}
	return true, nil
}

// Insert persists the enriched record. Optional fields are written as NULL.
func (p *PostgresProvider) Insert(ctx context.Context, prod Product) error {
	metadata, err := json.Marshal(prod.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO catalog_products
			(title, price_final, price_original, product_url, image_url, article_number, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = p.pool.Exec(ctx, query,
		prod.Title,
		prod.FinalPrice,
		prod.OriginalPrice,
		prod.ProductURL,
		nullable(prod.ImageURL),
		nullable(prod.ArticleNumber),
		prod.Embedding,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (p *PostgresProvider) Close() {
	p.pool.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Package store defines the record-store interface used for deduplication
// and persistence. The interface decouples the pipeline from Postgres so
// tests can run against an in-memory provider.
package store

import (
	"context"
	"fmt"
)

// Dedup lookup fields. These are the only columns existence checks may touch.
const (
	FieldProductURL    = "product_url"
	FieldArticleNumber = "article_number"
)

// Product is the persisted shape of an enriched record.
type Product struct {
	Title         string
	FinalPrice    *float64
	OriginalPrice *float64
	ProductURL    string
	ImageURL      string
	ArticleNumber string
	Embedding     []float32
	Metadata      map[string]string
}

// Provider is the record store contract.
type Provider interface {
	// Exists reports whether any stored record has field = value.
	// Existence-only: implementations cap the lookup at one match.
	Exists(ctx context.Context, field, value string) (bool, error)

	// Insert writes a new record. Duplicates are filtered before insert, so
	// no upsert semantics are required.
	Insert(ctx context.Context, p Product) error

	// Close releases the underlying connections.
	Close()
}

// IsDuplicate applies the two-key dedup policy: the product URL is the
// primary key, the catalog article number the fallback. URLs change across
// promotions and redesigns while the article number is stable, and vice
// versa when the identifier is missing, so either hit counts.
func IsDuplicate(ctx context.Context, p Provider, productURL, articleNumber string) (bool, error) {
	if productURL != "" {
		hit, err := p.Exists(ctx, FieldProductURL, productURL)
		if err != nil {
			return false, fmt.Errorf("dedup lookup by product url: %w", err)
		}
		if hit {
			return true, nil
		}
	}
	if articleNumber != "" {
		hit, err := p.Exists(ctx, FieldArticleNumber, articleNumber)
		if err != nil {
			return false, fmt.Errorf("dedup lookup by article number: %w", err)
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}

// NoOpProvider discards writes and reports no duplicates. Useful for dry
// runs without store credentials.
type NoOpProvider struct{}

func (NoOpProvider) Exists(context.Context, string, string) (bool, error) { return false, nil }
func (NoOpProvider) Insert(context.Context, Product) error                { return nil }
func (NoOpProvider) Close()                                               {}

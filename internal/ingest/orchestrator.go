// Package ingest ties crawl output to per-record processing: dedup, image
// download, embedding and persistence, with the run-level cancellation and
// error policy.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkattan/catalog-crawler/internal/catalog"
	"github.com/mkattan/catalog-crawler/internal/crawl"
	"github.com/mkattan/catalog-crawler/internal/embed"
	"github.com/mkattan/catalog-crawler/internal/store"
)

// Outcome is the terminal status of one record's processing.
type Outcome string

const (
	OutcomeSaved            Outcome = "saved"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeSkippedNoImage   Outcome = "skipped_no_image"
	OutcomeFailed           Outcome = "failed"
)

// Summary aggregates outcome counts for one run.
type Summary struct {
	Saved            int
	SkippedDuplicate int
	SkippedNoImage   int
	Failed           int
}

// Total returns the number of records accounted for.
func (s Summary) Total() int {
	return s.Saved + s.SkippedDuplicate + s.SkippedNoImage + s.Failed
}

// Metadata is the fixed contextual bundle stamped on every saved record.
type Metadata struct {
	Category      string
	StoreLocation string
	Currency      string
}

// Orchestrator processes crawl records strictly sequentially, in crawl
// order. Order carries no correctness guarantee; it is preserved for
// reproducibility.
type Orchestrator struct {
	store      store.Provider
	embedder   embed.Client
	httpClient *http.Client
	retry      *crawl.RetryPolicy
	meta       Metadata
	userAgent  string
	runID      string
	logger     *zap.Logger
}

// New constructs an Orchestrator. The http.Client is shared across all image
// downloads in the run; the caller owns its lifecycle.
func New(
	st store.Provider,
	embedder embed.Client,
	httpClient *http.Client,
	retry *crawl.RetryPolicy,
	meta Metadata,
	userAgent string,
	logger *zap.Logger,
) *Orchestrator {
	runID := uuid.NewString()
	return &Orchestrator{
		store:      st,
		embedder:   embedder,
		httpClient: httpClient,
		retry:      retry,
		meta:       meta,
		userAgent:  userAgent,
		runID:      runID,
		logger:     logger.With(zap.String("run_id", runID)),
	}
}

// RunID identifies this ingestion run in logs and persisted metadata.
func (o *Orchestrator) RunID() string { return o.runID }

// Run processes the records and returns the outcome summary. Store and
// image-transport failures end the run; embedding and decode failures are
// isolated to the record. Cancellation is honored before every network call
// and before every persist, and never commits the in-flight record.
func (o *Orchestrator) Run(ctx context.Context, records []catalog.Record) (Summary, error) {
	var sum Summary

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		outcome, err := o.process(ctx, rec)
		switch outcome {
		case OutcomeSaved:
			sum.Saved++
			TotalSaved.Inc()
		case OutcomeSkippedDuplicate:
			sum.SkippedDuplicate++
			TotalSkippedDuplicate.Inc()
		case OutcomeSkippedNoImage:
			sum.SkippedNoImage++
			TotalSkippedNoImage.Inc()
		case OutcomeFailed:
			sum.Failed++
			TotalFailed.Inc()
		}
		if err != nil {
			return sum, err
		}
	}

	return sum, nil
}

// process runs one record to its terminal outcome. A non-nil error means the
// run must stop; record-level failures return (OutcomeFailed, nil).
func (o *Orchestrator) process(ctx context.Context, rec catalog.Record) (Outcome, error) {
	log := o.logger.With(zap.String("title", rec.Title))

	if rec.ImageURL == "" {
		log.Warn("Skipping record with no image")
		return OutcomeSkippedNoImage, nil
	}

	dup, err := store.IsDuplicate(ctx, o.store, rec.ProductURL, rec.ArticleNumber)
	if err != nil {
		return OutcomeFailed, err
	}
	if dup {
		log.Info("Skipping duplicate record")
		return OutcomeSkippedDuplicate, nil
	}

	if err := ctx.Err(); err != nil {
		return OutcomeFailed, err
	}
	data, err := o.downloadImage(ctx, rec.ImageURL)
	if err != nil {
		// Image transport failure is fatal to the run, like any other
		// transport failure without a working fallback.
		return OutcomeFailed, err
	}

	img, err := decodeRGBA(data)
	if err != nil {
		log.Warn("Undecodable product image", zap.Error(err))
		return OutcomeFailed, nil
	}

	vector, err := o.embedder.Embed(ctx, img)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return OutcomeFailed, err
		}
		log.Warn("Embedding failed", zap.Error(err))
		return OutcomeFailed, nil
	}
	log.Info("Image embedded", zap.Int("dimensions", len(vector)))

	if err := ctx.Err(); err != nil {
		return OutcomeFailed, err
	}
	product := store.Product{
		Title:         rec.Title,
		FinalPrice:    rec.FinalPrice,
		OriginalPrice: rec.OriginalPrice,
		ProductURL:    rec.ProductURL,
		ImageURL:      rec.ImageURL,
		ArticleNumber: rec.ArticleNumber,
		Embedding:     vector,
		Metadata: map[string]string{
			"category":       o.meta.Category,
			"store_location": o.meta.StoreLocation,
			"currency":       o.meta.Currency,
			"run_id":         o.runID,
		},
	}
	if err := o.store.Insert(ctx, product); err != nil {
		return OutcomeFailed, fmt.Errorf("persist record: %w", err)
	}

	log.Info("Record saved")
	return OutcomeSaved, nil
}

// downloadImage fetches the product image bytes with the run's shared HTTP
// client, retrying transient failures.
func (o *Orchestrator) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	var data []byte
	err := o.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return &crawl.TransportError{URL: imageURL, Err: err}
		}
		req.Header.Set("User-Agent", o.userAgent)

		resp, err := o.httpClient.Do(req)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return &crawl.TransportError{URL: imageURL, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &crawl.TransportError{URL: imageURL, StatusCode: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &crawl.TransportError{URL: imageURL, Err: err}
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DefaultHTTPClient builds the shared client for image downloads.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mkattan/catalog-crawler/internal/catalog"
	"github.com/mkattan/catalog-crawler/internal/config"
	"github.com/mkattan/catalog-crawler/internal/crawl"
	"github.com/mkattan/catalog-crawler/internal/embed"
	"github.com/mkattan/catalog-crawler/internal/ingest"
	"github.com/mkattan/catalog-crawler/internal/logging"
	"github.com/mkattan/catalog-crawler/internal/selector"
	"github.com/mkattan/catalog-crawler/internal/store"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Crawl the configured category listing and ingest new products.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context())
		},
	}
}

func runIngest(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	provider, err := store.NewPostgresProvider(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer provider.Close()

	fetcher := crawl.NewCollyFetcher(cfg.Crawl.UserAgent, cfg.Crawl.AcceptLanguage, cfg.RequestTimeout(), logger)
	defer fetcher.Close()

	spec := selector.Default().Merge(selector.Spec{
		Card:          cfg.Selectors.Card,
		Title:         cfg.Selectors.Title,
		FinalPrice:    cfg.Selectors.FinalPrice,
		OriginalPrice: cfg.Selectors.OriginalPrice,
		Link:          cfg.Selectors.Link,
		Image:         cfg.Selectors.Image,
		ArticleNumber: cfg.Selectors.ArticleNumber,
	})
	extractor, err := catalog.NewExtractor(cfg.Site.BaseURL, spec)
	if err != nil {
		return err
	}

	retry := crawl.NewRetryPolicy(
		cfg.HTTP.MaxRetries,
		time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
	)

	delayMin, delayMax := cfg.PageDelayBounds()
	loop := crawl.NewLoop(crawl.Config{
		CategoryURL: cfg.CategoryURL(),
		MaxPages:    cfg.Crawl.MaxPages,
		DelayMin:    delayMin,
		DelayMax:    delayMax,
	}, fetcher, extractor, spec, retry, logger)

	logger.Info("Starting category crawl",
		zap.String("url", cfg.CategoryURL()),
		zap.Int("max_pages", cfg.Crawl.MaxPages),
	)

	records, err := loop.Crawl(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || len(records) == 0 {
			return err
		}
		// A later page failed after earlier pages succeeded. The partial
		// listing is still worth ingesting; the error is surfaced in the log.
		logger.Warn("Crawl ended early; ingesting partial results",
			zap.Int("records", len(records)),
			zap.Error(err),
		)
	}
	logger.Info("Crawl finished", zap.Int("records", len(records)))

	embedder := embed.NewHTTPClient(
		cfg.Embedder.URL,
		time.Duration(cfg.Embedder.TimeoutSeconds)*time.Second,
		cfg.Embedder.RPS,
	)

	orch := ingest.New(
		provider,
		embedder,
		ingest.DefaultHTTPClient(cfg.RequestTimeout()),
		retry,
		ingest.Metadata{
			Category:      cfg.Site.CategoryLabel,
			StoreLocation: cfg.Site.StoreLocation,
			Currency:      cfg.Site.Currency,
		},
		cfg.Crawl.UserAgent,
		logger,
	)

	summary, err := orch.Run(ctx, records)
	logger.Info("Ingestion summary",
		zap.String("run_id", orch.RunID()),
		zap.Int("saved", summary.Saved),
		zap.Int("skipped_duplicate", summary.SkippedDuplicate),
		zap.Int("skipped_no_image", summary.SkippedNoImage),
		zap.Int("failed", summary.Failed),
		zap.Int("total", summary.Total()),
	)
	return err
}

// serveMetrics exposes the Prometheus registry; failures here never take the
// crawl down.
func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics listener stopped", zap.Error(err))
	}
}

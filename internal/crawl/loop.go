package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mkattan/catalog-crawler/internal/catalog"
	"github.com/mkattan/catalog-crawler/internal/selector"
)

// Config holds the settings for one crawl session. Decoupled from Viper so
// the loop stays testable on its own.
type Config struct {
	CategoryURL string
	MaxPages    int
	DelayMin    time.Duration
	DelayMax    time.Duration
}

// Loop drives pagination over a category listing and accumulates accepted
// records in page order.
type Loop struct {
	cfg       Config
	fetcher   Fetcher
	extractor *catalog.Extractor
	spec      selector.Spec
	retry     *RetryPolicy
	pause     pauseController
	logger    *zap.Logger
}

// NewLoop constructs a crawl loop.
func NewLoop(cfg Config, fetcher Fetcher, extractor *catalog.Extractor, spec selector.Spec, retry *RetryPolicy, logger *zap.Logger) *Loop {
	return &Loop{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		spec:      spec,
		retry:     retry,
		pause:     jitterPause{},
		logger:    logger,
	}
}

// Crawl walks pages 1..MaxPages and returns the accepted records in crawl
// order. Pagination stops early at the first page with zero matched cards.
// A transport failure on the first page returns no records along with the
// error; on a later page the records accumulated so far are returned
// together with the error, leaving the caller to decide whether a truncated
// crawl is usable.
func (l *Loop) Crawl(ctx context.Context) ([]catalog.Record, error) {
	var records []catalog.Record

	for page := 1; page <= l.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		pageURL, err := l.pageURL(page)
		if err != nil {
			return records, err
		}

		doc, err := l.fetchPage(ctx, pageURL)
		if err != nil {
			TotalFetchErrors.Inc()
			return records, err
		}
		TotalPagesFetched.Inc()

		cards := selector.Cards(doc, l.spec.Card)
		if cards == nil {
			l.logger.Info("No product cards matched; treating as end of results",
				zap.Int("page", page),
				zap.String("url", pageURL),
			)
			l.logger.Info("If the listing renders products client-side, an HTML-rendering fallback would be needed before parsing")
			break
		}

		accepted := 0
		cards.Each(func(_ int, card *goquery.Selection) {
			TotalCardsExtracted.Inc()
			rec := l.extractor.Extract(card)
			if rec.Accepted() {
				records = append(records, rec)
				accepted++
			}
		})

		l.logger.Info("Processed listing page",
			zap.Int("page", page),
			zap.Int("cards", cards.Length()),
			zap.Int("accepted", accepted),
		)

		if page < l.cfg.MaxPages {
			l.pause.Pause(ctx, l.cfg.DelayMin, l.cfg.DelayMax)
		}
	}

	return records, nil
}

func (l *Loop) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := l.retry.Do(ctx, func() error {
		var ferr error
		doc, ferr = l.fetcher.Fetch(ctx, pageURL)
		return ferr
	})
	return doc, err
}

// pageURL builds the URL for a page number: page 1 is the bare category URL,
// later pages carry a page query parameter.
func (l *Loop) pageURL(page int) (string, error) {
	if page <= 1 {
		return l.cfg.CategoryURL, nil
	}
	u, err := url.Parse(l.cfg.CategoryURL)
	if err != nil {
		return "", fmt.Errorf("parse category url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

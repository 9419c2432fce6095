// Package crawl drives the paginated category crawl: fetching listing pages
// with a fixed browser identity, locating product cards, and applying the
// politeness and retry policies.
package crawl

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Fetcher retrieves one listing page as a parsed document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// CollyFetcher implements Fetcher with a cloned Colly collector per request
// over one shared transport, so the whole run reuses connections and the
// transport can be drained on every exit path.
type CollyFetcher struct {
	baseCollector *colly.Collector
	transport     *http.Transport
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher. The user agent
// and accept-language mimic a desktop browser; listing endpoints frequently
// degrade or block obvious bot identities.
func NewCollyFetcher(userAgent, acceptLanguage string, timeout time.Duration, logger *zap.Logger) *CollyFetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	base := colly.NewCollector(colly.UserAgent(userAgent))
	base.AllowURLRevisit = true
	base.WithTransport(transport)
	base.SetRequestTimeout(timeout)
	base.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", acceptLanguage)
	})

	return &CollyFetcher{
		baseCollector: base,
		transport:     transport,
		logger:        logger,
	}
}

type fetchResult struct {
	doc *goquery.Document
	err error
}

// Fetch retrieves one page. Any non-success status or transport failure
// surfaces as a *TransportError; no retries happen at this level.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			send(fetchResult{err: &TransportError{URL: rawURL, StatusCode: r.StatusCode}})
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			send(fetchResult{err: &TransportError{URL: rawURL, Err: err}})
			return
		}
		send(fetchResult{doc: doc})
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if err == nil {
			err = errors.New("unknown transport error")
		}
		send(fetchResult{err: &TransportError{URL: rawURL, StatusCode: status, Err: err}})
	})

	if err := collector.Visit(rawURL); err != nil {
		collector.Wait()
		// A non-2xx response surfaces both as the Visit error and through
		// OnError; the channel result carries the status code, so prefer it.
		select {
		case res := <-resultCh:
			if res.err != nil {
				return nil, res.err
			}
		default:
		}
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.doc, res.err
	default:
		return nil, &TransportError{URL: rawURL, Err: errors.New("fetch produced no result")}
	}
}

// Close drains idle connections held by the shared transport.
func (f *CollyFetcher) Close() {
	f.transport.CloseIdleConnections()
}

package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalPagesFetched tracks listing pages fetched successfully.
	TotalPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pages_fetched_total",
		Help: "The total number of listing pages fetched successfully.",
	})
	// TotalCardsExtracted tracks product cards extracted across all pages.
	TotalCardsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cards_extracted_total",
		Help: "The total number of product cards extracted from listing pages.",
	})
	// TotalFetchErrors tracks page fetch attempts that ended in a transport error.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_page_fetch_errors_total",
		Help: "The total number of listing page fetches that failed.",
	})
)

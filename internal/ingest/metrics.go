package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalSaved tracks records enriched and persisted.
	TotalSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_records_saved_total",
		Help: "The total number of records embedded and persisted.",
	})
	// TotalSkippedDuplicate tracks records already present in the store.
	TotalSkippedDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_records_skipped_duplicate_total",
		Help: "The total number of records skipped as duplicates.",
	})
	// TotalSkippedNoImage tracks records dropped for lack of an image URL.
	TotalSkippedNoImage = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_records_skipped_no_image_total",
		Help: "The total number of records skipped for missing images.",
	})
	// TotalFailed tracks records whose enrichment failed.
	TotalFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_records_failed_total",
		Help: "The total number of records whose processing failed.",
	})
)

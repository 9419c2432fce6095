// Package catalog turns listing-page markup into normalized product records.
package catalog

// Record is one extracted listing entry. Title and ProductURL are required
// for a record to enter the crawl result set; every other field is
// best-effort and may be absent.
type Record struct {
	Title         string
	FinalPrice    *float64
	OriginalPrice *float64
	ProductURL    string
	ImageURL      string
	ArticleNumber string
}

// Accepted reports whether the record qualifies for the crawl result set.
func (r Record) Accepted() bool {
	return r.Title != "" && r.ProductURL != ""
}

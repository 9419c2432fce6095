package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mkattan/catalog-crawler/internal/selector"
)

// articleNumberPattern matches catalog identifiers of the form 305.403.77.
// Only the dot-separated form counts; dash-encoded variants in URL slugs are
// deliberately not recovered.
var articleNumberPattern = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{2}\b`)

// priceScrub drops every rune that is not a digit or decimal point.
var priceScrub = regexp.MustCompile(`[^0-9.]`)

// Extractor converts one product card into a Record. It is a pure transform:
// missing or malformed fields degrade to absent values, never errors.
type Extractor struct {
	base *url.URL
	spec selector.Spec
}

// NewExtractor builds an Extractor resolving relative links against baseURL.
func NewExtractor(baseURL string, spec selector.Spec) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Extractor{base: base, spec: spec}, nil
}

// Extract pulls every field from the card through the selector fallback
// chains. The caller filters out records that fail Accepted().
func (e *Extractor) Extract(card *goquery.Selection) Record {
	rec := Record{
		Title:         resolveText(card, e.spec.Title),
		FinalPrice:    NormalizePrice(resolveText(card, e.spec.FinalPrice)),
		OriginalPrice: NormalizePrice(resolveText(card, e.spec.OriginalPrice)),
	}

	if link := selector.Resolve(card, e.spec.Link); link != nil {
		if href, ok := link.Attr("href"); ok && href != "" {
			rec.ProductURL = e.absolute(href)
		}
	}

	if img := selector.Resolve(card, e.spec.Image); img != nil {
		src := img.AttrOr("src", "")
		if src == "" {
			// Lazy-loaded images carry the real URL in data-src.
			src = img.AttrOr("data-src", "")
		}
		if src != "" {
			rec.ImageURL = e.absolute(src)
		}
	}

	rec.ArticleNumber = ExtractArticleNumber(resolveText(card, e.spec.ArticleNumber))
	if rec.ArticleNumber == "" && rec.ProductURL != "" {
		// Some layouts drop the descriptor node but keep the identifier in
		// the product URL path.
		rec.ArticleNumber = ExtractArticleNumber(rec.ProductURL)
	}

	return rec
}

func (e *Extractor) absolute(ref string) string {
	u, err := e.base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

func resolveText(card *goquery.Selection, candidates []string) string {
	m := selector.Resolve(card, candidates)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Text())
}

// NormalizePrice parses a display price like "1,234.50 AED" into its numeric
// amount. Input with no digits, or digits that do not form a number, yields
// nil. Total by design.
func NormalizePrice(raw string) *float64 {
	cleaned := priceScrub.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ExtractArticleNumber returns the first dot-formatted catalog identifier in
// text, or "" when none occurs.
func ExtractArticleNumber(text string) string {
	if text == "" {
		return ""
	}
	return articleNumberPattern.FindString(text)
}

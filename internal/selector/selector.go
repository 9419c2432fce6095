// Package selector implements the ordered selector fallback chains that make
// extraction survive site redesigns. Each logical field carries a list of
// candidate CSS selectors; candidates are tried strictly in order and the
// first structural match wins, so newer markup variants can be appended
// without touching extraction logic.
package selector

import "github.com/PuerkitoBio/goquery"

// Spec is the full fallback table for one listing layout. It is static
// configuration, loaded once at startup and immutable for the run.
type Spec struct {
	Card          []string
	Title         []string
	FinalPrice    []string
	OriginalPrice []string
	Link          []string
	Image         []string
	ArticleNumber []string
}

// Default returns the fallback table for the reference retailer. Candidates
// are ordered oldest layout first; each entry corresponds to one observed
// site revision.
func Default() Spec {
	return Spec{
		Card: []string{
			"div.product-compact",
			"div.product-compact__spacer",
			"div.pip-product-list__item",
			"div.plp-product-list__item",
		},
		Title: []string{
			"span.product-compact__name",
			"h3.product-compact__name",
			"h3.pip-header-section__title--big",
			"a.pip-product-compact__link span",
		},
		FinalPrice: []string{
			"span.product-compact__price__integer",
			"span.product-compact__price",
			"span.pip-price__integer",
			"span.pip-price",
		},
		OriginalPrice: []string{
			"span.product-compact__price--original",
			"span.pip-price__original-price",
			"span.pip-price-module__original-price",
		},
		Link: []string{
			"a.product-compact__link",
			"a.pip-product-compact__link",
			"a.pip-product-compact",
		},
		Image: []string{
			"img.product-compact__image",
			"img.pip-product-compact__image",
			"img.pip-image",
		},
		ArticleNumber: []string{
			"span.product-compact__type-number",
			"span.pip-product-compact__description",
			"span.pip-product-compact__type-number",
		},
	}
}

// Merge returns a copy of s where every non-empty chain in override replaces
// the corresponding chain in s. Empty override chains keep the built-in
// candidates, so a config file only needs to name the fields that drifted.
func (s Spec) Merge(override Spec) Spec {
	if len(override.Card) > 0 {
		s.Card = override.Card
	}
	if len(override.Title) > 0 {
		s.Title = override.Title
	}
	if len(override.FinalPrice) > 0 {
		s.FinalPrice = override.FinalPrice
	}
	if len(override.OriginalPrice) > 0 {
		s.OriginalPrice = override.OriginalPrice
	}
	if len(override.Link) > 0 {
		s.Link = override.Link
	}
	if len(override.Image) > 0 {
		s.Image = override.Image
	}
	if len(override.ArticleNumber) > 0 {
		s.ArticleNumber = override.ArticleNumber
	}
	return s
}

// Resolve tries the candidates in order against root and returns the first
// match, or nil when none match. Absence is a valid outcome, never an error:
// optional fields legitimately resolve to nothing on some layouts.
func Resolve(root *goquery.Selection, candidates []string) *goquery.Selection {
	for _, candidate := range candidates {
		if m := root.Find(candidate); m.Length() > 0 {
			return m.First()
		}
	}
	return nil
}

// Cards locates the product card nodes on a listing page: the first candidate
// yielding at least one match wins and all its matches are returned. Unlike
// field-level resolution this is first-selector-with-matches, because a page
// with zero cards means end-of-results or an incompatible layout.
func Cards(doc *goquery.Document, candidates []string) *goquery.Selection {
	for _, candidate := range candidates {
		if m := doc.Find(candidate); m.Length() > 0 {
			return m
		}
	}
	return nil
}

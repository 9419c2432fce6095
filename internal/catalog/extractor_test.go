package catalog

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkattan/catalog-crawler/internal/selector"
)

func testSpec() selector.Spec {
	return selector.Spec{
		Card:          []string{"div.card"},
		Title:         []string{"span.name-old", "span.name"},
		FinalPrice:    []string{"span.price"},
		OriginalPrice: []string{"span.price-original"},
		Link:          []string{"a.link"},
		Image:         []string{"img.photo"},
		ArticleNumber: []string{"span.descriptor"},
	}
}

func cardFrom(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	card := doc.Find("div.card")
	require.Equal(t, 1, card.Length())
	return card
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor("https://www.example-store.test/ae/en", testSpec())
	require.NoError(t, err)
	return e
}

func TestExtractFullCard(t *testing.T) {
	e := newTestExtractor(t)
	card := cardFrom(t, `
		<div class="card">
			<span class="name"> LANDSKRONA </span>
			<span class="price">1,234.50 AED</span>
			<span class="price-original">1,500 AED</span>
			<a class="link" href="/ae/en/p/landskrona-sofa-30540377/">sofa</a>
			<img class="photo" src="https://cdn.example-store.test/landskrona.jpg">
			<span class="descriptor">3-seat sofa, 305.403.77</span>
		</div>`)

	rec := e.Extract(card)

	assert.Equal(t, "LANDSKRONA", rec.Title)
	require.NotNil(t, rec.FinalPrice)
	assert.InDelta(t, 1234.50, *rec.FinalPrice, 1e-9)
	require.NotNil(t, rec.OriginalPrice)
	assert.InDelta(t, 1500, *rec.OriginalPrice, 1e-9)
	assert.Equal(t, "https://www.example-store.test/ae/en/p/landskrona-sofa-30540377/", rec.ProductURL)
	assert.Equal(t, "https://cdn.example-store.test/landskrona.jpg", rec.ImageURL)
	assert.Equal(t, "305.403.77", rec.ArticleNumber)
	assert.True(t, rec.Accepted())
}

func TestExtractMissingFieldsDegrade(t *testing.T) {
	e := newTestExtractor(t)
	card := cardFrom(t, `
		<div class="card">
			<span class="name">EKTORP</span>
			<a class="link" href="/p/ektorp/">sofa</a>
		</div>`)

	rec := e.Extract(card)

	assert.Equal(t, "EKTORP", rec.Title)
	assert.Nil(t, rec.FinalPrice)
	assert.Nil(t, rec.OriginalPrice)
	assert.Empty(t, rec.ImageURL)
	assert.Empty(t, rec.ArticleNumber)
	assert.True(t, rec.Accepted())
}

func TestExtractTitleFallbackChain(t *testing.T) {
	e := newTestExtractor(t)
	card := cardFrom(t, `
		<div class="card">
			<span class="name-old">Old Markup Name</span>
			<span class="name">New Markup Name</span>
			<a class="link" href="/p/x/">x</a>
		</div>`)

	rec := e.Extract(card)
	assert.Equal(t, "Old Markup Name", rec.Title)
}

func TestExtractImageDataSrcFallback(t *testing.T) {
	e := newTestExtractor(t)
	card := cardFrom(t, `
		<div class="card">
			<span class="name">X</span>
			<a class="link" href="/p/x/">x</a>
			<img class="photo" data-src="/images/lazy.jpg">
		</div>`)

	rec := e.Extract(card)
	assert.Equal(t, "https://www.example-store.test/images/lazy.jpg", rec.ImageURL)
}

func TestExtractArticleNumberFromURLFallback(t *testing.T) {
	e := newTestExtractor(t)
	// No descriptor node, but the identifier survives in the link path.
	card := cardFrom(t, `
		<div class="card">
			<span class="name">X</span>
			<a class="link" href="/p/x-sofa-305.403.77/">x</a>
		</div>`)

	rec := e.Extract(card)
	assert.Equal(t, "305.403.77", rec.ArticleNumber)
}

func TestExtractNotAcceptedWithoutLink(t *testing.T) {
	e := newTestExtractor(t)
	card := cardFrom(t, `<div class="card"><span class="name">X</span></div>`)

	rec := e.Extract(card)
	assert.False(t, rec.Accepted())
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"1,234.50 AED", ptr(1234.50)},
		{"AED 999", ptr(999)},
		{"1.095", ptr(1.095)},
		{"  2,000  ", ptr(2000)},
		{"", nil},
		{"AED", nil},
		{"price on request", nil},
		{"1.2.3", nil},
	}
	for _, tc := range tests {
		got := NormalizePrice(tc.raw)
		if tc.want == nil {
			assert.Nil(t, got, "raw=%q", tc.raw)
			continue
		}
		require.NotNil(t, got, "raw=%q", tc.raw)
		assert.InDelta(t, *tc.want, *got, 1e-9, "raw=%q", tc.raw)
	}
}

func TestExtractArticleNumber(t *testing.T) {
	assert.Equal(t, "305.403.77", ExtractArticleNumber("3-seat sofa, 305.403.77"))
	assert.Equal(t, "305.403.77", ExtractArticleNumber("https://x.test/p/sofa-305.403.77/"))
	assert.Empty(t, ExtractArticleNumber("sofa-305-403-77"), "dash slugs are not identifiers")
	assert.Empty(t, ExtractArticleNumber("30.403.77"))
	assert.Empty(t, ExtractArticleNumber(""))
}

func ptr(v float64) *float64 { return &v }

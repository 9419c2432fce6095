package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkattan/catalog-crawler/internal/catalog"
	"github.com/mkattan/catalog-crawler/internal/crawl"
	"github.com/mkattan/catalog-crawler/internal/store"
)

type memStore struct {
	existing map[string]map[string]bool
	inserted []store.Product
	existErr error
	insErr   error
}

func (m *memStore) Exists(_ context.Context, field, value string) (bool, error) {
	if m.existErr != nil {
		return false, m.existErr
	}
	return m.existing[field][value], nil
}

func (m *memStore) Insert(_ context.Context, p store.Product) error {
	if m.insErr != nil {
		return m.insErr
	}
	m.inserted = append(m.inserted, p)
	return nil
}

func (m *memStore) Close() {}

type embedFunc func(ctx context.Context, img image.Image) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	return f(ctx, img)
}

func fixedEmbedder(vec []float32) embedFunc {
	return func(context.Context, image.Image) ([]float32, error) { return vec, nil }
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{G: 128, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// imageServer serves a valid PNG on every path and counts requests.
func imageServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	payload := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestOrchestrator(st store.Provider, embedder embedFunc) *Orchestrator {
	return New(
		st,
		embedder,
		&http.Client{Timeout: 5 * time.Second},
		crawl.NewRetryPolicy(1, time.Millisecond, time.Millisecond),
		Metadata{Category: "Living Room / Sofas", StoreLocation: "UAE", Currency: "AED"},
		"test-agent",
		zap.NewNop(),
	)
}

func record(title, productURL, imageURL, article string) catalog.Record {
	return catalog.Record{
		Title:         title,
		ProductURL:    productURL,
		ImageURL:      imageURL,
		ArticleNumber: article,
	}
}

func TestRunSavesNewRecord(t *testing.T) {
	srv, _ := imageServer(t)
	st := &memStore{}
	price := 1234.5
	rec := record("LANDSKRONA", "https://shop.test/p/x/", srv.URL+"/x.png", "305.403.77")
	rec.FinalPrice = &price

	o := newTestOrchestrator(st, fixedEmbedder([]float32{0.1, 0.2}))
	sum, err := o.Run(context.Background(), []catalog.Record{rec})
	require.NoError(t, err)

	assert.Equal(t, Summary{Saved: 1}, sum)
	require.Len(t, st.inserted, 1)

	got := st.inserted[0]
	assert.Equal(t, "LANDSKRONA", got.Title)
	require.NotNil(t, got.FinalPrice)
	assert.InDelta(t, 1234.5, *got.FinalPrice, 1e-9)
	assert.Equal(t, []float32{0.1, 0.2}, got.Embedding)
	assert.Equal(t, "Living Room / Sofas", got.Metadata["category"])
	assert.Equal(t, "UAE", got.Metadata["store_location"])
	assert.Equal(t, "AED", got.Metadata["currency"])
	assert.Equal(t, o.RunID(), got.Metadata["run_id"])
}

func TestRunSkipsRecordWithoutImageBeforeAnyNetwork(t *testing.T) {
	srv, hits := imageServer(t)
	_ = srv
	st := &memStore{
		// Even a known duplicate must not be reached: the image check comes first.
		existing: map[string]map[string]bool{
			store.FieldProductURL: {"https://shop.test/p/dup/": true},
		},
	}

	o := newTestOrchestrator(st, fixedEmbedder([]float32{1}))
	sum, err := o.Run(context.Background(), []catalog.Record{
		record("NO IMAGE", "https://shop.test/p/dup/", "", "305.403.77"),
	})
	require.NoError(t, err)

	assert.Equal(t, Summary{SkippedNoImage: 1}, sum)
	assert.Empty(t, st.inserted)
	assert.Zero(t, hits.Load())
}

func TestRunSkipsDuplicateWithoutDownloading(t *testing.T) {
	srv, hits := imageServer(t)
	st := &memStore{existing: map[string]map[string]bool{
		store.FieldArticleNumber: {"305.403.77": true},
	}}

	o := newTestOrchestrator(st, fixedEmbedder([]float32{1}))
	sum, err := o.Run(context.Background(), []catalog.Record{
		record("DUP", "https://shop.test/p/new-url/", srv.URL+"/x.png", "305.403.77"),
	})
	require.NoError(t, err)

	assert.Equal(t, Summary{SkippedDuplicate: 1}, sum)
	assert.Empty(t, st.inserted)
	assert.Zero(t, hits.Load())
}

func TestRunStoreLookupFailureStopsRun(t *testing.T) {
	srv, _ := imageServer(t)
	boom := errors.New("store unavailable")
	st := &memStore{existErr: boom}

	o := newTestOrchestrator(st, fixedEmbedder([]float32{1}))
	sum, err := o.Run(context.Background(), []catalog.Record{
		record("A", "https://shop.test/p/a/", srv.URL+"/a.png", ""),
		record("B", "https://shop.test/p/b/", srv.URL+"/b.png", ""),
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Summary{Failed: 1}, sum, "run stops at the first record")
}

func TestRunImageTransportFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	st := &memStore{}

	o := newTestOrchestrator(st, fixedEmbedder([]float32{1}))
	sum, err := o.Run(context.Background(), []catalog.Record{
		record("A", "https://shop.test/p/a/", srv.URL+"/a.png", ""),
	})

	var terr *crawl.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
	assert.Equal(t, Summary{Failed: 1}, sum)
	assert.Empty(t, st.inserted)
}

func TestRunUndecodableImageFailsRecordOnly(t *testing.T) {
	payload := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.png" {
			w.Write([]byte("this is not an image"))
			return
		}
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	st := &memStore{}

	o := newTestOrchestrator(st, fixedEmbedder([]float32{1}))
	sum, err := o.Run(context.Background(), []catalog.Record{
		record("BROKEN", "https://shop.test/p/broken/", srv.URL+"/broken.png", ""),
		record("FINE", "https://shop.test/p/fine/", srv.URL+"/fine.png", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, Summary{Saved: 1, Failed: 1}, sum)
	require.Len(t, st.inserted, 1)
	assert.Equal(t, "FINE", st.inserted[0].Title)
}

func TestRunEmbeddingFailureFailsRecordOnly(t *testing.T) {
	srv, _ := imageServer(t)
	st := &memStore{}

	calls := 0
	embedder := embedFunc(func(context.Context, image.Image) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("inference backend down")
		}
		return []float32{1}, nil
	})

	o := newTestOrchestrator(st, embedder)
	sum, err := o.Run(context.Background(), []catalog.Record{
		record("FAILS", "https://shop.test/p/a/", srv.URL+"/a.png", ""),
		record("SAVES", "https://shop.test/p/b/", srv.URL+"/b.png", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, Summary{Saved: 1, Failed: 1}, sum)
	require.Len(t, st.inserted, 1)
	assert.Equal(t, "SAVES", st.inserted[0].Title)
}

func TestRunPersistFailureStopsRun(t *testing.T) {
	srv, _ := imageServer(t)
	boom := errors.New("insert rejected")
	st := &memStore{insErr: boom}

	o := newTestOrchestrator(st, fixedEmbedder([]float32{1}))
	sum, err := o.Run(context.Background(), []catalog.Record{
		record("A", "https://shop.test/p/a/", srv.URL+"/a.png", ""),
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Summary{Failed: 1}, sum)
}

func TestRunCancelDuringImageDownload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	st := &memStore{}

	o := newTestOrchestrator(st, fixedEmbedder([]float32{1}))
	sum, err := o.Run(ctx, []catalog.Record{
		record("A", "https://shop.test/p/a/", srv.URL+"/a.png", ""),
		record("B", "https://shop.test/p/b/", srv.URL+"/b.png", ""),
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Summary{Failed: 1}, sum)
	assert.Empty(t, st.inserted, "an interrupted record must not be committed")
}

func TestRunCancelBetweenRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv, _ := imageServer(t)
	st := &memStore{}

	embedder := embedFunc(func(context.Context, image.Image) ([]float32, error) {
		cancel()
		return []float32{1}, nil
	})

	o := newTestOrchestrator(st, embedder)
	sum, err := o.Run(ctx, []catalog.Record{
		record("A", "https://shop.test/p/a/", srv.URL+"/a.png", ""),
		record("B", "https://shop.test/p/b/", srv.URL+"/b.png", ""),
	})

	require.ErrorIs(t, err, context.Canceled)
	// The cancel lands after embedding, before persist: nothing is committed.
	assert.Equal(t, Summary{Failed: 1}, sum)
	assert.Empty(t, st.inserted)
}

func TestSummaryTotal(t *testing.T) {
	sum := Summary{Saved: 3, SkippedDuplicate: 2, SkippedNoImage: 1, Failed: 1}
	assert.Equal(t, 7, sum.Total())
}

func TestDecodeRGBANormalizesColourModel(t *testing.T) {
	img, err := decodeRGBA(pngBytes(t))
	require.NoError(t, err)
	_, ok := img.(*image.RGBA)
	assert.True(t, ok)
}

func TestDecodeRGBARejectsGarbage(t *testing.T) {
	_, err := decodeRGBA([]byte("not an image at all"))
	require.Error(t, err)
}

package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	// Codecs for the formats product CDNs actually serve.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// decodeRGBA decodes product image bytes and normalizes the raster to RGBA,
// the fixed colour model the embedding service expects.
func decodeRGBA(data []byte) (image.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)
	return rgba, nil
}

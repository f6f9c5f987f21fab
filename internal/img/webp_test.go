//go:build !nowebp

package img

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func createTestWebP(t *testing.T, path string, w, h int) {
	t.Helper()
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			src.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := WebPCodec().Encode(&buf, src); err != nil {
		t.Fatalf("encode webp: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write webp: %v", err)
	}
}

func TestGenerateWebPProducesAllSizes(t *testing.T) {
	th, uploads, thumbs := newTestThumbnailer(t, DefaultRegistry(), true)
	createTestWebP(t, filepath.Join(uploads, "p.webp"), 1600, 1200)

	res := th.Generate("p.webp")

	if len(res.Thumbnails) != 3 {
		t.Fatalf("expected 3 thumbnails, got %v (failed: %+v)", res.Thumbnails, res.Failed())
	}
	want := map[string][2]int{"small": {300, 225}, "medium": {600, 450}, "large": {1200, 900}}
	for size, dims := range want {
		w, h, format := decodeConfig(t, filepath.Join(thumbs, res.Thumbnails[size]))
		if format != "webp" {
			t.Fatalf("%s: expected webp output, got %s", size, format)
		}
		if w != dims[0] || h != dims[1] {
			t.Fatalf("%s: got %dx%d, want %dx%d", size, w, h, dims[0], dims[1])
		}
	}
}

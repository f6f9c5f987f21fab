package img

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRegistryFormats(t *testing.T) {
	reg := DefaultRegistry()

	want := []string{"gif", "jpeg", "png", "webp"}
	got := reg.Formats()
	if len(got) != len(want) {
		t.Fatalf("unexpected formats: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("formats mismatch: got %v want %v", got, want)
		}
	}

	for _, tt := range []struct {
		format string
		mime   string
		alpha  bool
	}{
		{"jpeg", "image/jpeg", false},
		{"PNG", "image/png", true},
		{"gif", "image/gif", true},
		{"webp", "image/webp", false},
	} {
		c, ok := reg.Lookup(tt.format)
		if !ok {
			t.Fatalf("codec %s not registered", tt.format)
		}
		if c.MimeType != tt.mime || c.Alpha != tt.alpha {
			t.Fatalf("codec %s: got mime=%s alpha=%v", tt.format, c.MimeType, c.Alpha)
		}
	}
}

func TestNilRegistryIsEmpty(t *testing.T) {
	var reg *Registry
	if reg.Len() != 0 {
		t.Fatal("nil registry should be empty")
	}
	if _, ok := reg.Lookup("jpeg"); ok {
		t.Fatal("nil registry should not resolve codecs")
	}
}

func TestProbeReadsHeader(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "photo.webp")
	createTestImage(t, path, 64, 32)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	codec, cfg, err := DefaultRegistry().Probe(f)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if codec.Format != "png" {
		t.Fatalf("expected png from header, got %s", codec.Format)
	}
	if cfg.Width != 64 || cfg.Height != 32 {
		t.Fatalf("unexpected dimensions %dx%d", cfg.Width, cfg.Height)
	}
}

func TestProbeUnknownBytes(t *testing.T) {
	_, _, err := DefaultRegistry().Probe(bytes.NewReader([]byte("GIF89 but not really")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestGIFEncodeKeepsTransparency(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.Set(3, 3, color.NRGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := GIFCodec().Encode(&buf, src); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	out, err := gif.Decode(&buf)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if _, _, _, a := out.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("expected transparent pixel, got alpha %d", a)
	}
	if _, _, _, a := out.At(3, 3).RGBA(); a == 0 {
		t.Fatal("expected opaque pixel")
	}
}

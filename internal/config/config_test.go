package config

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NATS_URL", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("THUMBNAIL_SIZES", "")
	t.Setenv("THUMB_ALLOW_UPSCALE", "")
	t.Setenv("UPLOADS_DIR", "")
	t.Setenv("SUBJECT_PHOTO_UPLOADED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.NATSURL != "" {
		t.Fatalf("bus should be disabled by default, got %q", cfg.NATSURL)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("unexpected max upload bytes: %d", cfg.MaxUploadBytes)
	}
	if !cfg.AllowUpscale {
		t.Fatal("upscaling should be enabled by default")
	}
	if cfg.UploadsDir != "./public/uploads" {
		t.Fatalf("unexpected uploads dir: %s", cfg.UploadsDir)
	}
	if cfg.SubjectUploaded != "photos.uploaded" {
		t.Fatalf("unexpected subject: %s", cfg.SubjectUploaded)
	}
	if len(cfg.ThumbnailSizes) != 3 || cfg.ThumbnailSizes[2].Width != 1200 {
		t.Fatalf("unexpected default sizes: %+v", cfg.ThumbnailSizes)
	}
}

func TestLoadInvalidMaxBytes(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "ten")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid MAX_UPLOAD_BYTES")
	}
}

func TestLoadInvalidUpscale(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("THUMB_ALLOW_UPSCALE", "maybe")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid THUMB_ALLOW_UPSCALE")
	}
}

func TestLoadDisablesUpscale(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("THUMB_ALLOW_UPSCALE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AllowUpscale {
		t.Fatal("expected upscaling to be disabled")
	}
}

func TestParseThumbnailSizes(t *testing.T) {
	sizes, err := parseThumbnailSizes("small:150x150, large:2048x1024")
	if err != nil {
		t.Fatalf("parseThumbnailSizes returned error: %v", err)
	}
	if len(sizes) != 2 || sizes[0].Name != "small" || sizes[1].Width != 2048 || sizes[1].Height != 1024 {
		t.Fatalf("unexpected sizes: %+v", sizes)
	}

	for _, bad := range []string{
		"small",
		"small:100",
		"small:0x100",
		"small:100xabc",
		"huge:100x100",
		"small:100x100,small:200x200",
	} {
		if _, err := parseThumbnailSizes(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"text", "json", "tint"} {
		var buf bytes.Buffer
		logger := newLogger(&buf, format, "debug")
		logger.Debug("hello", "size", "small")
		if !strings.Contains(buf.String(), "hello") {
			t.Fatalf("%s logger wrote %q", format, buf.String())
		}
	}

	logger := newLogger(&bytes.Buffer{}, "text", "warn")
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
}

//go:build nowebp

package img

import (
	"bytes"
	"errors"
	"image"
	"testing"
)

func TestWebPEncodeUnavailable(t *testing.T) {
	err := WebPCodec().Encode(&bytes.Buffer{}, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, ErrCodecUnavailable) {
		t.Fatalf("expected ErrCodecUnavailable, got %v", err)
	}
}

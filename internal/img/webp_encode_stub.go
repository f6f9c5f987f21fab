//go:build nowebp

package img

import (
	"fmt"
	"image"
	"io"
)

func encodeWebP(io.Writer, image.Image) error {
	return fmt.Errorf("webp encode: %w (built with -tags nowebp)", ErrCodecUnavailable)
}

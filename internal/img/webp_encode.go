//go:build !nowebp

package img

import (
	"fmt"
	"image"
	"io"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

func encodeWebP(w io.Writer, img image.Image) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, encodeQuality)
	if err != nil {
		return fmt.Errorf("webp encoder options: %w", err)
	}
	return webp.Encode(w, img, options)
}

package img

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	xwebp "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat is returned when the header bytes of a file do not
	// match any registered codec.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCodecUnavailable is returned when a format is recognised but the
	// runtime lacks the encoder or decoder for it.
	ErrCodecUnavailable = errors.New("codec unavailable")
)

// JPEG and WebP thumbnails are written at this quality.
const encodeQuality = 85

// Codec pairs the decode and encode routines of one raster format.
// Format is the name reported by image.DecodeConfig for the format.
type Codec struct {
	Format   string
	MimeType string
	// Alpha formats get a transparent canvas so transparent source pixels
	// stay transparent after resampling.
	Alpha  bool
	Decode func(r io.Reader) (image.Image, error)
	Encode func(w io.Writer, img image.Image) error
}

// Registry maps a detected format name to its codec.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a registry holding the given codecs. An empty registry
// models a runtime without raster codec support.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// DefaultRegistry returns the codecs for JPEG, PNG, GIF and WebP.
func DefaultRegistry() *Registry {
	return NewRegistry(JPEGCodec(), PNGCodec(), GIFCodec(), WebPCodec())
}

// Register adds or replaces the codec for c.Format.
func (r *Registry) Register(c Codec) {
	r.codecs[strings.ToLower(c.Format)] = c
}

// Lookup returns the codec for a format name such as "jpeg".
func (r *Registry) Lookup(format string) (Codec, bool) {
	if r == nil {
		return Codec{}, false
	}
	c, ok := r.codecs[strings.ToLower(format)]
	return c, ok
}

// Len reports how many codecs are registered.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.codecs)
}

// Formats returns the registered format names in sorted order.
func (r *Registry) Formats() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.codecs))
	for f := range r.codecs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// MimeTypes returns the MIME types of all registered codecs in sorted order.
func (r *Registry) MimeTypes() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.codecs))
	for _, c := range r.codecs {
		out = append(out, c.MimeType)
	}
	sort.Strings(out)
	return out
}

// Probe reads the header of r and returns the detected format and its
// dimensions. The file extension is never consulted.
func (r *Registry) Probe(src io.Reader) (Codec, image.Config, error) {
	cfg, format, err := image.DecodeConfig(src)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Codec{}, image.Config{}, ErrUnsupportedFormat
		}
		return Codec{}, image.Config{}, fmt.Errorf("read header: %w", err)
	}
	c, ok := r.Lookup(format)
	if !ok {
		return Codec{}, cfg, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Codec{}, cfg, fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return c, cfg, nil
}

func JPEGCodec() Codec {
	return Codec{
		Format:   "jpeg",
		MimeType: "image/jpeg",
		Decode:   jpeg.Decode,
		Encode: func(w io.Writer, img image.Image) error {
			return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(encodeQuality))
		},
	}
}

func PNGCodec() Codec {
	return Codec{
		Format:   "png",
		MimeType: "image/png",
		Alpha:    true,
		Decode:   png.Decode,
		Encode: func(w io.Writer, img image.Image) error {
			return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
		},
	}
}

func GIFCodec() Codec {
	return Codec{
		Format:   "gif",
		MimeType: "image/gif",
		Alpha:    true,
		Decode:   gif.Decode,
		Encode:   encodeGIF,
	}
}

// WebPCodec decodes with golang.org/x/image/webp and encodes through libwebp.
// Builds tagged nowebp drop the cgo encoder and fail WebP sizes instead.
func WebPCodec() Codec {
	return Codec{
		Format:   "webp",
		MimeType: "image/webp",
		Decode:   xwebp.Decode,
		Encode:   encodeWebP,
	}
}

// encodeGIF quantises onto Plan9 with index 0 reserved for full transparency,
// which the gif encoder writes as the transparent index.
func encodeGIF(w io.Writer, img image.Image) error {
	b := img.Bounds()
	pal := make(color.Palette, 0, 256)
	pal = append(pal, color.Transparent)
	pal = append(pal, palette.Plan9[:255]...)
	dst := image.NewPaletted(b, pal)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return gif.Encode(w, dst, nil)
}

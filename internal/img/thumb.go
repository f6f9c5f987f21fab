// internal/img/thumb.go
package img

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

type ThumbnailSpec struct {
	Name   string
	Width  int
	Height int
}

// DefaultSizes is the fixed, ordered thumbnail set.
var DefaultSizes = []ThumbnailSpec{
	{Name: "small", Width: 300, Height: 300},
	{Name: "medium", Width: 600, Height: 600},
	{Name: "large", Width: 1200, Height: 1200},
}

// SizeStatus reports the outcome of deriving one size.
type SizeStatus string

const (
	SizeSucceeded SizeStatus = "succeeded"
	SizeFailed    SizeStatus = "failed"
)

// SizeResult is the structured outcome for one thumbnail size.
type SizeResult struct {
	Name         string
	Filename     string
	Path         string
	Format       string
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	Status       SizeStatus
	Err          error
}

// Result holds what a derivation produced. Thumbnails only ever lists sizes
// that were written successfully.
type Result struct {
	Thumbnails map[string]string
	Sizes      []SizeResult
}

// Succeeded reports how many sizes were written.
func (r Result) Succeeded() int { return len(r.Thumbnails) }

// Failed returns the size results that did not succeed.
func (r Result) Failed() []SizeResult {
	var out []SizeResult
	for _, s := range r.Sizes {
		if s.Status == SizeFailed {
			out = append(out, s)
		}
	}
	return out
}

func emptyResult() Result {
	return Result{Thumbnails: map[string]string{}}
}

// Options configures a Thumbnailer.
type Options struct {
	UploadsDir string
	ThumbDir   string
	Sizes      []ThumbnailSpec
	// AllowUpscale keeps the historical behaviour of scaling images that are
	// smaller than the target box up to fill it.
	AllowUpscale bool
	Codecs       *Registry
	Logger       *slog.Logger
}

// Thumbnailer derives the fixed thumbnail set for stored originals.
type Thumbnailer struct {
	uploadsDir   string
	thumbDir     string
	sizes        []ThumbnailSpec
	allowUpscale bool
	codecs       *Registry
	logger       *slog.Logger
}

func NewThumbnailer(opts Options) *Thumbnailer {
	sizes := opts.Sizes
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Thumbnailer{
		uploadsDir:   opts.UploadsDir,
		thumbDir:     opts.ThumbDir,
		sizes:        append([]ThumbnailSpec(nil), sizes...),
		allowUpscale: opts.AllowUpscale,
		codecs:       opts.Codecs,
		logger:       logger,
	}
}

// Sizes returns a copy of the configured size set.
func (t *Thumbnailer) Sizes() []ThumbnailSpec {
	return append([]ThumbnailSpec(nil), t.sizes...)
}

// OriginalPath returns where the original named filename is stored.
func (t *Thumbnailer) OriginalPath(filename string) string {
	return filepath.Join(t.uploadsDir, filepath.Base(filename))
}

// ThumbnailPath returns where a derived file named thumbName is stored.
func (t *Thumbnailer) ThumbnailPath(thumbName string) string {
	return filepath.Join(t.thumbDir, filepath.Base(thumbName))
}

// OriginalExists reports whether the original is present in the uploads dir.
func (t *Thumbnailer) OriginalExists(filename string) bool {
	info, err := os.Stat(t.OriginalPath(filename))
	return err == nil && info.Mode().IsRegular()
}

// ThumbnailName returns the derived filename for a size label.
func ThumbnailName(size, original string) string {
	return size + "_" + filepath.Base(original)
}

// Generate derives every configured size for the stored original. Each size
// is attempted independently; failures are logged and recorded in the result.
func (t *Thumbnailer) Generate(filename string) Result {
	logger := t.logger.With("filename", filename)
	if t.codecs.Len() == 0 {
		logger.Warn("raster codec support unavailable, skipping thumbnail generation")
		return emptyResult()
	}

	res := Result{
		Thumbnails: make(map[string]string, len(t.sizes)),
		Sizes:      make([]SizeResult, 0, len(t.sizes)),
	}
	for _, spec := range t.sizes {
		sr := t.derive(filename, spec)
		if sr.Status == SizeSucceeded {
			res.Thumbnails[spec.Name] = sr.Filename
			logger.Debug("thumbnail generated", "size", spec.Name, "width", sr.Width, "height", sr.Height)
		} else {
			logger.Error("thumbnail generation failed", "size", spec.Name, "err", sr.Err)
		}
		res.Sizes = append(res.Sizes, sr)
	}
	return res
}

// Regenerate behaves like Generate but requires the original to exist; when
// it is missing an empty result is returned.
func (t *Thumbnailer) Regenerate(filename string) Result {
	if t.codecs.Len() == 0 {
		t.logger.Warn("raster codec support unavailable, cannot regenerate thumbnails", "filename", filename)
		return emptyResult()
	}
	if !t.OriginalExists(filename) {
		t.logger.Error("original file not found", "path", t.OriginalPath(filename))
		return emptyResult()
	}
	return t.Generate(filename)
}

func (t *Thumbnailer) derive(filename string, spec ThumbnailSpec) SizeResult {
	thumbName := ThumbnailName(spec.Name, filename)
	sr := SizeResult{
		Name:     spec.Name,
		Filename: thumbName,
		Path:     t.ThumbnailPath(thumbName),
		Status:   SizeFailed,
	}

	codec, src, err := t.decode(t.OriginalPath(filename))
	if err != nil {
		sr.Err = err
		return sr
	}
	sr.Format = codec.Format
	b := src.Bounds()
	sr.SourceWidth, sr.SourceHeight = b.Dx(), b.Dy()

	w, h := FitDimensions(sr.SourceWidth, sr.SourceHeight, spec.Width, spec.Height, t.allowUpscale)
	dst := resample(src, w, h, codec.Alpha)

	if err := writeImage(sr.Path, dst, codec); err != nil {
		sr.Err = err
		return sr
	}

	sr.Width, sr.Height = w, h
	sr.Status = SizeSucceeded
	return sr
}

func (t *Thumbnailer) decode(path string) (Codec, image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Codec{}, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	codec, _, err := t.codecs.Probe(f)
	if err != nil {
		return Codec{}, nil, err
	}
	if codec.Decode == nil {
		return Codec{}, nil, fmt.Errorf("decode %s: %w", codec.Format, ErrCodecUnavailable)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return Codec{}, nil, fmt.Errorf("rewind: %w", err)
	}
	src, err := codec.Decode(f)
	if err != nil {
		return Codec{}, nil, fmt.Errorf("decode %s: %w", codec.Format, err)
	}
	return codec, src, nil
}

// FitDimensions scales w×h by min(boxW/w, boxH/h), rounding to the nearest
// pixel. When allowUpscale is false the factor is capped at 1.
func FitDimensions(w, h, boxW, boxH int, allowUpscale bool) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(boxW)/float64(w), float64(boxH)/float64(h))
	if !allowUpscale && scale > 1 {
		scale = 1
	}
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(nw, 1), max(nh, 1)
}

func resample(src image.Image, w, h int, alpha bool) *image.NRGBA {
	resized := imaging.Resize(src, w, h, imaging.Linear)
	if alpha {
		canvas := imaging.New(w, h, color.NRGBA{})
		return imaging.Paste(canvas, resized, image.Point{})
	}
	canvas := imaging.New(w, h, color.White)
	return imaging.Overlay(canvas, resized, image.Point{}, 1.0)
}

// writeImage encodes into a temp file beside dstPath and renames it into
// place so a failed encode never leaves a truncated thumbnail behind.
func writeImage(dstPath string, img image.Image, codec Codec) error {
	if codec.Encode == nil {
		return fmt.Errorf("encode %s: %w", codec.Format, ErrCodecUnavailable)
	}
	dstDir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dstDir, ".thumb-*")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	tmpName := tmp.Name()
	if err := codec.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode %s: %w", codec.Format, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, dstPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// IsUnsupported reports whether err came from an unrecognised or
// unavailable format rather than corrupt data or I/O.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrCodecUnavailable)
}

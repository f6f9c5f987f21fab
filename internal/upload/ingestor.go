// internal/upload/ingestor.go
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/kjiezl/qwepic-dev/internal/img"
	"github.com/kjiezl/qwepic-dev/pkg/schema"
)

// sniffLen is how many leading bytes are read to guess the extension.
const sniffLen = 3072

// File is an uploaded file as handed over by the request layer.
type File struct {
	Reader   io.Reader
	Name     string // client-supplied filename
	Size     int64  // declared size
	MimeType string // declared content type
}

// StoredImage is the value produced by an upload: the stored filename and
// the thumbnails that were derived for it.
type StoredImage struct {
	Filename   string            `json:"filename"`
	Thumbnails map[string]string `json:"thumbnails"`
	Results    []img.SizeResult  `json:"-"`
}

// Deriver produces thumbnails for a stored original.
type Deriver interface {
	Generate(filename string) img.Result
}

// Publisher delivers events; *bus.Client satisfies it.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

type Options struct {
	UploadsDir      string
	ThumbDir        string
	Deriver         Deriver
	Publisher       Publisher
	UploadedSubject string
	DeletedSubject  string
	Logger          *slog.Logger
}

// Ingestor stores uploaded originals and removes them again.
type Ingestor struct {
	uploadsDir      string
	thumbDir        string
	deriver         Deriver
	publisher       Publisher
	uploadedSubject string
	deletedSubject  string
	logger          *slog.Logger
	now             func() time.Time
	suffix          func() string
}

func NewIngestor(opts Options) *Ingestor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		uploadsDir:      opts.UploadsDir,
		thumbDir:        opts.ThumbDir,
		deriver:         opts.Deriver,
		publisher:       opts.Publisher,
		uploadedSubject: opts.UploadedSubject,
		deletedSubject:  opts.DeletedSubject,
		logger:          logger,
		now:             time.Now,
		suffix:          func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Upload stores f under a fresh collision-resistant name and derives its
// thumbnails. Only failures to store the original are returned; thumbnails
// are best-effort. title is carried into the published event only.
func (in *Ingestor) Upload(ctx context.Context, f File, title string) (StoredImage, error) {
	start := in.now()

	head, err := readHead(f.Reader)
	if err != nil {
		return StoredImage{}, fmt.Errorf("read upload: %w", err)
	}

	filename := in.storedName(f, head)
	if err := in.store(filename, io.MultiReader(bytes.NewReader(head), f.Reader)); err != nil {
		return StoredImage{}, err
	}

	logger := in.logger.With("filename", filename, "client_name", f.Name)
	logger.Info("original stored", "size", f.Size)

	stored := StoredImage{Filename: filename, Thumbnails: map[string]string{}}
	if in.deriver != nil {
		res := in.deriver.Generate(filename)
		if res.Thumbnails != nil {
			stored.Thumbnails = res.Thumbnails
		}
		stored.Results = res.Sizes
	}
	if len(stored.Thumbnails) == 0 {
		logger.Warn("upload stored without thumbnails")
	}

	in.publish(ctx, in.uploadedSubject, schema.PhotoUploaded{
		Filename:         filename,
		Title:            title,
		Thumbnails:       stored.Thumbnails,
		Results:          ThumbnailResults(stored.Results),
		ProcessingTimeMs: in.now().Sub(start).Milliseconds(),
		HappenedAt:       in.now().Unix(),
	})
	return stored, nil
}

// Delete removes the original and every thumbnail named in thumbnails.
// Missing files are skipped, so calling it twice is harmless. Only regular
// files directly inside the two directories are ever removed.
func (in *Ingestor) Delete(ctx context.Context, filename string, thumbnails map[string]string) {
	var removed []string
	if in.remove(in.uploadsDir, filename) {
		removed = append(removed, filename)
	}
	for _, name := range thumbnails {
		if in.remove(in.thumbDir, name) {
			removed = append(removed, name)
		}
	}
	in.logger.Info("photo files deleted", "filename", filename, "removed", len(removed))

	in.publish(ctx, in.deletedSubject, schema.PhotoDeleted{
		Filename:   filename,
		Removed:    removed,
		HappenedAt: in.now().Unix(),
	})
}

func (in *Ingestor) remove(dir, name string) bool {
	base := filepath.Base(name)
	if name == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return false
	}
	path := filepath.Join(dir, base)
	info, err := os.Lstat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			in.logger.Warn("failed to stat file", "path", path, "err", err)
		}
		return false
	}
	if !info.Mode().IsRegular() {
		in.logger.Warn("refusing to remove non-regular file", "path", path, "mode", info.Mode().String())
		return false
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			in.logger.Warn("failed to remove file", "path", path, "err", err)
		}
		return false
	}
	return true
}

func (in *Ingestor) storedName(f File, head []byte) string {
	base := filepath.Base(f.Name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return Slugify(stem) + "-" + in.suffix() + guessExtension(head, f)
}

// store writes r into a temp file inside the uploads dir and renames it onto
// filename.
func (in *Ingestor) store(filename string, r io.Reader) error {
	if err := os.MkdirAll(in.uploadsDir, 0o755); err != nil {
		return fmt.Errorf("mkdir uploads: %w", err)
	}
	tmp, err := os.CreateTemp(in.uploadsDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("copy upload to disk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod upload: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(in.uploadsDir, filename)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move upload: %w", err)
	}
	return nil
}

func (in *Ingestor) publish(ctx context.Context, subject string, v any) {
	if in.publisher == nil || subject == "" {
		return
	}
	if err := ctx.Err(); err != nil {
		in.logger.Warn("skipping event publish", "subject", subject, "err", err)
		return
	}
	if err := in.publisher.PublishJSON(subject, v); err != nil {
		in.logger.Error("publish event failed", "subject", subject, "err", err)
	}
}

func readHead(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil reader")
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return head[:n], nil
}

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// guessExtension prefers the content bytes, then the declared MIME type, then
// the client extension.
func guessExtension(head []byte, f File) string {
	if len(head) > 0 {
		mt := mimetype.Detect(head)
		if ext, ok := mimeExtensions[mt.String()]; ok {
			return ext
		}
	}
	if ext, ok := mimeExtensions[strings.ToLower(f.MimeType)]; ok {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(f.Name)); ext != "" && Slugify(ext[1:]) == ext[1:] {
		return ext
	}
	return ".bin"
}

// ThumbnailResults converts size results into their event form.
func ThumbnailResults(sizes []img.SizeResult) []schema.ThumbnailResult {
	if len(sizes) == 0 {
		return nil
	}
	out := make([]schema.ThumbnailResult, 0, len(sizes))
	for _, s := range sizes {
		r := schema.ThumbnailResult{
			Size:   s.Name,
			Status: schema.ThumbnailFailed,
		}
		if s.Status == img.SizeSucceeded {
			r.Status = schema.ThumbnailProcessed
			r.Filename = s.Filename
			r.Width = s.Width
			r.Height = s.Height
			r.DerivationParams = &schema.DerivationParams{
				SourceWidth:  s.SourceWidth,
				SourceHeight: s.SourceHeight,
				TargetWidth:  s.Width,
				TargetHeight: s.Height,
				Algorithm:    "bilinear",
				Format:       s.Format,
			}
		} else if s.Err != nil {
			r.Error = s.Err.Error()
		}
		out = append(out, r)
	}
	return out
}

// internal/store/photos.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrNotFound is returned when no photo has the requested id.
	ErrNotFound = errors.New("photo not found")
	// ErrInvalidStatus is returned for a moderation status outside Statuses.
	ErrInvalidStatus = errors.New("invalid photo status")
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Statuses lists the moderation states a photo can be in.
var Statuses = []string{StatusApproved, StatusPending, StatusRejected}

// Photo is one row of the photos table. ThumbnailsRaw holds the stored JSON
// exactly as read so callers can tell an empty mapping from a malformed one.
type Photo struct {
	ID             int64             `json:"id"`
	PhotographerID int64             `json:"photographer_id"`
	AlbumID        *int64            `json:"album_id,omitempty"`
	Src            string            `json:"src"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Tags           []string          `json:"tags"`
	Thumbnails     map[string]string `json:"thumbnails"`
	ThumbnailsRaw  []byte            `json:"-"`
	IsPublic       bool              `json:"is_public"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// PhotoRepository persists photo metadata in PostgreSQL.
type PhotoRepository struct {
	pool   *pgxpool.Pool
	db     *sql.DB // migrations only
	logger *slog.Logger
}

// Open connects to dsn and applies the embedded migrations.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*PhotoRepository, error) {
	const op = "store.Open"
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db, logger); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &PhotoRepository{pool: pool, db: db, logger: logger}, nil
}

func (r *PhotoRepository) Close() {
	r.db.Close()
	r.pool.Close()
}

const photoColumns = `id, photographer_id, album_id, src, title, description, tags, thumbnails, is_public, status, created_at`

// Create inserts p and fills in its id, status and creation time.
func (r *PhotoRepository) Create(ctx context.Context, p *Photo) error {
	const op = "store.Create"

	tags, err := encodeTags(p.Tags)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	thumbs, err := encodeThumbnails(p.Thumbnails)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	status := p.Status
	if status == "" {
		status = StatusApproved
	}

	const query = `
		INSERT INTO photos (photographer_id, album_id, src, title, description, tags, thumbnails, is_public, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, status, created_at`

	err = r.pool.QueryRow(ctx, query,
		p.PhotographerID, p.AlbumID, p.Src, p.Title, p.Description, tags, thumbs, p.IsPublic, status,
	).Scan(&p.ID, &p.Status, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.ThumbnailsRaw = thumbs
	return nil
}

func (r *PhotoRepository) Get(ctx context.Context, id int64) (Photo, error) {
	const op = "store.Get"

	row := r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id)
	p, err := r.scanPhoto(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Photo{}, ErrNotFound
	}
	if err != nil {
		return Photo{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListPublic returns the approved public feed, newest first.
func (r *PhotoRepository) ListPublic(ctx context.Context, limit, offset int) ([]Photo, error) {
	const op = "store.ListPublic"

	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+` FROM photos
		WHERE is_public AND status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, StatusApproved, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.collectPhotos(rows, op)
}

// ListAfter returns up to limit photos with id greater than afterID in id
// order.
func (r *PhotoRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]Photo, error) {
	const op = "store.ListAfter"

	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+` FROM photos
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.collectPhotos(rows, op)
}

// ListByPhotographer returns a photographer's photos, newest first. Private
// photos are included only when publicOnly is false.
func (r *PhotoRepository) ListByPhotographer(ctx context.Context, photographerID int64, publicOnly bool, limit, offset int) ([]Photo, error) {
	const op = "store.ListByPhotographer"

	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+` FROM photos
		WHERE photographer_id = $1 AND (is_public OR NOT $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`, photographerID, publicOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.collectPhotos(rows, op)
}

// ListByAlbum returns the photos of an album, newest first. With
// approvedOnly set, photos still in moderation are left out.
func (r *PhotoRepository) ListByAlbum(ctx context.Context, albumID int64, approvedOnly bool, limit, offset int) ([]Photo, error) {
	const op = "store.ListByAlbum"

	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+` FROM photos
		WHERE album_id = $1 AND (status = $2 OR NOT $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5`, albumID, StatusApproved, approvedOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.collectPhotos(rows, op)
}

// UpdateStatus sets the moderation status of a photo.
func (r *PhotoRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	const op = "store.UpdateStatus"

	if !ValidStatus(status) {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidStatus, status)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE photos SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ValidStatus reports whether status is one of Statuses.
func ValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// UpdateDetails changes the editable text fields of a photo.
func (r *PhotoRepository) UpdateDetails(ctx context.Context, id int64, title, description string, tags []string) error {
	const op = "store.UpdateDetails"

	encoded, err := encodeTags(tags)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE photos SET title = $2, description = $3, tags = $4 WHERE id = $1`,
		id, title, description, encoded)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PhotoRepository) UpdateThumbnails(ctx context.Context, id int64, thumbnails map[string]string) error {
	const op = "store.UpdateThumbnails"

	encoded, err := encodeThumbnails(thumbnails)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE photos SET thumbnails = $2 WHERE id = $1`, id, encoded)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	const op = "store.Delete"

	tag, err := r.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PhotoRepository) collectPhotos(rows pgx.Rows, op string) ([]Photo, error) {
	defer rows.Close()

	var out []Photo
	for rows.Next() {
		p, err := r.scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (r *PhotoRepository) scanPhoto(row pgx.Row) (Photo, error) {
	var (
		p      Photo
		tags   []byte
		thumbs []byte
	)
	err := row.Scan(&p.ID, &p.PhotographerID, &p.AlbumID, &p.Src, &p.Title, &p.Description,
		&tags, &thumbs, &p.IsPublic, &p.Status, &p.CreatedAt)
	if err != nil {
		return Photo{}, err
	}
	p.Tags, err = decodeTags(tags)
	if err != nil {
		r.logger.Warn("unreadable photo tags, treating as none", "photo_id", p.ID, "err", err)
	}
	p.ThumbnailsRaw = thumbs
	p.Thumbnails = decodeThumbnails(thumbs)
	return p, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

// decodeTags always returns a usable slice; a decode error is reported so
// the caller can log it, and the photo is still served without tags.
func decodeTags(raw []byte) ([]string, error) {
	tags := []string{}
	if len(raw) == 0 {
		return tags, nil
	}
	var decoded []string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return tags, fmt.Errorf("decode tags: %w", err)
	}
	if decoded != nil {
		tags = decoded
	}
	return tags, nil
}

func encodeThumbnails(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

// decodeThumbnails is lenient: a malformed mapping reads as empty and is
// left for the repair driver to fix.
func decodeThumbnails(raw []byte) map[string]string {
	m := map[string]string{}
	if len(raw) > 0 {
		var decoded map[string]string
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded != nil {
			m = decoded
		}
	}
	return m
}

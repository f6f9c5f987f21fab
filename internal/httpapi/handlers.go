// internal/httpapi/handlers.go
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/kjiezl/qwepic-dev/internal/process"
	"github.com/kjiezl/qwepic-dev/internal/store"
	"github.com/kjiezl/qwepic-dev/internal/upload"
	"github.com/kjiezl/qwepic-dev/pkg/schema"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"Please select a photo to upload"}})
		return
	}

	file := upload.File{
		Name:     fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
	}
	errs := upload.Validate(file, s.maxUploadBytes)
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		errs = append(errs, "Title is required")
	}
	if len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return
	}

	src, err := fh.Open()
	if err != nil {
		s.logger.Error("open multipart file", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}
	defer src.Close()
	file.Reader = src

	stored, err := s.ingestor.Upload(c.Request.Context(), file, title)
	if err != nil {
		s.logger.Error("store upload", "client_name", fh.Filename, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}

	photo := &store.Photo{
		Src:         stored.Filename,
		Title:       title,
		Description: strings.TrimSpace(c.PostForm("description")),
		Tags:        parseTags(c.PostForm("tags")),
		Thumbnails:  stored.Thumbnails,
		IsPublic:    c.DefaultPostForm("is_public", "true") != "false",
	}
	if v := c.PostForm("photographer_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			photo.PhotographerID = id
		}
	}
	if v := c.PostForm("album_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			photo.AlbumID = &id
		}
	}
	if err := s.photos.Create(c.Request.Context(), photo); err != nil {
		s.logger.Error("create photo record", "filename", stored.Filename, "err", err)
		s.ingestor.Delete(c.Request.Context(), stored.Filename, stored.Thumbnails)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}

	c.JSON(http.StatusCreated, photo)
}

func (s *Server) handleList(c *gin.Context) {
	limit, offset := page(c)
	photos, err := s.photos.ListPublic(c.Request.Context(), limit, offset)
	s.writeList(c, photos, err)
}

// handleListByPhotographer shows a photographer's public photos.
func (s *Server) handleListByPhotographer(c *gin.Context) {
	id, ok := pathID(c, "Invalid photographer ID")
	if !ok {
		return
	}
	limit, offset := page(c)
	photos, err := s.photos.ListByPhotographer(c.Request.Context(), id, true, limit, offset)
	s.writeList(c, photos, err)
}

// handleListByAlbum shows the approved photos of an album.
func (s *Server) handleListByAlbum(c *gin.Context) {
	id, ok := pathID(c, "Invalid album ID")
	if !ok {
		return
	}
	limit, offset := page(c)
	photos, err := s.photos.ListByAlbum(c.Request.Context(), id, true, limit, offset)
	s.writeList(c, photos, err)
}

func (s *Server) writeList(c *gin.Context, photos []store.Photo, err error) {
	if err != nil {
		s.logger.Error("list photos", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list photos"})
		return
	}
	if photos == nil {
		photos = []store.Photo{}
	}
	c.JSON(http.StatusOK, photos)
}

func (s *Server) handleGet(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}
	p, err := s.photos.Get(c.Request.Context(), id)
	if err != nil || !p.IsPublic || p.Status != store.StatusApproved {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("get photo", "photo_id", id, "err", err)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

func (s *Server) handleUpdate(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	err := s.photos.UpdateDetails(c.Request.Context(), id, strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), parseTags(req.Tags))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}
	if err != nil {
		s.logger.Error("update photo", "photo_id", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update photo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "title": strings.TrimSpace(req.Title)})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	err := validation.Validate(req.Status,
		validation.Required,
		validation.In(store.StatusApproved, store.StatusPending, store.StatusRejected),
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	err = s.photos.UpdateStatus(c.Request.Context(), id, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}
	if err != nil {
		s.logger.Error("update photo status", "photo_id", id, "status", req.Status, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}
	s.logger.Info("photo status changed", "photo_id", id, "status", req.Status)
	c.JSON(http.StatusOK, gin.H{"success": true, "status": req.Status})
}

func (s *Server) handleDelete(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}
	if err := s.deletePhoto(c, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
			return
		}
		s.logger.Error("delete photo", "photo_id", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete photo"})
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleBulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo IDs are required"})
		return
	}

	deleted := 0
	errs := []string{}
	for _, id := range req.IDs {
		err := s.deletePhoto(c, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			errs = append(errs, "Photo with ID "+strconv.FormatInt(id, 10)+" not found")
		case err != nil:
			s.logger.Error("bulk delete photo", "photo_id", id, "err", err)
			errs = append(errs, "Failed to delete photo ID "+strconv.FormatInt(id, 10))
		default:
			deleted++
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "errors": errs})
}

// deletePhoto removes the files first, then the record.
func (s *Server) deletePhoto(c *gin.Context, id int64) error {
	p, err := s.photos.Get(c.Request.Context(), id)
	if err != nil {
		return err
	}
	s.ingestor.Delete(c.Request.Context(), p.Src, p.Thumbnails)
	return s.photos.Delete(c.Request.Context(), id)
}

func (s *Server) handleRegenerate(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}

	if c.Query("async") == "true" && s.publisher != nil && s.regenerateSubject != "" {
		err := s.publisher.PublishJSON(s.regenerateSubject, schema.RegenerateRequested{PhotoID: id, HappenedAt: time.Now().Unix()})
		if err != nil {
			s.logger.Error("queue regenerate request", "photo_id", id, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue thumbnail regeneration"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "queued": true})
		return
	}

	res, err := s.repairer.RepairPhoto(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
	case errors.Is(err, process.ErrOriginalMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo has no source file"})
	case err != nil:
		s.logger.Error("regenerate thumbnails", "photo_id", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to regenerate thumbnails"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "thumbnails": res.Thumbnails})
	}
}

func photoID(c *gin.Context) (int64, bool) {
	return pathID(c, "Invalid photo ID")
}

func pathID(c *gin.Context, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return 0, false
	}
	return id, true
}

// page reads limit and offset, clamping limit to maxPageSize.
func page(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	return min(limit, maxPageSize), max(queryInt(c, "offset", 0), 0)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// parseTags splits a comma separated list, dropping blanks.
func parseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

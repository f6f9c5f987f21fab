// internal/httpapi/server.go
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kjiezl/qwepic-dev/internal/img"
	"github.com/kjiezl/qwepic-dev/internal/store"
	"github.com/kjiezl/qwepic-dev/internal/upload"
)

// PhotoRepository is the metadata store used by the handlers.
type PhotoRepository interface {
	Create(ctx context.Context, p *store.Photo) error
	Get(ctx context.Context, id int64) (store.Photo, error)
	ListPublic(ctx context.Context, limit, offset int) ([]store.Photo, error)
	ListByPhotographer(ctx context.Context, photographerID int64, publicOnly bool, limit, offset int) ([]store.Photo, error)
	ListByAlbum(ctx context.Context, albumID int64, approvedOnly bool, limit, offset int) ([]store.Photo, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdateDetails(ctx context.Context, id int64, title, description string, tags []string) error
	Delete(ctx context.Context, id int64) error
}

// Ingestor stores and removes photo files.
type Ingestor interface {
	Upload(ctx context.Context, f upload.File, title string) (upload.StoredImage, error)
	Delete(ctx context.Context, filename string, thumbnails map[string]string)
}

// Repairer regenerates the thumbnails of one photo.
type Repairer interface {
	RepairPhoto(ctx context.Context, id int64) (img.Result, error)
}

// Publisher queues regenerate requests for the worker.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

type Options struct {
	Photos            PhotoRepository
	Ingestor          Ingestor
	Repairer          Repairer
	Publisher         Publisher
	RegenerateSubject string
	MaxUploadBytes    int64
	UploadsDir        string
	ThumbDir          string
	Logger            *slog.Logger
}

type Server struct {
	router            *gin.Engine
	photos            PhotoRepository
	ingestor          Ingestor
	repairer          Repairer
	publisher         Publisher
	regenerateSubject string
	maxUploadBytes    int64
	logger            *slog.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	// Multipart bodies beyond this stay on disk rather than in memory.
	r.MaxMultipartMemory = 8 << 20
	if opts.UploadsDir != "" {
		r.Static("/uploads", opts.UploadsDir)
	}
	if opts.ThumbDir != "" {
		r.Static("/thumbnails", opts.ThumbDir)
	}

	s := &Server{
		router:            r,
		photos:            opts.Photos,
		ingestor:          opts.Ingestor,
		repairer:          opts.Repairer,
		publisher:         opts.Publisher,
		regenerateSubject: opts.RegenerateSubject,
		maxUploadBytes:    opts.MaxUploadBytes,
		logger:            logger,
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	photos := r.Group("/photos")
	photos.GET("", s.handleList)
	photos.POST("", s.handleUpload)
	photos.POST("/bulk-delete", s.handleBulkDelete)
	photos.GET("/:id", s.handleGet)
	photos.PATCH("/:id", s.handleUpdate)
	photos.DELETE("/:id", s.handleDelete)
	photos.PATCH("/:id/status", s.handleUpdateStatus)
	photos.POST("/:id/regenerate-thumbnails", s.handleRegenerate)

	r.GET("/photographers/:id/photos", s.handleListByPhotographer)
	r.GET("/albums/:id/photos", s.handleListByAlbum)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

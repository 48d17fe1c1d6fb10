package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docrag/internal/models"
	"github.com/nikhilbhutani/docrag/internal/storage"
)

// Creator persists a new document row.
type Creator interface {
	Create(ctx context.Context, doc *models.Document) error
}

// Service stores uploaded files and registers them for ingestion. It is
// also the orchestrator's file source.
type Service struct {
	registry Creator
	storage  storage.Storage
	bucket   string
}

func NewService(registry Creator, store storage.Storage, bucket string) *Service {
	return &Service{
		registry: registry,
		storage:  store,
		bucket:   bucket,
	}
}

type UploadRequest struct {
	Filename   string
	MimeType   string
	Size       int64
	Data       io.Reader
	Department string
	Category   string
	Subject    string
	UploadedBy *uuid.UUID
	// Ready approves the document for indexing immediately.
	Ready bool
}

func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("filename required: %w", models.ErrInvalidInput)
	}

	id := uuid.New()
	safe := SafeFilename(id, req.Filename)
	path := time.Now().UTC().Format("2006/01/02") + "/" + safe

	mimeType := req.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(req.Filename))); byExt != "" {
			mimeType = byExt
		}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if err := s.storage.Upload(ctx, s.bucket, path, req.Data, mimeType); err != nil {
		return nil, fmt.Errorf("upload to storage: %w: %w", models.ErrStorage, err)
	}

	doc := &models.Document{
		ID:               id,
		Filename:         filepath.Base(req.Filename),
		SafeFilename:     safe,
		StoragePath:      path,
		FileSize:         req.Size,
		MimeType:         mimeType,
		Department:       req.Department,
		Category:         req.Category,
		Subject:          req.Subject,
		UploadedBy:       req.UploadedBy,
		ReadyForIndexing: req.Ready,
	}
	if err := s.registry.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, s.bucket, path); delErr != nil {
			slog.Warn("failed to remove orphaned upload", "path", path, "error", delErr)
		}
		return nil, err
	}

	slog.Info("document uploaded",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"size", doc.FileSize,
		"ready", doc.ReadyForIndexing,
	)
	return doc, nil
}

// Download fetches the raw bytes of doc from blob storage.
func (s *Service) Download(ctx context.Context, doc *models.Document) ([]byte, error) {
	return storage.ReadAll(ctx, s.storage, s.bucket, doc.StoragePath)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

const maxSafeNameLen = 100

// SafeFilename derives a storage-safe, collision-resistant name from an
// uploaded filename: the document id followed by the sanitized base name.
func SafeFilename(id uuid.UUID, filename string) string {
	return id.String() + "_" + sanitize(filename)
}

func sanitize(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	stem = unsafeChars.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "._-")
	ext = unsafeChars.ReplaceAllString(ext, "")
	if ext == "." {
		ext = ""
	}

	if len(stem) > maxSafeNameLen {
		stem = stem[:maxSafeNameLen]
	}
	if stem == "" {
		stem = "file"
	}
	return stem + ext
}

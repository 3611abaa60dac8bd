package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"meter-backend/internal/imaging"
	"meter-backend/internal/media"
	"meter-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestService turns submitted base64 pictures into normalized files on disk
// and mirrors them to the remote media host.
type IngestService struct {
	uploadDir      string
	size           imaging.Size
	crop           bool
	maxPixels      int
	uploader       media.Uploader
	uploadRequired bool
	logger         *zap.Logger
}

// IngestOptions configures an IngestService.
type IngestOptions struct {
	UploadDir string
	Size      imaging.Size
	Crop      bool
	// MaxPixels caps decoded and resized images; 0 means imaging.DefaultMaxPixels.
	MaxPixels int
	// UploadRequired makes a remote upload failure abort the ingestion.
	UploadRequired bool
}

func NewIngestService(opts IngestOptions, uploader media.Uploader, logger *zap.Logger) *IngestService {
	if uploader == nil {
		uploader = media.Noop{}
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = imaging.DefaultMaxPixels
	}
	return &IngestService{
		uploadDir:      opts.UploadDir,
		size:           opts.Size,
		crop:           opts.Crop,
		maxPixels:      opts.MaxPixels,
		uploader:       uploader,
		uploadRequired: opts.UploadRequired,
		logger:         logger,
	}
}

// Ingest decodes payload, normalizes it and stores it as <uuid>.<ext> under
// the upload folder.
func (s *IngestService) Ingest(ctx context.Context, payload, ext string) (models.StoredImage, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	filename := uuid.NewString() + "." + ext
	path := filepath.Join(s.uploadDir, filename)

	raw, err := imaging.DecodeBase64(payload)
	if err != nil {
		return models.StoredImage{}, err
	}
	img, _, err := imaging.Decode(raw, s.maxPixels)
	if err != nil {
		return models.StoredImage{}, err
	}

	normalized, err := imaging.Normalize(img, s.size, s.crop, s.maxPixels)
	if err != nil {
		return models.StoredImage{}, err
	}
	if err := imaging.Save(normalized, path); err != nil {
		return models.StoredImage{}, err
	}

	stored := models.StoredImage{Filename: filename, Path: path}

	res, err := s.uploader.Upload(ctx, path)
	if err != nil {
		if s.uploadRequired {
			s.Discard(stored)
			return models.StoredImage{}, err
		}
		s.logger.Warn("remote upload failed, keeping local copy",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return stored, nil
	}
	stored.RemoteURL = res.URL

	s.logger.Debug("image ingested",
		zap.String("filename", filename),
		zap.Int("width", normalized.Bounds().Dx()),
		zap.Int("height", normalized.Bounds().Dy()),
		zap.String("remote_url", res.URL),
	)
	return stored, nil
}

// Discard removes a stored file. Missing files are ignored.
func (s *IngestService) Discard(img models.StoredImage) {
	if img.Path == "" {
		return
	}
	if err := os.Remove(img.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove image", zap.String("path", img.Path), zap.Error(err))
	}
}

// PublicURL is where the static file handler serves filename.
func PublicURL(baseURL, filename string) string {
	return fmt.Sprintf("%s/uploads/%s", strings.TrimRight(baseURL, "/"), filename)
}

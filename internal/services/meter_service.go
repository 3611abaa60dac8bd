package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"meter-backend/internal/config"
	"meter-backend/internal/events"
	"meter-backend/internal/models"

	"go.uber.org/zap"
)

// Column sizes of the meters table.
const (
	maxNameLen        = 300
	maxMeterNumberLen = 100
	maxCoordinateLen  = 200
)

// ValidationError reports the first missing or invalid field of a submission.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// MeterStore persists meters.
type MeterStore interface {
	CreateMeter(ctx context.Context, meter *models.Meter) error
	ListMeters(ctx context.Context) ([]models.Meter, error)
}

// ImageIngester stores one submitted picture.
type ImageIngester interface {
	Ingest(ctx context.Context, payload, ext string) (models.StoredImage, error)
	Discard(img models.StoredImage)
}

type MeterService struct {
	store     MeterStore
	ingester  ImageIngester
	publisher events.Publisher
	images    config.ImageConfig
	baseURL   string
	logger    *zap.Logger
}

// MeterServiceOptions configures a MeterService.
type MeterServiceOptions struct {
	// Images supplies the allowed extensions.
	Images config.ImageConfig
	// BaseURL prefixes the /uploads links of listed images; empty keeps them relative.
	BaseURL string
}

func NewMeterService(store MeterStore, ingester ImageIngester, publisher events.Publisher, opts MeterServiceOptions, logger *zap.Logger) *MeterService {
	return &MeterService{
		store:     store,
		ingester:  ingester,
		publisher: publisher,
		images:    opts.Images,
		baseURL:   opts.BaseURL,
		logger:    logger,
	}
}

// ListMeters returns all meters, newest first, with their images.
func (s *MeterService) ListMeters(ctx context.Context) ([]models.Meter, error) {
	meters, err := s.store.ListMeters(ctx)
	if err != nil {
		return nil, err
	}
	for i := range meters {
		s.fillURLs(&meters[i])
	}
	return meters, nil
}

// Validate checks a submission field by field; the first failure wins.
func (s *MeterService) Validate(req models.CreateMeterRequest) error {
	if req.IsEmpty() {
		return invalid("No Data Was Sent")
	}
	fields := []struct {
		label string
		value string
		max   int
	}{
		{"Name", req.Name, maxNameLen},
		{"Supervisor", req.Supervisor, maxNameLen},
		{"Meter Number", strings.TrimSpace(req.MeterNumber.String()), maxMeterNumberLen},
		{"Longitude", req.Longitude.String(), maxCoordinateLen},
		{"Latitude", req.Latitude.String(), maxCoordinateLen},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.label + " is Required")
		}
		if utf8.RuneCountInString(f.value) > f.max {
			return invalid(fmt.Sprintf("%s is Too Long (max %d characters)", f.label, f.max))
		}
	}
	if len(req.Images) == 0 {
		return invalid("No Images Found")
	}
	for _, img := range req.Images {
		if strings.TrimSpace(img.Img) == "" {
			return invalid("No Images Found")
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.Type), "."))
	if ext == "" {
		return invalid("Image Type is Required")
	}
	if !s.images.IsAllowedExtension(ext) {
		return invalid("Image Type Not Allowed")
	}
	return nil
}

// CreateMeter validates req, stores every image and commits the meter with
// its images in one transaction. Nothing is left on disk if any step fails.
func (s *MeterService) CreateMeter(ctx context.Context, req models.CreateMeterRequest) (*models.Meter, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.Type), "."))

	meter := &models.Meter{
		MeterNumber: strings.TrimSpace(req.MeterNumber.String()),
		Name:        req.Name,
		Supervisor:  req.Supervisor,
		Longitude:   req.Longitude.String(),
		Latitude:    req.Latitude.String(),
	}

	stored := make([]models.StoredImage, 0, len(req.Images))
	discardAll := func() {
		for _, img := range stored {
			s.ingester.Discard(img)
		}
	}

	for _, payload := range req.Images {
		img, err := s.ingester.Ingest(ctx, payload.Img, ext)
		if err != nil {
			discardAll()
			return nil, err
		}
		stored = append(stored, img)
		meter.Images = append(meter.Images, models.Image{
			Filename:  img.Filename,
			RemoteURL: img.RemoteURL,
		})
	}

	if err := s.store.CreateMeter(ctx, meter); err != nil {
		discardAll()
		return nil, err
	}
	s.fillURLs(meter)

	s.logger.Info("meter created",
		zap.Int64("meter_id", meter.ID),
		zap.String("meter_number", meter.MeterNumber),
		zap.Int("images", len(meter.Images)),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishMeterCreated(ctx, events.NewMeterCreated(*meter)); err != nil {
			s.logger.Warn("failed to publish meter event", zap.Int64("meter_id", meter.ID), zap.Error(err))
		}
	}

	return meter, nil
}

func (s *MeterService) fillURLs(m *models.Meter) {
	for i := range m.Images {
		m.Images[i].URL = PublicURL(s.baseURL, m.Images[i].Filename)
	}
}

package services

import (
	"context"

	"meter-backend/internal/events"
	"meter-backend/internal/media"
	"meter-backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, filePath string) (media.Result, error) {
	args := m.Called(ctx, filePath)
	return args.Get(0).(media.Result), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateMeter(ctx context.Context, meter *models.Meter) error {
	return m.Called(ctx, meter).Error(0)
}

func (m *mockStore) ListMeters(ctx context.Context) ([]models.Meter, error) {
	args := m.Called(ctx)
	meters, _ := args.Get(0).([]models.Meter)
	return meters, args.Error(1)
}

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) Ingest(ctx context.Context, payload, ext string) (models.StoredImage, error) {
	args := m.Called(ctx, payload, ext)
	return args.Get(0).(models.StoredImage), args.Error(1)
}

func (m *mockIngester) Discard(img models.StoredImage) {
	m.Called(img)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMeterCreated(ctx context.Context, event events.MeterCreated) error {
	return m.Called(ctx, event).Error(0)
}

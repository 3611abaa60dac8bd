package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"meter-backend/internal/config"
	"meter-backend/internal/events"
	"meter-backend/internal/imaging"
	"meter-backend/internal/models"
	"meter-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validRequest() models.CreateMeterRequest {
	return models.CreateMeterRequest{
		Name:        "M1",
		Supervisor:  "Bob",
		MeterNumber: "123",
		Longitude:   "1.0",
		Latitude:    "2.0",
		Images:      []models.ImagePayload{{Img: "aaa"}, {Img: "bbb"}},
		Type:        "PNG",
	}
}

func newMeterService(store MeterStore, ingester ImageIngester, publisher events.Publisher) *MeterService {
	return NewMeterService(store, ingester, publisher, MeterServiceOptions{
		Images: config.ImageConfig{AllowedExtensions: []string{"png", "jpeg", "jpg", "gif"}},
	}, zap.NewNop())
}

func TestValidate_FirstMissingFieldWins(t *testing.T) {
	s := newMeterService(nil, nil, nil)

	tests := []struct {
		name   string
		mutate func(r *models.CreateMeterRequest)
		want   string
	}{
		{"empty", func(r *models.CreateMeterRequest) { *r = models.CreateMeterRequest{} }, "No Data Was Sent"},
		{"name", func(r *models.CreateMeterRequest) { r.Name = "" }, "Name is Required"},
		{"name before supervisor", func(r *models.CreateMeterRequest) { r.Name = ""; r.Supervisor = "" }, "Name is Required"},
		{"supervisor", func(r *models.CreateMeterRequest) { r.Supervisor = "" }, "Supervisor is Required"},
		{"meter number", func(r *models.CreateMeterRequest) { r.MeterNumber = "  " }, "Meter Number is Required"},
		{"longitude", func(r *models.CreateMeterRequest) { r.Longitude = "" }, "Longitude is Required"},
		{"latitude", func(r *models.CreateMeterRequest) { r.Latitude = "" }, "Latitude is Required"},
		{"name too long", func(r *models.CreateMeterRequest) { r.Name = strings.Repeat("n", 301) }, "Name is Too Long (max 300 characters)"},
		{"supervisor too long", func(r *models.CreateMeterRequest) { r.Supervisor = strings.Repeat("s", 301) }, "Supervisor is Too Long (max 300 characters)"},
		{"meter number too long", func(r *models.CreateMeterRequest) { r.MeterNumber = models.Text(strings.Repeat("9", 101)) }, "Meter Number is Too Long (max 100 characters)"},
		{"longitude too long", func(r *models.CreateMeterRequest) { r.Longitude = models.Text(strings.Repeat("1", 201)) }, "Longitude is Too Long (max 200 characters)"},
		{"latitude too long", func(r *models.CreateMeterRequest) { r.Latitude = models.Text(strings.Repeat("2", 201)) }, "Latitude is Too Long (max 200 characters)"},
		{"images", func(r *models.CreateMeterRequest) { r.Images = nil }, "No Images Found"},
		{"blank image", func(r *models.CreateMeterRequest) { r.Images[1].Img = "" }, "No Images Found"},
		{"type", func(r *models.CreateMeterRequest) { r.Type = "" }, "Image Type is Required"},
		{"type not allowed", func(r *models.CreateMeterRequest) { r.Type = "bmp" }, "Image Type Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := s.Validate(req)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.want, vErr.Message)
		})
	}

	assert.NoError(t, s.Validate(validRequest()))
}

func TestCreateMeter_Success(t *testing.T) {
	store := new(mockStore)
	ingester := new(mockIngester)
	publisher := new(mockPublisher)
	now := time.Now()

	ingester.On("Ingest", mock.Anything, "aaa", "png").
		Return(models.StoredImage{Filename: "one.png", Path: "/up/one.png", RemoteURL: "http://media/one.png"}, nil)
	ingester.On("Ingest", mock.Anything, "bbb", "png").
		Return(models.StoredImage{Filename: "two.png", Path: "/up/two.png"}, nil)
	store.On("CreateMeter", mock.Anything, mock.AnythingOfType("*models.Meter")).
		Run(func(args mock.Arguments) {
			m := args.Get(1).(*models.Meter)
			m.ID = 9
			m.Created = now
			for i := range m.Images {
				m.Images[i].ID = int64(i + 1)
				m.Images[i].MeterID = m.ID
			}
		}).
		Return(nil)
	publisher.On("PublishMeterCreated", mock.Anything, mock.MatchedBy(func(e events.MeterCreated) bool {
		return e.Event == events.MeterCreatedKey && e.Meter.ID == 9
	})).Return(nil)

	meter, err := newMeterService(store, ingester, publisher).CreateMeter(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, int64(9), meter.ID)
	assert.Equal(t, "123", meter.MeterNumber)
	require.Len(t, meter.Images, 2)
	assert.Equal(t, "one.png", meter.Images[0].Filename)
	assert.Equal(t, "http://media/one.png", meter.Images[0].RemoteURL)
	assert.Equal(t, "/uploads/one.png", meter.Images[0].URL)
	assert.Equal(t, int64(9), meter.Images[1].MeterID)
	ingester.AssertNotCalled(t, "Discard", mock.Anything)
	publisher.AssertExpectations(t)
}

func TestCreateMeter_ValidationSkipsSideEffects(t *testing.T) {
	store := new(mockStore)
	ingester := new(mockIngester)
	req := validRequest()
	req.Supervisor = ""

	_, err := newMeterService(store, ingester, nil).CreateMeter(context.Background(), req)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Supervisor is Required", vErr.Message)
	ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateMeter", mock.Anything, mock.Anything)
}

func TestCreateMeter_IngestFailureDiscardsEarlierImages(t *testing.T) {
	store := new(mockStore)
	ingester := new(mockIngester)
	first := models.StoredImage{Filename: "one.png", Path: "/up/one.png"}

	ingester.On("Ingest", mock.Anything, "aaa", "png").Return(first, nil)
	ingester.On("Ingest", mock.Anything, "bbb", "png").Return(models.StoredImage{}, imaging.ErrDecode)
	ingester.On("Discard", first).Return()

	_, err := newMeterService(store, ingester, nil).CreateMeter(context.Background(), validRequest())

	assert.ErrorIs(t, err, imaging.ErrDecode)
	ingester.AssertCalled(t, "Discard", first)
	store.AssertNotCalled(t, "CreateMeter", mock.Anything, mock.Anything)
}

func TestCreateMeter_StoreFailureDiscardsAll(t *testing.T) {
	store := new(mockStore)
	ingester := new(mockIngester)
	one := models.StoredImage{Filename: "one.png", Path: "/up/one.png"}
	two := models.StoredImage{Filename: "two.png", Path: "/up/two.png"}

	ingester.On("Ingest", mock.Anything, "aaa", "png").Return(one, nil)
	ingester.On("Ingest", mock.Anything, "bbb", "png").Return(two, nil)
	ingester.On("Discard", mock.Anything).Return()
	store.On("CreateMeter", mock.Anything, mock.Anything).Return(repository.ErrMeterNumberExists)

	_, err := newMeterService(store, ingester, nil).CreateMeter(context.Background(), validRequest())

	assert.ErrorIs(t, err, repository.ErrMeterNumberExists)
	ingester.AssertCalled(t, "Discard", one)
	ingester.AssertCalled(t, "Discard", two)
}

func TestCreateMeter_PublishFailureIsNotFatal(t *testing.T) {
	store := new(mockStore)
	ingester := new(mockIngester)
	publisher := new(mockPublisher)

	ingester.On("Ingest", mock.Anything, mock.Anything, "png").Return(models.StoredImage{Filename: "x.png"}, nil)
	store.On("CreateMeter", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishMeterCreated", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	meter, err := newMeterService(store, ingester, publisher).CreateMeter(context.Background(), validRequest())

	require.NoError(t, err)
	assert.NotNil(t, meter)
}

func TestListMeters_FillsURLs(t *testing.T) {
	store := new(mockStore)
	store.On("ListMeters", mock.Anything).Return([]models.Meter{
		{ID: 2, Images: []models.Image{{Filename: "b.png"}}},
		{ID: 1, Images: []models.Image{}},
	}, nil)
	s := NewMeterService(store, nil, nil, MeterServiceOptions{BaseURL: "http://host"}, zap.NewNop())

	meters, err := s.ListMeters(context.Background())

	require.NoError(t, err)
	require.Len(t, meters, 2)
	assert.Equal(t, "http://host/uploads/b.png", meters[0].Images[0].URL)
}

func TestListMeters_Error(t *testing.T) {
	store := new(mockStore)
	store.On("ListMeters", mock.Anything).Return(nil, errors.New("db down"))

	_, err := newMeterService(store, nil, nil).ListMeters(context.Background())

	assert.Error(t, err)
}

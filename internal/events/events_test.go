package events

import (
	"context"
	"errors"
	"testing"

	"meter-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMeterCreated(ctx context.Context, event MeterCreated) error {
	return m.Called(ctx, event).Error(0)
}

func TestNewMeterCreated(t *testing.T) {
	e := NewMeterCreated(models.Meter{MeterNumber: "123"})

	assert.Equal(t, "meter.created", e.Event)
	assert.Equal(t, "123", e.Meter.MeterNumber)
}

func TestFanout(t *testing.T) {
	event := NewMeterCreated(models.Meter{ID: 1})
	ok := new(mockPublisher)
	ok.On("PublishMeterCreated", mock.Anything, event).Return(nil)
	failing := new(mockPublisher)
	failing.On("PublishMeterCreated", mock.Anything, event).Return(errors.New("broker down"))

	err := Fanout{failing, nil, ok}.PublishMeterCreated(context.Background(), event)

	assert.EqualError(t, err, "broker down")
	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, Fanout{}.PublishMeterCreated(context.Background(), MeterCreated{}))
}

// Package events fans meter lifecycle notifications out to subscribers.
package events

import (
	"context"
	"errors"

	"meter-backend/internal/models"
)

const MeterCreatedKey = "meter.created"

// MeterCreated is emitted after a meter and its images are committed.
type MeterCreated struct {
	Event string       `json:"event"`
	Meter models.Meter `json:"meter"`
}

// NewMeterCreated wraps m in a meter.created event.
func NewMeterCreated(m models.Meter) MeterCreated {
	return MeterCreated{Event: MeterCreatedKey, Meter: m}
}

// Publisher delivers events to one destination.
type Publisher interface {
	PublishMeterCreated(ctx context.Context, event MeterCreated) error
}

// Fanout publishes to every destination and joins their errors.
type Fanout []Publisher

func (f Fanout) PublishMeterCreated(ctx context.Context, event MeterCreated) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishMeterCreated(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

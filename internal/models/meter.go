package models

import "time"

// Meter is one physical meter installation.
type Meter struct {
	ID          int64     `json:"id"`
	MeterNumber string    `json:"meter_number"`
	Name        string    `json:"name"`
	Supervisor  string    `json:"supervisor"`
	Longitude   string    `json:"longitude"`
	Latitude    string    `json:"latitude"`
	Created     time.Time `json:"created"`
	Images      []Image   `json:"meter_images"`
}

// CreateMeterRequest is the body of POST /api/meter.
// Type is the file extension applied to every entry of Images. Meter number
// and coordinates may be sent as JSON numbers.
type CreateMeterRequest struct {
	Name        string         `json:"name"`
	Supervisor  string         `json:"supervisor"`
	MeterNumber Text           `json:"meter_number"`
	Longitude   Text           `json:"longitude"`
	Latitude    Text           `json:"latitude"`
	Images      []ImagePayload `json:"images"`
	Type        string         `json:"type"`
}

// IsEmpty reports whether nothing at all was submitted.
func (r CreateMeterRequest) IsEmpty() bool {
	return r.Name == "" && r.Supervisor == "" && r.MeterNumber == "" &&
		r.Longitude == "" && r.Latitude == "" && len(r.Images) == 0 && r.Type == ""
}

// Response is the envelope every /api endpoint answers with.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

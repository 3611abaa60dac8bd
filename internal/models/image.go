package models

import "time"

// Image is a photograph owned by a Meter.
type Image struct {
	ID        int64     `json:"id"`
	MeterID   int64     `json:"meter_id"`
	Filename  string    `json:"image"`
	URL       string    `json:"url"`
	RemoteURL string    `json:"remote_url"`
	Created   time.Time `json:"created"`
}

// ImagePayload is one base64 encoded picture in a submission.
type ImagePayload struct {
	Img string `json:"img"`
}

// StoredImage describes a file the ingestion pipeline has written to disk.
type StoredImage struct {
	Filename  string
	Path      string
	RemoteURL string
}

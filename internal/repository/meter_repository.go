package repository

import (
	"context"
	"errors"
	"fmt"

	"meter-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrMeterNumberExists = errors.New("meter number already exists")

const uniqueViolation = "23505"

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// MeterRepository persists meters and their images.
type MeterRepository struct {
	db DB
}

// NewMeterRepository creates a new repository
func NewMeterRepository(db DB) *MeterRepository {
	return &MeterRepository{db: db}
}

// CreateMeter inserts meter and its images in a single transaction. IDs,
// foreign keys and creation times are written back into meter.
func (r *MeterRepository) CreateMeter(ctx context.Context, meter *models.Meter) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO meters (meter_number, name, supervisor, longitude, latitude)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created
	`
	err = tx.QueryRow(ctx, query,
		meter.MeterNumber,
		meter.Name,
		meter.Supervisor,
		meter.Longitude,
		meter.Latitude,
	).Scan(&meter.ID, &meter.Created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrMeterNumberExists
		}
		return fmt.Errorf("failed to insert meter: %w", err)
	}

	imageQuery := `
		INSERT INTO meter_images (meter_id, image, remote_url)
		VALUES ($1, $2, $3)
		RETURNING id, created
	`
	for i := range meter.Images {
		img := &meter.Images[i]
		img.MeterID = meter.ID
		if err := tx.QueryRow(ctx, imageQuery, img.MeterID, img.Filename, img.RemoteURL).Scan(&img.ID, &img.Created); err != nil {
			return fmt.Errorf("failed to insert image %s: %w", img.Filename, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit meter: %w", err)
	}
	return nil
}

// ListMeters returns every meter, newest first, with its images attached in id order.
func (r *MeterRepository) ListMeters(ctx context.Context) ([]models.Meter, error) {
	query := `
		SELECT id, meter_number, name, supervisor, longitude, latitude, created
		FROM meters
		ORDER BY created DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer rows.Close()

	meters := []models.Meter{}
	index := make(map[int64]int)
	var ids []int64
	for rows.Next() {
		var m models.Meter
		if err := rows.Scan(&m.ID, &m.MeterNumber, &m.Name, &m.Supervisor, &m.Longitude, &m.Latitude, &m.Created); err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		m.Images = []models.Image{}
		index[m.ID] = len(meters)
		ids = append(ids, m.ID)
		meters = append(meters, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read meters: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return meters, nil
	}

	imageQuery := `
		SELECT id, meter_id, image, remote_url, created
		FROM meter_images
		WHERE meter_id = ANY($1)
		ORDER BY id
	`
	imgRows, err := r.db.Query(ctx, imageQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var img models.Image
		if err := imgRows.Scan(&img.ID, &img.MeterID, &img.Filename, &img.RemoteURL, &img.Created); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		if i, ok := index[img.MeterID]; ok {
			meters[i].Images = append(meters[i].Images, img)
		}
	}
	if err := imgRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read images: %w", err)
	}

	return meters, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ride-queue-auth/internal/model"
)

// RideRepo reads the local ride catalog.
type RideRepo struct{ db *sql.DB }

func NewRideRepo(db *sql.DB) *RideRepo { return &RideRepo{db: db} }

const rideColumns = `id, name, riding_time, is_active, capacity_total, capacity_premium, capacity_general,
	short_description, COALESCE(long_description, ''), photo, operating_time, created_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanRide(s rowScanner) (model.Ride, error) {
	var rd model.Ride
	err := s.Scan(&rd.ID, &rd.Name, &rd.RidingTime, &rd.IsActive, &rd.CapacityTotal, &rd.CapacityPremium,
		&rd.CapacityGeneral, &rd.ShortDescription, &rd.LongDescription, &rd.Photo, &rd.OperatingTime, &rd.CreatedAt)
	return rd, err
}

// ListActive returns the rides currently open, ordered by id.
func (r *RideRepo) ListActive(ctx context.Context) ([]model.Ride, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT "+rideColumns+" FROM rides WHERE is_active=1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

// GetByID returns one ride regardless of its active flag.
func (r *RideRepo) GetByID(ctx context.Context, id uint64) (model.Ride, error) {
	rd, err := scanRide(conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+rideColumns+" FROM rides WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return rd, ErrNotFound
	}
	return rd, err
}

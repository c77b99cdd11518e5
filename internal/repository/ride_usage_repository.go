package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/model"
)

// RideUsageRepo persists ride reservations. State changes are guarded on the
// current status so two concurrent writers cannot both win.
type RideUsageRepo struct{ db *sql.DB }

func NewRideUsageRepo(db *sql.DB) *RideUsageRepo { return &RideUsageRepo{db: db} }

const usageColumns = "id, user_id, ride_id, ticket_order_id, status, arrived_at, completed_at, created_at"

func scanUsage(s rowScanner) (model.RideUsage, error) {
	var (
		u                  model.RideUsage
		arrived, completed sql.NullTime
	)
	err := s.Scan(&u.ID, &u.UserID, &u.RideID, &u.TicketOrderID, &u.Status, &arrived, &completed, &u.CreatedAt)
	if arrived.Valid {
		at := arrived.Time
		u.ArrivedAt = &at
	}
	if completed.Valid {
		at := completed.Time
		u.CompletedAt = &at
	}
	return u, err
}

// Insert stores u and fills in its id. ErrDuplicate means a WAITED or
// COMPLETED row already exists for the same ticket order and ride.
func (r *RideUsageRepo) Insert(ctx context.Context, u *model.RideUsage) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO ride_usage (user_id, ride_id, ticket_order_id, status, created_at) VALUES (?,?,?,?,?)",
		u.UserID, u.RideID, u.TicketOrderID, u.Status, u.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// ExistsBlocking reports whether a WAITED or COMPLETED row exists for the pair.
func (r *RideUsageRepo) ExistsBlocking(ctx context.Context, ticketOrderID, rideID uint64) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ride_usage
		 WHERE ticket_order_id=? AND ride_id=? AND status IN ('WAITED','COMPLETED')`,
		ticketOrderID, rideID).Scan(&n)
	return n > 0, err
}

// FindWaiting returns the user's most recent WAITED row for the ride.
func (r *RideUsageRepo) FindWaiting(ctx context.Context, userID, rideID uint64) (model.RideUsage, error) {
	u, err := scanUsage(conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+usageColumns+` FROM ride_usage
		 WHERE user_id=? AND ride_id=? AND status='WAITED'
		 ORDER BY id DESC LIMIT 1`, userID, rideID))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// Transition moves row id from `from` to `to`. completedAt is written when
// non-nil. ErrStaleState means the row is gone or no longer in `from`.
func (r *RideUsageRepo) Transition(ctx context.Context, id uint64, from, to model.UsageStatus, completedAt *time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE ride_usage SET status=?, completed_at=COALESCE(?, completed_at)
		 WHERE id=? AND status=?`, to, completedAt, id, from)
	return expectOne(res, err)
}

// MarkArrived stamps arrived_at on a WAITED row.
func (r *RideUsageRepo) MarkArrived(ctx context.Context, id uint64, at time.Time) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE ride_usage SET arrived_at=? WHERE id=? AND status='WAITED'", at, id)
	return expectOne(res, err)
}

// DeleteWaiting removes a row that is still WAITED.
func (r *RideUsageRepo) DeleteWaiting(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"DELETE FROM ride_usage WHERE id=? AND status='WAITED'", id)
	return expectOne(res, err)
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleState
	}
	return nil
}

// ListByUser returns every reservation of the user, newest first.
func (r *RideUsageRepo) ListByUser(ctx context.Context, userID uint64) ([]model.RideUsage, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT "+usageColumns+" FROM ride_usage WHERE user_id=? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RideUsage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

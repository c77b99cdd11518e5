package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/ride-queue-auth/internal/model"
)

// Search returns one page of rides whose name contains q.Name, ordered by
// name, and the total number of matches.
func (r *RideRepo) Search(ctx context.Context, q model.RideSearch) ([]model.Ride, int64, error) {
	where := []string{}
	args := []any{}

	if !q.IncludeInactive {
		where = append(where, "is_active = 1")
	}
	if q.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+escapeLike(strings.ToLower(q.Name))+"%")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	db := conn(ctx, r.db)
	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rides WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize
	rows, err := db.QueryContext(ctx,
		"SELECT "+rideColumns+" FROM rides WHERE "+cond+" ORDER BY name ASC, id ASC LIMIT ? OFFSET ?",
		append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Ride, 0, limit)
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// escapeLike makes % and _ in user input match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/model"
)

// TicketRepo reads ticket products, inventory slots and purchased orders.
type TicketRepo struct{ db *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const orderColumns = `o.id, o.user_id, o.ticket_management_id, o.payment_date, o.active_status,
	tm.available_at, t.ticket_type`

const orderJoins = `FROM ticket_orders o
	LEFT JOIN ticket_management tm ON tm.id = o.ticket_management_id
	LEFT JOIN tickets t ON t.id = tm.ticket_id`

// ListOrdersByStatus returns every order of userID in the given status,
// with the slot day and ticket type filled in when those rows exist.
func (r *TicketRepo) ListOrdersByStatus(ctx context.Context, userID uint64, status model.OrderStatus) ([]model.TicketOrder, error) {
	return r.queryOrders(ctx,
		"SELECT "+orderColumns+" "+orderJoins+" WHERE o.user_id=? AND o.active_status=? ORDER BY o.id",
		userID, status)
}

// ListOrdersFrom returns the user's orders whose slot day is at or after from.
func (r *TicketRepo) ListOrdersFrom(ctx context.Context, userID uint64, from time.Time) ([]model.TicketOrder, error) {
	return r.queryOrders(ctx,
		"SELECT "+orderColumns+" "+orderJoins+" WHERE o.user_id=? AND tm.available_at >= ? ORDER BY tm.available_at, o.id",
		userID, from)
}

func (r *TicketRepo) queryOrders(ctx context.Context, q string, args ...any) ([]model.TicketOrder, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TicketOrder
	for rows.Next() {
		var (
			o     model.TicketOrder
			avail sql.NullTime
			tt    sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.TicketManagementID, &o.PaymentDate, &o.ActiveStatus, &avail, &tt); err != nil {
			return nil, err
		}
		if avail.Valid {
			at := avail.Time
			o.AvailableAt = &at
		}
		if tt.Valid {
			o.TicketType = model.TicketType(tt.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// TicketTypeOf follows slot -> ticket and returns the ticket's category.
// ErrNotFound means the slot or its ticket row is missing.
func (r *TicketRepo) TicketTypeOf(ctx context.Context, ticketManagementID uint64) (model.TicketType, error) {
	var tt string
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT t.ticket_type FROM ticket_management tm
		 JOIN tickets t ON t.id = tm.ticket_id
		 WHERE tm.id=? LIMIT 1`, ticketManagementID).Scan(&tt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return model.TicketType(tt), nil
}

// ListProducts returns all tickets with their slots available from `from` on.
func (r *TicketRepo) ListProducts(ctx context.Context, from time.Time) ([]model.TicketProduct, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT t.id, t.ticket_type, t.ticket_count, t.price, tm.id, tm.available_at, tm.stock
		 FROM tickets t
		 LEFT JOIN ticket_management tm ON tm.ticket_id = t.id AND tm.available_at >= ?
		 ORDER BY t.id, tm.available_at`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TicketProduct
	idx := map[uint64]int{}
	for rows.Next() {
		var (
			t      model.Ticket
			slotID sql.NullInt64
			avail  sql.NullTime
			stock  sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.TicketType, &t.TicketCount, &t.Price, &slotID, &avail, &stock); err != nil {
			return nil, err
		}
		i, ok := idx[t.ID]
		if !ok {
			out = append(out, model.TicketProduct{Ticket: t})
			i = len(out) - 1
			idx[t.ID] = i
		}
		if slotID.Valid {
			out[i].Slots = append(out[i].Slots, model.TicketSlot{
				ID:          uint64(slotID.Int64),
				TicketID:    t.ID,
				AvailableAt: avail.Time,
				Stock:       int(stock.Int64),
			})
		}
	}
	return out, rows.Err()
}

// FindSlot returns the first slot of category tt whose day lies in [from, to).
func (r *TicketRepo) FindSlot(ctx context.Context, tt model.TicketType, from, to time.Time) (model.TicketSlot, error) {
	var s model.TicketSlot
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT tm.id, tm.ticket_id, tm.available_at, tm.stock
		 FROM ticket_management tm
		 JOIN tickets t ON t.id = tm.ticket_id
		 WHERE t.ticket_type=? AND tm.available_at >= ? AND tm.available_at < ?
		 ORDER BY t.id, tm.id LIMIT 1`, tt, from, to).Scan(&s.ID, &s.TicketID, &s.AvailableAt, &s.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// TakeStock decrements the slot's stock. ErrStaleState means it is sold out.
func (r *TicketRepo) TakeStock(ctx context.Context, slotID uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE ticket_management SET stock=stock-1 WHERE id=? AND stock > 0", slotID)
	return expectOne(res, err)
}

// CreateOrder inserts o and fills in its id.
func (r *TicketRepo) CreateOrder(ctx context.Context, o *model.TicketOrder) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO ticket_orders (user_id, ticket_management_id, payment_date, active_status) VALUES (?,?,?,?)",
		o.UserID, o.TicketManagementID, o.PaymentDate, o.ActiveStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// GetOrderForUpdate loads one order and locks its row for the rest of the
// transaction.
func (r *TicketRepo) GetOrderForUpdate(ctx context.Context, orderID uint64) (model.TicketOrder, error) {
	orders, err := r.queryOrders(ctx,
		"SELECT "+orderColumns+" "+orderJoins+" WHERE o.id=? FOR UPDATE OF o", orderID)
	if err != nil {
		return model.TicketOrder{}, err
	}
	if len(orders) == 0 {
		return model.TicketOrder{}, ErrNotFound
	}
	return orders[0], nil
}

// SetOrderStatus overwrites the order's active flag.
func (r *TicketRepo) SetOrderStatus(ctx context.Context, orderID uint64, status model.OrderStatus) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE ticket_orders SET active_status=? WHERE id=?", status, orderID)
	return err
}

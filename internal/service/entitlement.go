package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/apperror"
	"github.com/iliyamo/ride-queue-auth/internal/model"
	"github.com/iliyamo/ride-queue-auth/internal/repository"
)

// EntitlementResolver answers which ticket, if any, admits a user today, and
// sells and toggles the ticket orders behind that answer.
type EntitlementResolver struct {
	tx      Transactor
	tickets TicketStore
	loc     *time.Location
	now     func() time.Time
}

func NewEntitlementResolver(tx Transactor, tickets TicketStore, loc *time.Location) *EntitlementResolver {
	if loc == nil {
		loc = time.Local
	}
	return &EntitlementResolver{tx: tx, tickets: tickets, loc: loc, now: time.Now}
}

// Today returns [00:00, next 00:00) of the current calendar day.
func (r *EntitlementResolver) Today() (start, end time.Time) {
	n := r.now().In(r.loc)
	start = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, r.loc)
	return start, start.AddDate(0, 0, 1)
}

// ResolveToday returns the first ACTIVE order whose slot falls on today.
func (r *EntitlementResolver) ResolveToday(ctx context.Context, userID uint64) (model.TicketOrder, error) {
	orders, err := r.tickets.ListOrdersByStatus(ctx, userID, model.OrderActive)
	if err != nil {
		return model.TicketOrder{}, err
	}
	start, end := r.Today()
	for _, o := range orders {
		if o.AvailableAt == nil {
			continue
		}
		if !o.AvailableAt.Before(start) && o.AvailableAt.Before(end) {
			return o, nil
		}
	}
	return model.TicketOrder{}, apperror.ErrNoActiveTicketToday
}

// CategoryOf returns the ticket type behind an order.
func (r *EntitlementResolver) CategoryOf(ctx context.Context, order model.TicketOrder) (model.TicketType, error) {
	tt, err := r.tickets.TicketTypeOf(ctx, order.TicketManagementID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperror.ErrEntitlementDataMissing
	}
	if err != nil {
		return "", err
	}
	if !tt.Valid() {
		return "", apperror.ErrEntitlementDataMissing
	}
	return tt, nil
}

// Upcoming lists the user's orders from the start of today on.
func (r *EntitlementResolver) Upcoming(ctx context.Context, userID uint64) ([]model.TicketOrder, error) {
	start, _ := r.Today()
	return r.tickets.ListOrdersFrom(ctx, userID, start)
}

// Products lists ticket products with the slots on sale from today on.
func (r *EntitlementResolver) Products(ctx context.Context) ([]model.TicketProduct, error) {
	start, _ := r.Today()
	return r.tickets.ListProducts(ctx, start)
}

// Active lists the user's ACTIVE orders whose slot is today or later.
func (r *EntitlementResolver) Active(ctx context.Context, userID uint64) ([]model.TicketOrder, error) {
	orders, err := r.tickets.ListOrdersByStatus(ctx, userID, model.OrderActive)
	if err != nil {
		return nil, err
	}
	start, _ := r.Today()
	out := make([]model.TicketOrder, 0, len(orders))
	for _, o := range orders {
		if o.AvailableAt != nil && !o.AvailableAt.Before(start) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Purchase sells one ticket of p.TicketType for the calendar date of p.Day,
// read in the park's zone. The order starts INACTIVE and takes one unit of
// the slot's stock. Days before today are not on sale.
func (r *EntitlementResolver) Purchase(ctx context.Context, p model.Purchase) (model.TicketOrder, error) {
	if !p.TicketType.Valid() {
		return model.TicketOrder{}, apperror.ErrInvalidTicketType
	}
	from := time.Date(p.Day.Year(), p.Day.Month(), p.Day.Day(), 0, 0, 0, 0, r.loc)
	to := from.AddDate(0, 0, 1)
	if today, _ := r.Today(); from.Before(today) {
		return model.TicketOrder{}, apperror.ErrTicketNotOnSale
	}

	var order model.TicketOrder
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := r.tickets.FindSlot(ctx, p.TicketType, from, to)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.ErrTicketNotOnSale
		}
		if err != nil {
			return err
		}
		if err := r.tickets.TakeStock(ctx, slot.ID); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return apperror.ErrSoldOut
			}
			return err
		}

		at := slot.AvailableAt
		order = model.TicketOrder{
			UserID:             p.UserID,
			TicketManagementID: slot.ID,
			PaymentDate:        r.now(),
			ActiveStatus:       model.OrderInactive,
			AvailableAt:        &at,
			TicketType:         p.TicketType,
		}
		return r.tickets.CreateOrder(ctx, &order)
	})
	return order, err
}

// SetStatus activates or deactivates one of the caller's own orders.
func (r *EntitlementResolver) SetStatus(ctx context.Context, callerID, orderID uint64, status model.OrderStatus) (model.TicketOrder, error) {
	if status != model.OrderActive && status != model.OrderInactive {
		return model.TicketOrder{}, apperror.ErrInvalidStatus
	}

	var order model.TicketOrder
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = r.tickets.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.ErrTicketOrderNotFound
		}
		if err != nil {
			return err
		}
		if order.UserID != callerID {
			return apperror.ErrTicketNotOwned
		}
		if order.ActiveStatus == status {
			return nil
		}
		if err := r.tickets.SetOrderStatus(ctx, orderID, status); err != nil {
			return err
		}
		order.ActiveStatus = status
		return nil
	})
	if err != nil {
		return model.TicketOrder{}, err
	}
	return order, nil
}

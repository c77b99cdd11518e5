package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/apperror"
	"github.com/iliyamo/ride-queue-auth/internal/logger"
	"github.com/iliyamo/ride-queue-auth/internal/model"
	"github.com/iliyamo/ride-queue-auth/internal/queue"
)

const unknownRideName = "Unknown"

// QueueOrchestrator runs the queue use cases. Every mutation follows the
// same order: local checks, then the remote queue server, then the local
// write. A remote failure therefore never leaves a local change behind,
// and the remote call never runs inside a database transaction.
type QueueOrchestrator struct {
	tx           Transactor
	entitlements *EntitlementResolver
	reservations *ReservationStateMachine
	gateway      QueueGateway
	rides        RideCatalog
	events       EventPublisher
	log          *logger.Logger
	now          func() time.Time

	pending sync.WaitGroup
}

func NewQueueOrchestrator(
	tx Transactor,
	entitlements *EntitlementResolver,
	reservations *ReservationStateMachine,
	gateway QueueGateway,
	rides RideCatalog,
	events EventPublisher,
	log *logger.Logger,
) *QueueOrchestrator {
	return &QueueOrchestrator{
		tx:           tx,
		entitlements: entitlements,
		reservations: reservations,
		gateway:      gateway,
		rides:        rides,
		events:       events,
		log:          log,
		now:          time.Now,
	}
}

// Enqueue places the caller in the ride's remote queue and records a WAITED
// reservation against today's ticket.
func (o *QueueOrchestrator) Enqueue(ctx context.Context, callerID, userID, rideID uint64, requested string) (model.EnqueueResult, error) {
	if callerID != userID {
		return model.EnqueueResult{}, apperror.ErrNotOwner
	}
	tt, ok := model.ParseTicketType(requested)
	if !ok {
		return model.EnqueueResult{}, apperror.ErrInvalidTicketType
	}
	log := o.log.With("user_id", userID, "ride_id", rideID, "ticket_type", tt)

	var order model.TicketOrder
	err := o.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = o.entitlements.ResolveToday(ctx, userID); err != nil {
			return err
		}
		actual, err := o.entitlements.CategoryOf(ctx, order)
		if err != nil {
			return err
		}
		if actual != tt {
			return apperror.ErrTicketTypeMismatch
		}
		free, err := o.reservations.CanEnqueue(ctx, order.ID, rideID)
		if err != nil {
			return err
		}
		if !free {
			return apperror.ErrAlreadyWaitingOrCompleted
		}
		return nil
	})
	if err != nil {
		log.Info("enqueue rejected", "error", err)
		return model.EnqueueResult{}, err
	}

	res, err := o.gateway.Enqueue(ctx, userID, rideID, tt)
	if err != nil {
		log.Error("remote enqueue failed", "ticket_order_id", order.ID, "error", err)
		return model.EnqueueResult{}, err
	}

	var usage model.RideUsage
	err = o.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		usage, err = o.reservations.Begin(ctx, userID, rideID, order.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperror.ErrAlreadyWaitingOrCompleted) {
			log.Warn("remote enqueue succeeded but a concurrent request recorded the reservation first",
				"ticket_order_id", order.ID)
		} else {
			log.Error("recording reservation failed after remote enqueue", "ticket_order_id", order.ID, "error", err)
		}
		return model.EnqueueResult{}, err
	}

	log.Info("enqueued", "ticket_order_id", order.ID, "position", res.Position, "eta_min", res.EstimatedWaitMinutes)
	o.publish(queue.RideUsageEvent{
		Event:                queue.EventRideEnqueued,
		UsageID:              usage.ID,
		UserID:               userID,
		RideID:               rideID,
		TicketOrderID:        order.ID,
		TicketType:           tt.String(),
		Position:             res.Position,
		EstimatedWaitMinutes: res.EstimatedWaitMinutes,
	})
	return res, nil
}

// Cancel removes the caller from the ride's remote queue and deletes the
// WAITED reservation. If the remote call fails the reservation is kept.
func (o *QueueOrchestrator) Cancel(ctx context.Context, callerID, userID, rideID uint64) error {
	if callerID != userID {
		return apperror.ErrNotOwner
	}
	log := o.log.With("user_id", userID, "ride_id", rideID)

	var (
		tt    model.TicketType
		usage model.RideUsage
	)
	err := o.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := o.entitlements.ResolveToday(ctx, userID)
		if err != nil {
			return err
		}
		if tt, err = o.entitlements.CategoryOf(ctx, order); err != nil {
			return err
		}
		usage, err = o.reservations.Waiting(ctx, userID, rideID)
		return err
	})
	if err != nil {
		log.Info("cancel rejected", "error", err)
		return err
	}

	if err := o.gateway.Cancel(ctx, userID, rideID, tt); err != nil {
		log.Error("remote cancel failed; reservation kept", "usage_id", usage.ID, "error", err)
		return err
	}

	err = o.tx.WithinTx(ctx, func(ctx context.Context) error {
		return o.reservations.Remove(ctx, usage)
	})
	if err != nil {
		log.Error("removing reservation failed after remote cancel", "usage_id", usage.ID, "error", err)
		return err
	}

	log.Info("cancelled", "usage_id", usage.ID)
	o.publish(queue.RideUsageEvent{
		Event:         queue.EventRideCancelled,
		UsageID:       usage.ID,
		UserID:        userID,
		RideID:        rideID,
		TicketOrderID: usage.TicketOrderID,
		TicketType:    tt.String(),
	})
	return nil
}

// CompleteRide marks the caller's WAITED reservation as COMPLETED. It does
// not contact the remote queue server.
func (o *QueueOrchestrator) CompleteRide(ctx context.Context, callerID, userID, rideID uint64) error {
	if callerID != userID {
		return apperror.ErrNotOwner
	}
	var usage model.RideUsage
	err := o.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		usage, err = o.reservations.Complete(ctx, userID, rideID)
		return err
	})
	if err != nil {
		o.log.Info("complete rejected", "user_id", userID, "ride_id", rideID, "error", err)
		return err
	}

	o.log.Info("ride completed", "user_id", userID, "ride_id", rideID, "usage_id", usage.ID)
	o.publish(queue.RideUsageEvent{
		Event:         queue.EventRideCompleted,
		UsageID:       usage.ID,
		UserID:        userID,
		RideID:        rideID,
		TicketOrderID: usage.TicketOrderID,
	})
	return nil
}

// Status returns the caller's current queues with ride names filled in from
// the local catalog. Unknown rides are named "Unknown".
func (o *QueueOrchestrator) Status(ctx context.Context, callerID, userID uint64) ([]model.QueueStatusItem, error) {
	if callerID != userID {
		return nil, apperror.ErrNotOwner
	}
	items, err := o.gateway.Status(ctx, userID)
	if err != nil {
		o.log.Error("remote status failed", "user_id", userID, "error", err)
		return nil, err
	}

	names := map[uint64]string{}
	for i := range items {
		name, ok := names[items[i].RideID]
		if !ok {
			name = items[i].RideName
			if ride, err := o.rides.GetByID(ctx, items[i].RideID); err == nil {
				name = ride.Name
			}
			if name == "" {
				name = unknownRideName
			}
			names[items[i].RideID] = name
		}
		items[i].RideName = name
	}
	if items == nil {
		items = []model.QueueStatusItem{}
	}
	return items, nil
}

// HandleQueueEvent applies a queue-server event to the local reservation.
// Events for guests without a WAITED reservation are logged and dropped.
func (o *QueueOrchestrator) HandleQueueEvent(ctx context.Context, ev queue.QueueServerEvent) error {
	log := o.log.With("user_id", ev.UserID, "ride_id", ev.RideID, "type", ev.Type, "status", ev.Status)

	var (
		name       string
		transition func(ctx context.Context, userID, rideID uint64) (model.RideUsage, error)
	)
	switch ev.Status {
	case queue.StatusArrived:
		name, transition = queue.EventRideArrived, o.reservations.MarkArrived
	case queue.StatusNoShow:
		name, transition = queue.EventRideNoShow, o.reservations.MarkNoShow
	default:
		log.Debug("queue event ignored")
		return nil
	}

	var usage model.RideUsage
	err := o.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		usage, err = transition(ctx, ev.UserID, ev.RideID)
		return err
	})
	if errors.Is(err, apperror.ErrNoWaitingReservation) {
		log.Warn("queue event for a guest with no waiting reservation")
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("queue event applied", "usage_id", usage.ID)
	o.publish(queue.RideUsageEvent{
		Event:         name,
		UsageID:       usage.ID,
		UserID:        ev.UserID,
		RideID:        ev.RideID,
		TicketOrderID: usage.TicketOrderID,
	})
	return nil
}

// publish sends ev in the background. Delivery failures never reach the
// caller: the local change is already committed.
func (o *QueueOrchestrator) publish(ev queue.RideUsageEvent) {
	if o.events == nil {
		return
	}
	ev.OccurredAt = o.now().UTC().Format(time.RFC3339)
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.events.PublishRideUsage(ctx, ev); err != nil {
			o.log.Warn("ride usage event not published", "event", ev.Event, "user_id", ev.UserID, "error", err)
		}
	}()
}

// Drain waits for events still being published. It returns ctx.Err() if
// ctx ends first; those events may then be lost.
func (o *QueueOrchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

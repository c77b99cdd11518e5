package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/apperror"
	"github.com/iliyamo/ride-queue-auth/internal/model"
	"github.com/iliyamo/ride-queue-auth/internal/repository"
)

// ReservationStateMachine owns the lifecycle of ride_usage rows:
// WAITED -> COMPLETED, WAITED -> NO_SHOW, or WAITED removed on cancel.
type ReservationStateMachine struct {
	usages UsageStore
	now    func() time.Time
}

func NewReservationStateMachine(usages UsageStore) *ReservationStateMachine {
	return &ReservationStateMachine{usages: usages, now: time.Now}
}

// CanEnqueue is false while a WAITED or COMPLETED row exists for the
// ticket order and ride. NO_SHOW rows do not block.
func (m *ReservationStateMachine) CanEnqueue(ctx context.Context, ticketOrderID, rideID uint64) (bool, error) {
	exists, err := m.usages.ExistsBlocking(ctx, ticketOrderID, rideID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Begin records a new WAITED reservation. Call it only after the remote
// queue accepted the guest.
func (m *ReservationStateMachine) Begin(ctx context.Context, userID, rideID, ticketOrderID uint64) (model.RideUsage, error) {
	u := model.RideUsage{
		UserID:        userID,
		RideID:        rideID,
		TicketOrderID: ticketOrderID,
		Status:        model.UsageWaited,
		CreatedAt:     m.now(),
	}
	err := m.usages.Insert(ctx, &u)
	if errors.Is(err, repository.ErrDuplicate) {
		return model.RideUsage{}, apperror.ErrAlreadyWaitingOrCompleted
	}
	return u, err
}

// Waiting returns the user's WAITED reservation for the ride.
func (m *ReservationStateMachine) Waiting(ctx context.Context, userID, rideID uint64) (model.RideUsage, error) {
	u, err := m.usages.FindWaiting(ctx, userID, rideID)
	if errors.Is(err, repository.ErrNotFound) {
		return u, apperror.ErrNoWaitingReservation
	}
	return u, err
}

// Complete moves the user's WAITED reservation to COMPLETED.
func (m *ReservationStateMachine) Complete(ctx context.Context, userID, rideID uint64) (model.RideUsage, error) {
	return m.finish(ctx, userID, rideID, model.UsageCompleted)
}

// MarkNoShow moves the user's WAITED reservation to NO_SHOW.
func (m *ReservationStateMachine) MarkNoShow(ctx context.Context, userID, rideID uint64) (model.RideUsage, error) {
	return m.finish(ctx, userID, rideID, model.UsageNoShow)
}

func (m *ReservationStateMachine) finish(ctx context.Context, userID, rideID uint64, to model.UsageStatus) (model.RideUsage, error) {
	u, err := m.Waiting(ctx, userID, rideID)
	if err != nil {
		return u, err
	}
	if !u.Status.CanTransition(to) {
		return u, apperror.ErrInvalidTransition
	}
	var completedAt *time.Time
	if to == model.UsageCompleted {
		at := m.now()
		completedAt = &at
	}
	if err := m.usages.Transition(ctx, u.ID, u.Status, to, completedAt); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return u, apperror.ErrNoWaitingReservation
		}
		return u, err
	}
	u.Status = to
	u.CompletedAt = completedAt
	return u, nil
}

// MarkArrived stamps the arrival time on the user's WAITED reservation.
func (m *ReservationStateMachine) MarkArrived(ctx context.Context, userID, rideID uint64) (model.RideUsage, error) {
	u, err := m.Waiting(ctx, userID, rideID)
	if err != nil {
		return u, err
	}
	at := m.now()
	if err := m.usages.MarkArrived(ctx, u.ID, at); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return u, apperror.ErrNoWaitingReservation
		}
		return u, err
	}
	u.ArrivedAt = &at
	return u, nil
}

// Remove deletes a WAITED reservation after the remote queue dropped it.
func (m *ReservationStateMachine) Remove(ctx context.Context, u model.RideUsage) error {
	if u.Status != model.UsageWaited {
		return apperror.ErrInvalidTransition
	}
	err := m.usages.DeleteWaiting(ctx, u.ID)
	if errors.Is(err, repository.ErrStaleState) {
		return apperror.ErrNoWaitingReservation
	}
	return err
}

// History returns every reservation the user made, newest first.
func (m *ReservationStateMachine) History(ctx context.Context, userID uint64) ([]model.RideUsage, error) {
	out, err := m.usages.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.RideUsage{}
	}
	return out, nil
}

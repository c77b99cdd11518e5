// Package service holds the use cases of the server: account sessions,
// ticket entitlements, ride reservations and their coordination with the
// remote queue server.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/model"
	"github.com/iliyamo/ride-queue-auth/internal/queue"
)

// Transactor runs fn inside one local transaction. Stores called with the
// context passed to fn take part in it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	Create(ctx context.Context, username, passwordHash string) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// CredentialStore keeps at most one refresh token per user.
type CredentialStore interface {
	Save(ctx context.Context, t model.RefreshToken) error
	Get(ctx context.Context, userID uint64) (model.RefreshToken, error)
	Delete(ctx context.Context, userID uint64) error
	// GetForUpdate is Get with the row locked until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, userID uint64) (model.RefreshToken, error)
}

type TicketStore interface {
	ListOrdersByStatus(ctx context.Context, userID uint64, status model.OrderStatus) ([]model.TicketOrder, error)
	ListOrdersFrom(ctx context.Context, userID uint64, from time.Time) ([]model.TicketOrder, error)
	TicketTypeOf(ctx context.Context, ticketManagementID uint64) (model.TicketType, error)
	ListProducts(ctx context.Context, from time.Time) ([]model.TicketProduct, error)

	// FindSlot returns the slot of a ticket category whose day lies in [from, to).
	FindSlot(ctx context.Context, tt model.TicketType, from, to time.Time) (model.TicketSlot, error)
	TakeStock(ctx context.Context, slotID uint64) error
	CreateOrder(ctx context.Context, o *model.TicketOrder) error
	GetOrderForUpdate(ctx context.Context, orderID uint64) (model.TicketOrder, error)
	SetOrderStatus(ctx context.Context, orderID uint64, status model.OrderStatus) error
}

type UsageStore interface {
	Insert(ctx context.Context, u *model.RideUsage) error
	ExistsBlocking(ctx context.Context, ticketOrderID, rideID uint64) (bool, error)
	FindWaiting(ctx context.Context, userID, rideID uint64) (model.RideUsage, error)
	Transition(ctx context.Context, id uint64, from, to model.UsageStatus, completedAt *time.Time) error
	MarkArrived(ctx context.Context, id uint64, at time.Time) error
	DeleteWaiting(ctx context.Context, id uint64) error
	ListByUser(ctx context.Context, userID uint64) ([]model.RideUsage, error)
}

type RideCatalog interface {
	ListActive(ctx context.Context) ([]model.Ride, error)
	GetByID(ctx context.Context, id uint64) (model.Ride, error)
	Search(ctx context.Context, q model.RideSearch) ([]model.Ride, int64, error)
}

// QueueGateway is the remote queue server.
type QueueGateway interface {
	Enqueue(ctx context.Context, userID, rideID uint64, tt model.TicketType) (model.EnqueueResult, error)
	Cancel(ctx context.Context, userID, rideID uint64, tt model.TicketType) error
	Status(ctx context.Context, userID uint64) ([]model.QueueStatusItem, error)
	RidesInfo(ctx context.Context) ([]model.RideQueueInfo, error)
	RideInfo(ctx context.Context, rideID uint64) (model.RideQueueInfo, error)
}

// EventPublisher ships ride-usage events to the broker.
type EventPublisher interface {
	PublishRideUsage(ctx context.Context, ev queue.RideUsageEvent) error
}

// WaitTimeStore holds the last polled minimum wait per ride.
type WaitTimeStore interface {
	Replace(ctx context.Context, minutes map[uint64]int) error
	All(ctx context.Context) (map[uint64]int, error)
}

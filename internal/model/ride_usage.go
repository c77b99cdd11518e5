package model

import "time"

// UsageStatus is the state of a ride reservation.
type UsageStatus string

const (
    UsageWaited    UsageStatus = "WAITED"
    UsageCompleted UsageStatus = "COMPLETED"
    UsageNoShow    UsageStatus = "NO_SHOW"
)

// CanTransition reports whether a reservation in state s may move to next.
// Only WAITED records change state; COMPLETED and NO_SHOW are terminal.
func (s UsageStatus) CanTransition(next UsageStatus) bool {
    return s == UsageWaited && (next == UsageCompleted || next == UsageNoShow)
}

// Blocking reports whether a record in this state prevents a new
// reservation for the same ticket order and ride.
func (s UsageStatus) Blocking() bool {
    return s == UsageWaited || s == UsageCompleted
}

// RideUsage is one reservation record in `ride_usage`.
type RideUsage struct {
    ID            uint64      // ride_usage.id
    UserID        uint64      // ride_usage.user_id
    RideID        uint64      // ride_usage.ride_id
    TicketOrderID uint64      // ride_usage.ticket_order_id
    Status        UsageStatus // ride_usage.status
    ArrivedAt     *time.Time  // ride_usage.arrived_at
    CompletedAt   *time.Time  // ride_usage.completed_at
    CreatedAt     time.Time   // ride_usage.created_at
}

// Package queue defines message payloads exchanged over the message brokers.
package queue

// Ride-usage event names published after a reservation changes locally.
const (
    EventRideEnqueued  = "ride.enqueued"
    EventRideCancelled = "ride.cancelled"
    EventRideCompleted = "ride.completed"
    EventRideNoShow    = "ride.no_show"
    EventRideArrived   = "ride.arrived"
)

// RideUsageEvent is published to RabbitMQ once a reservation change has been
// committed. Downstream consumers can audit or notify without querying the
// primary database.
type RideUsageEvent struct {
    Event                string `json:"event"`
    UsageID              uint64 `json:"usage_id,omitempty"`
    UserID               uint64 `json:"user_id"`
    RideID               uint64 `json:"ride_id"`
    TicketOrderID        uint64 `json:"ticket_order_id,omitempty"`
    TicketType           string `json:"ticket_type,omitempty"`
    Position             int64  `json:"position,omitempty"`
    EstimatedWaitMinutes int    `json:"estimated_wait_minutes,omitempty"`
    OccurredAt           string `json:"occurred_at"`
}

// Queue-server status values carried on the Kafka topic.
const (
    StatusArrived = "ARRIVED"
    StatusNoShow  = "NO_SHOW"
)

// QueueServerEvent is produced by the remote queue server when a guest's
// place in line changes (called, arrived, missed their turn).
type QueueServerEvent struct {
    RideID uint64 `json:"rideId"`
    UserID uint64 `json:"userId"`
    Type   string `json:"type"`
    Status string `json:"status"`
}

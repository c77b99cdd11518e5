package model

import (
    "strings"
    "time"
)

// TicketType is the admission category a ticket grants.
type TicketType string

const (
    TicketGeneral TicketType = "GENERAL"
    TicketPremium TicketType = "PREMIUM"
)

// ParseTicketType normalizes s and reports whether it names a known category.
func ParseTicketType(s string) (TicketType, bool) {
    tt := TicketType(strings.ToUpper(strings.TrimSpace(s)))
    return tt, tt.Valid()
}

func (t TicketType) Valid() bool {
    return t == TicketGeneral || t == TicketPremium
}

func (t TicketType) String() string { return string(t) }

// OrderStatus is the lifecycle flag of a ticket order.
type OrderStatus string

const (
    OrderActive   OrderStatus = "ACTIVE"
    OrderInactive OrderStatus = "INACTIVE"
)

// ParseOrderStatus normalizes s and reports whether it names a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
    st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
    return st, st == OrderActive || st == OrderInactive
}

// Ticket is a purchasable product in `tickets`.
type Ticket struct {
    ID          uint64     // tickets.id
    TicketType  TicketType // tickets.ticket_type
    TicketCount int        // tickets.ticket_count (people admitted)
    Price       int64      // tickets.price
}

// TicketSlot is an inventory slot in `ticket_management`: a ticket product
// made available for a specific day.
type TicketSlot struct {
    ID          uint64    // ticket_management.id
    TicketID    uint64    // ticket_management.ticket_id
    AvailableAt time.Time // ticket_management.available_at
    Stock       int       // ticket_management.stock
}

// TicketProduct pairs a ticket with the slots on sale for it.
type TicketProduct struct {
    Ticket
    Slots []TicketSlot
}

// TicketOrder is a purchased entitlement in `ticket_orders`. AvailableAt is
// loaded from the referenced slot and is nil when the slot row is missing.
type TicketOrder struct {
    ID                 uint64      // ticket_orders.id
    UserID             uint64      // ticket_orders.user_id
    TicketManagementID uint64      // ticket_orders.ticket_management_id
    PaymentDate        time.Time   // ticket_orders.payment_date
    ActiveStatus       OrderStatus // ticket_orders.active_status
    AvailableAt        *time.Time  // ticket_management.available_at
    TicketType         TicketType  // tickets.ticket_type, empty if unknown
}

// Purchase asks for one order of the given category on Day. Only the
// calendar date of Day is used.
type Purchase struct {
    UserID     uint64
    Day        time.Time
    TicketType TicketType
}

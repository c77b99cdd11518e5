package model

// Payloads exchanged with the remote queue server.

// EnqueueResult is the remote placement of a newly queued guest.
type EnqueueResult struct {
    Position             int64 `json:"position"`
    EstimatedWaitMinutes int   `json:"estimatedWaitMinutes"`
}

// QueueStatusItem is one queue a user is currently standing in.
type QueueStatusItem struct {
    RideID               uint64     `json:"rideId"`
    RideName             string     `json:"rideName"`
    TicketType           TicketType `json:"ticketType"`
    Position             int64      `json:"position"`
    EstimatedWaitMinutes int        `json:"estimatedWaitMinutes"`
}

// WaitTime is the queue length and estimate for one category of a ride.
type WaitTime struct {
    TicketType           TicketType `json:"ticketType"`
    WaitingCount         int        `json:"waitingCount"`
    EstimatedWaitMinutes int        `json:"estimatedWaitMinutes"`
}

// RideQueueInfo groups the wait times of a ride.
type RideQueueInfo struct {
    RideID    uint64     `json:"rideId"`
    WaitTimes []WaitTime `json:"waitTimes"`
}

// MinWaitMinutes returns the shortest estimate across categories and false
// when the ride has none.
func (r RideQueueInfo) MinWaitMinutes() (int, bool) {
    if len(r.WaitTimes) == 0 {
        return 0, false
    }
    m := r.WaitTimes[0].EstimatedWaitMinutes
    for _, w := range r.WaitTimes[1:] {
        if w.EstimatedWaitMinutes < m {
            m = w.EstimatedWaitMinutes
        }
    }
    return m, true
}

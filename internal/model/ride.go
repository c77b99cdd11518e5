package model

import "time"

// Ride is an attraction in the local `rides` catalog.
type Ride struct {
    ID               uint64    `json:"rideId"`
    Name             string    `json:"name"`
    RidingTime       int       `json:"ridingTime"`
    IsActive         bool      `json:"isActive"`
    CapacityTotal    int       `json:"capacityTotal"`
    CapacityPremium  int       `json:"capacityPremium"`
    CapacityGeneral  int       `json:"capacityGeneral"`
    ShortDescription string    `json:"shortDescription"`
    LongDescription  string    `json:"longDescription"`
    Photo            string    `json:"photo"`
    OperatingTime    string    `json:"operatingTime"`
    CreatedAt        time.Time `json:"createdAt"`
}

// RideSearch filters and pages the ride catalog. An empty Name matches
// every ride; inactive rides are included only when IncludeInactive is set.
type RideSearch struct {
    Name            string
    IncludeInactive bool
    Page            int
    PageSize        int
}

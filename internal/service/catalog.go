package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/ride-queue-auth/internal/apperror"
	"github.com/iliyamo/ride-queue-auth/internal/logger"
	"github.com/iliyamo/ride-queue-auth/internal/model"
	"github.com/iliyamo/ride-queue-auth/internal/repository"
)

// RideView is a catalog ride with its live wait times.
type RideView struct {
	model.Ride
	WaitTimes []model.WaitTime `json:"waitTimes"`
}

// CatalogService serves the public browsing reads. Wait times come from the
// remote queue server; when it is down rides are still listed, just
// without wait times.
type CatalogService struct {
	rides     RideCatalog
	gateway   QueueGateway
	waitTimes WaitTimeStore
	log       *logger.Logger
}

func NewCatalogService(rides RideCatalog, gateway QueueGateway, waitTimes WaitTimeStore, log *logger.Logger) *CatalogService {
	return &CatalogService{rides: rides, gateway: gateway, waitTimes: waitTimes, log: log}
}

// Rides lists active rides merged with their remote wait times.
func (s *CatalogService) Rides(ctx context.Context) ([]RideView, error) {
	rides, err := s.rides.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	byRide := map[uint64][]model.WaitTime{}
	if infos, err := s.gateway.RidesInfo(ctx); err != nil {
		s.log.Warn("ride wait times unavailable", "error", err)
	} else {
		for _, info := range infos {
			byRide[info.RideID] = info.WaitTimes
		}
	}

	out := make([]RideView, 0, len(rides))
	for _, r := range rides {
		wt := byRide[r.ID]
		if wt == nil {
			wt = []model.WaitTime{}
		}
		out = append(out, RideView{Ride: r, WaitTimes: wt})
	}
	return out, nil
}

// Ride returns one ride with its wait times.
func (s *CatalogService) Ride(ctx context.Context, rideID uint64) (RideView, error) {
	r, err := s.rides.GetByID(ctx, rideID)
	if errors.Is(err, repository.ErrNotFound) {
		return RideView{}, apperror.ErrNotFound.WithMessage("ride not found")
	}
	if err != nil {
		return RideView{}, err
	}

	view := RideView{Ride: r, WaitTimes: []model.WaitTime{}}
	info, err := s.gateway.RideInfo(ctx, rideID)
	if err != nil {
		s.log.Warn("ride wait times unavailable", "ride_id", rideID, "error", err)
		return view, nil
	}
	if info.WaitTimes != nil {
		view.WaitTimes = info.WaitTimes
	}
	return view, nil
}

// MinWaitMinutes returns the last polled minimum wait per ride.
func (s *CatalogService) MinWaitMinutes(ctx context.Context) (map[uint64]int, error) {
	return s.waitTimes.All(ctx)
}

// Search pages through the catalog by name. Page defaults to 1 and page
// size to 20, capped at 100.
func (s *CatalogService) Search(ctx context.Context, q model.RideSearch) ([]model.Ride, int64, error) {
	q.Name = strings.TrimSpace(q.Name)
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize < 1:
		q.PageSize = 20
	case q.PageSize > 100:
		q.PageSize = 100
	}
	rides, total, err := s.rides.Search(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if rides == nil {
		rides = []model.Ride{}
	}
	return rides, total, nil
}

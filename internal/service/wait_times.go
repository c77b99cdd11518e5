package service

import (
	"context"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/logger"
)

// WaitTimePoller refreshes the per-ride minimum wait snapshot on a fixed
// interval. A failed poll keeps the previous snapshot.
type WaitTimePoller struct {
	gateway  QueueGateway
	store    WaitTimeStore
	interval time.Duration
	log      *logger.Logger
}

func NewWaitTimePoller(gateway QueueGateway, store WaitTimeStore, interval time.Duration, log *logger.Logger) *WaitTimePoller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &WaitTimePoller{gateway: gateway, store: store, interval: interval, log: log}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *WaitTimePoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if err := p.PollOnce(ctx); err != nil {
			p.log.Warn("wait time poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches all rides' wait times and stores each ride's minimum.
// Rides without any wait time entry are left out of the snapshot.
func (p *WaitTimePoller) PollOnce(ctx context.Context) error {
	infos, err := p.gateway.RidesInfo(ctx)
	if err != nil {
		return err
	}
	minutes := make(map[uint64]int, len(infos))
	for _, info := range infos {
		if m, ok := info.MinWaitMinutes(); ok {
			minutes[info.RideID] = m
		}
	}
	if err := p.store.Replace(ctx, minutes); err != nil {
		return err
	}
	p.log.Debug("wait times refreshed", "rides", len(minutes))
	return nil
}

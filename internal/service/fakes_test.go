package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/model"
	"github.com/iliyamo/ride-queue-auth/internal/queue"
	"github.com/iliyamo/ride-queue-auth/internal/repository"
)

// fakeTx runs fn directly and counts how many units of work were opened.
// The context handed to fn is marked so stores can tell they are inside one.
type fakeTx struct {
	mu    sync.Mutex
	count int
}

type fakeTxKey struct{}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return fn(context.WithValue(ctx, fakeTxKey{}, true))
}

func (f *fakeTx) units() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(fakeTxKey{}).(bool)
	return v
}

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (m *memUsers) Create(ctx context.Context, username, hash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			return 0, repository.ErrDuplicate
		}
	}
	m.nextID++
	m.byID[m.nextID] = model.User{ID: m.nextID, Username: username, PasswordHash: hash}
	return m.nextID, nil
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

// memCreds records how many writes and locked reads ran outside a unit of work.
type memCreds struct {
	mu        sync.Mutex
	rows      map[uint64]model.RefreshToken
	locked    int
	untracked int
}

func newMemCreds() *memCreds { return &memCreds{rows: map[uint64]model.RefreshToken{}} }

func (m *memCreds) Save(ctx context.Context, t model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !inTx(ctx) {
		m.untracked++
	}
	m.rows[t.UserID] = t
	return nil
}

func (m *memCreds) Get(ctx context.Context, userID uint64) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[userID]
	if !ok {
		return t, repository.ErrNotFound
	}
	return t, nil
}

func (m *memCreds) GetForUpdate(ctx context.Context, userID uint64) (model.RefreshToken, error) {
	m.mu.Lock()
	if inTx(ctx) {
		m.locked++
	} else {
		m.untracked++
	}
	m.mu.Unlock()
	return m.Get(ctx, userID)
}

func (m *memCreds) Delete(ctx context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, userID)
	return nil
}

// memTickets holds orders, slots on sale and the ticket type per slot id.
type memTickets struct {
	orders    []model.TicketOrder
	slots     []model.TicketSlot
	slotTypes map[uint64]model.TicketType
}

func (m *memTickets) ListOrdersByStatus(ctx context.Context, userID uint64, status model.OrderStatus) ([]model.TicketOrder, error) {
	var out []model.TicketOrder
	for _, o := range m.orders {
		if o.UserID == userID && o.ActiveStatus == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memTickets) ListOrdersFrom(ctx context.Context, userID uint64, from time.Time) ([]model.TicketOrder, error) {
	var out []model.TicketOrder
	for _, o := range m.orders {
		if o.UserID == userID && o.AvailableAt != nil && !o.AvailableAt.Before(from) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memTickets) TicketTypeOf(ctx context.Context, slotID uint64) (model.TicketType, error) {
	tt, ok := m.slotTypes[slotID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return tt, nil
}

func (m *memTickets) ListProducts(ctx context.Context, from time.Time) ([]model.TicketProduct, error) {
	return nil, nil
}

func (m *memTickets) FindSlot(ctx context.Context, tt model.TicketType, from, to time.Time) (model.TicketSlot, error) {
	for _, s := range m.slots {
		if m.slotTypes[s.ID] == tt && !s.AvailableAt.Before(from) && s.AvailableAt.Before(to) {
			return s, nil
		}
	}
	return model.TicketSlot{}, repository.ErrNotFound
}

func (m *memTickets) TakeStock(ctx context.Context, slotID uint64) error {
	for i := range m.slots {
		if m.slots[i].ID == slotID && m.slots[i].Stock > 0 {
			m.slots[i].Stock--
			return nil
		}
	}
	return repository.ErrStaleState
}

func (m *memTickets) CreateOrder(ctx context.Context, o *model.TicketOrder) error {
	o.ID = uint64(len(m.orders) + 1)
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memTickets) GetOrderForUpdate(ctx context.Context, orderID uint64) (model.TicketOrder, error) {
	for _, o := range m.orders {
		if o.ID == orderID {
			return o, nil
		}
	}
	return model.TicketOrder{}, repository.ErrNotFound
}

func (m *memTickets) SetOrderStatus(ctx context.Context, orderID uint64, status model.OrderStatus) error {
	for i := range m.orders {
		if m.orders[i].ID == orderID {
			m.orders[i].ActiveStatus = status
		}
	}
	return nil
}

// memUsages emulates ride_usage including its uniqueness key.
type memUsages struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.RideUsage
}

func newMemUsages() *memUsages { return &memUsages{rows: map[uint64]model.RideUsage{}} }

func (m *memUsages) Insert(ctx context.Context, u *model.RideUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TicketOrderID == u.TicketOrderID && r.RideID == u.RideID && r.Status.Blocking() && u.Status.Blocking() {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsages) ExistsBlocking(ctx context.Context, orderID, rideID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TicketOrderID == orderID && r.RideID == rideID && r.Status.Blocking() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsages) FindWaiting(ctx context.Context, userID, rideID uint64) (model.RideUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best model.RideUsage
	for _, r := range m.rows {
		if r.UserID == userID && r.RideID == rideID && r.Status == model.UsageWaited && r.ID > best.ID {
			best = r
		}
	}
	if best.ID == 0 {
		return best, repository.ErrNotFound
	}
	return best, nil
}

func (m *memUsages) Transition(ctx context.Context, id uint64, from, to model.UsageStatus, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != from {
		return repository.ErrStaleState
	}
	r.Status = to
	if completedAt != nil {
		r.CompletedAt = completedAt
	}
	m.rows[id] = r
	return nil
}

func (m *memUsages) MarkArrived(ctx context.Context, id uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.UsageWaited {
		return repository.ErrStaleState
	}
	r.ArrivedAt = &at
	m.rows[id] = r
	return nil
}

func (m *memUsages) DeleteWaiting(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.UsageWaited {
		return repository.ErrStaleState
	}
	delete(m.rows, id)
	return nil
}

func (m *memUsages) ListByUser(ctx context.Context, userID uint64) ([]model.RideUsage, error) {
	var out []model.RideUsage
	for _, r := range m.all() {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memUsages) all() []model.RideUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RideUsage, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out
}

type memRides map[uint64]model.Ride

func (m memRides) ListActive(ctx context.Context) ([]model.Ride, error) {
	var out []model.Ride
	for _, r := range m {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memRides) GetByID(ctx context.Context, id uint64) (model.Ride, error) {
	r, ok := m[id]
	if !ok {
		return model.Ride{}, repository.ErrNotFound
	}
	return r, nil
}

func (m memRides) Search(ctx context.Context, q model.RideSearch) ([]model.Ride, int64, error) {
	var hits []model.Ride
	for _, r := range m {
		if !q.IncludeInactive && !r.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(r.Name), strings.ToLower(q.Name)) {
			hits = append(hits, r)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Name < hits[j].Name })
	total := int64(len(hits))
	start := (q.Page - 1) * q.PageSize
	if start >= len(hits) {
		return nil, total, nil
	}
	end := min(start+q.PageSize, len(hits))
	return hits[start:end], total, nil
}

// mockGateway records calls; nil funcs fall back to a harmless default.
type mockGateway struct {
	mu           sync.Mutex
	enqueueCalls int
	cancelCalls  int

	enqueueFunc   func(ctx context.Context, userID, rideID uint64, tt model.TicketType) (model.EnqueueResult, error)
	cancelFunc    func(ctx context.Context, userID, rideID uint64, tt model.TicketType) error
	statusFunc    func(ctx context.Context, userID uint64) ([]model.QueueStatusItem, error)
	ridesInfoFunc func(ctx context.Context) ([]model.RideQueueInfo, error)
	rideInfoFunc  func(ctx context.Context, rideID uint64) (model.RideQueueInfo, error)
}

func (g *mockGateway) Enqueue(ctx context.Context, userID, rideID uint64, tt model.TicketType) (model.EnqueueResult, error) {
	g.mu.Lock()
	g.enqueueCalls++
	g.mu.Unlock()
	if g.enqueueFunc != nil {
		return g.enqueueFunc(ctx, userID, rideID, tt)
	}
	return model.EnqueueResult{Position: 1, EstimatedWaitMinutes: 5}, nil
}

func (g *mockGateway) Cancel(ctx context.Context, userID, rideID uint64, tt model.TicketType) error {
	g.mu.Lock()
	g.cancelCalls++
	g.mu.Unlock()
	if g.cancelFunc != nil {
		return g.cancelFunc(ctx, userID, rideID, tt)
	}
	return nil
}

func (g *mockGateway) Status(ctx context.Context, userID uint64) ([]model.QueueStatusItem, error) {
	if g.statusFunc != nil {
		return g.statusFunc(ctx, userID)
	}
	return nil, nil
}

func (g *mockGateway) RidesInfo(ctx context.Context) ([]model.RideQueueInfo, error) {
	if g.ridesInfoFunc != nil {
		return g.ridesInfoFunc(ctx)
	}
	return nil, nil
}

func (g *mockGateway) RideInfo(ctx context.Context, rideID uint64) (model.RideQueueInfo, error) {
	if g.rideInfoFunc != nil {
		return g.rideInfoFunc(ctx, rideID)
	}
	return model.RideQueueInfo{RideID: rideID}, nil
}

// chanPublisher forwards every event to a buffered channel.
type chanPublisher struct{ ch chan queue.RideUsageEvent }

func newChanPublisher() *chanPublisher {
	return &chanPublisher{ch: make(chan queue.RideUsageEvent, 16)}
}

func (p *chanPublisher) PublishRideUsage(ctx context.Context, ev queue.RideUsageEvent) error {
	p.ch <- ev
	return nil
}

type memWaitTimes struct {
	mu   sync.Mutex
	snap map[uint64]int
	err  error
}

func (m *memWaitTimes) Replace(ctx context.Context, minutes map[uint64]int) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = minutes
	return nil
}

func (m *memWaitTimes) All(ctx context.Context) (map[uint64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
)

type optionRow struct {
	id        int64
	productID int64
	name      string
	value     string
}

type storeState struct {
	cart       map[int64]domain.CartLine
	nextCartID int64
	orders     map[uuid.UUID]domain.Order
	orderLines []domain.OrderLine
	nextLineID int64
	outbox     []repository.OutboxEvent
}

func (s *storeState) clone() *storeState {
	return &storeState{
		cart:       maps.Clone(s.cart),
		nextCartID: s.nextCartID,
		orders:     maps.Clone(s.orders),
		orderLines: slices.Clone(s.orderLines),
		nextLineID: s.nextLineID,
		outbox:     slices.Clone(s.outbox),
	}
}

// memStore is an in-memory stand-in for the Postgres repository. A
// transaction works on a copy of the state that replaces the original only
// when the callback succeeds.
type memStore struct {
	mu    sync.Mutex
	state *storeState

	specPrices    map[int64]float64
	productPrices map[int64]float64
	options       []optionRow

	// failOn names a UnitOfWork method that returns errInjected.
	failOn string
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		state: &storeState{
			cart:   map[int64]domain.CartLine{},
			orders: map[uuid.UUID]domain.Order{},
		},
		specPrices:    map[int64]float64{},
		productPrices: map[int64]float64{},
	}
}

func (m *memStore) ListCartLines(_ context.Context, userID int64) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.userLines(userID), nil
}

func (s *storeState) userLines(userID int64) []domain.CartLine {
	out := []domain.CartLine{}
	for _, l := range s.cart {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) UpsertCartLine(_ context.Context, userID int64, item domain.AddItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.NewMergeKey(userID, item)
	for id, l := range m.state.cart {
		existing := domain.NewMergeKey(l.UserID, domain.AddItem{
			ProductID:       l.ProductID,
			SpecificationID: l.SpecificationID,
			Options:         l.Options,
		})
		if existing == key {
			if l.Quantity > domain.MaxQuantity-item.Quantity {
				return domain.NewValidationError("quantity", "quantity is too large")
			}
			l.Quantity += item.Quantity
			l.UpdatedAt = time.Now()
			m.state.cart[id] = l
			return nil
		}
	}

	m.state.nextCartID++
	m.state.cart[m.state.nextCartID] = domain.CartLine{
		ID:              m.state.nextCartID,
		UserID:          userID,
		ProductID:       item.ProductID,
		SpecificationID: item.SpecificationID,
		Options:         item.Options.Normalize(),
		Quantity:        item.Quantity,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	return nil
}

func (m *memStore) UpdateCartLineQuantity(_ context.Context, userID, lineID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.state.cart[lineID]
	if !ok || l.UserID != userID {
		return domain.ErrCartLineNotFound
	}
	l.Quantity = quantity
	m.state.cart[lineID] = l
	return nil
}

func (m *memStore) DeleteCartLine(_ context.Context, userID, lineID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.state.cart[lineID]
	if !ok || l.UserID != userID {
		return domain.ErrCartLineNotFound
	}
	delete(m.state.cart, lineID)
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memStore) ListOrderLines(_ context.Context, orderID uuid.UUID) ([]domain.OrderLineDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.OrderLineDetail{}
	for _, l := range m.state.orderLines {
		if l.OrderID == orderID {
			out = append(out, domain.OrderLineDetail{OrderLine: l})
		}
	}
	return out, nil
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.sortedOrders(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (m *memStore) ListAllOrders(context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.sortedOrders(func(domain.Order) bool { return true }), nil
}

func (s *storeState) sortedOrders(keep func(domain.Order) bool) []domain.Order {
	out := []domain.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) WithinTx(_ context.Context, fn func(uow repository.UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memUOW{store: m, state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) outbox() []repository.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.outbox)
}

func (m *memStore) allOrderLines() []domain.OrderLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.orderLines)
}

type memUOW struct {
	store *memStore
	state *storeState
}

func (u *memUOW) fail(op string) error {
	if u.store.failOn == op {
		return errInjected
	}
	return nil
}

func (u *memUOW) LockCartLines(_ context.Context, userID int64) ([]domain.CartLine, error) {
	if err := u.fail("LockCartLines"); err != nil {
		return nil, err
	}
	return u.state.userLines(userID), nil
}

func (u *memUOW) DeleteCartLines(_ context.Context, userID int64, lineIDs []int64) (int64, error) {
	if err := u.fail("DeleteCartLines"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range lineIDs {
		if l, ok := u.state.cart[id]; ok && l.UserID == userID {
			delete(u.state.cart, id)
			n++
		}
	}
	return n, nil
}

func (u *memUOW) SpecificationPrice(_ context.Context, id int64) (float64, bool, error) {
	p, ok := u.store.specPrices[id]
	return p, ok, nil
}

func (u *memUOW) ProductPrice(_ context.Context, id int64) (float64, bool, error) {
	p, ok := u.store.productPrices[id]
	return p, ok, nil
}

func (u *memUOW) FindOptionID(_ context.Context, productID int64, opts domain.Options) (*int64, error) {
	n := opts.Normalize()
	for _, o := range u.store.options {
		if v, ok := n[o.name]; ok && o.productID == productID && v == o.value {
			id := o.id
			return &id, nil
		}
	}
	return nil, nil
}

func (u *memUOW) InsertOrder(_ context.Context, order *domain.Order) error {
	if err := u.fail("InsertOrder"); err != nil {
		return err
	}
	// spread creation times so newest-first ordering is deterministic
	order.CreatedAt = time.Now().Add(time.Duration(len(u.state.orders)) * time.Millisecond)
	order.UpdatedAt = order.CreatedAt
	u.state.orders[order.ID] = *order
	return nil
}

func (u *memUOW) InsertOrderLine(_ context.Context, line *domain.OrderLine) error {
	if err := u.fail("InsertOrderLine"); err != nil {
		return err
	}
	u.state.nextLineID++
	line.ID = u.state.nextLineID
	u.state.orderLines = append(u.state.orderLines, *line)
	return nil
}

func (u *memUOW) GetOrderForUpdate(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := u.state.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (u *memUOW) UpdateOrderStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	o, ok := u.state.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	u.state.orders[id] = o
	return nil
}

func (u *memUOW) UpdateTrackingNumber(_ context.Context, id uuid.UUID, trackingNumber string) error {
	o, ok := u.state.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.TrackingNumber = &trackingNumber
	u.state.orders[id] = o
	return nil
}

func (u *memUOW) InsertOutboxEvent(_ context.Context, aggregateID, eventType string, payload []byte) error {
	if err := u.fail("InsertOutboxEvent"); err != nil {
		return err
	}
	u.state.outbox = append(u.state.outbox, repository.OutboxEvent{
		ID:          int64(len(u.state.outbox) + 1),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	})
	return nil
}

type mockCache struct {
	mu            sync.Mutex
	data          map[int64][]domain.CartLine
	versions      map[int64]int64
	getErr        error
	versionErr    error
	gets          int
	invalidations int
}

func newMockCache() *mockCache {
	return &mockCache{
		data:     map[int64][]domain.CartLine{},
		versions: map[int64]int64{},
	}
}

func (c *mockCache) Get(_ context.Context, userID int64) ([]domain.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	lines, ok := c.data[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return lines, nil
}

func (c *mockCache) Version(_ context.Context, userID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versionErr != nil {
		return 0, c.versionErr
	}
	return c.versions[userID], nil
}

func (c *mockCache) Set(_ context.Context, userID, version int64, lines []domain.CartLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return cache.ErrStaleVersion
	}
	c.data[userID] = lines
	return nil
}

func (c *mockCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	c.versions[userID]++
	delete(c.data, userID)
	return nil
}

func (c *mockCache) cached(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[userID]
	return ok
}

type countingRepo struct {
	*memStore
	mu    sync.Mutex
	lists int
	gate  chan struct{}
}

func (r *countingRepo) ListCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	if r.gate != nil {
		<-r.gate
	}
	return r.memStore.ListCartLines(ctx, userID)
}

// slowReadRepo takes its snapshot on the first ListCartLines call, then holds
// the result until release is closed. Later calls go straight through.
type slowReadRepo struct {
	*memStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newSlowReadRepo(store *memStore) *slowReadRepo {
	return &slowReadRepo{
		memStore: store,
		read:     make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (r *slowReadRepo) ListCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	first := false
	r.once.Do(func() { first = true })

	lines, err := r.memStore.ListCartLines(ctx, userID)
	if first {
		close(r.read)
		<-r.release
	}
	return lines, err
}

package sync

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/chefware/backoffice/internal/domain/catalog"
	"github.com/chefware/backoffice/internal/domain/order"
	"github.com/chefware/backoffice/internal/domain/partner"
	"github.com/chefware/backoffice/internal/domain/shared"
)

// memOrderRepo is an in-memory order.Repository for pipeline tests
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*order.Order

	saveErr   error
	saveCalls int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*order.Order)}
}

func (r *memOrderRepo) Save(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, exists := r.orders[o.ID]; exists {
		return shared.ErrAlreadyExists
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) Update(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; !exists {
		return shared.ErrNotFound
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[id]
	return ok, nil
}

func (r *memOrderRepo) FindAll(_ context.Context, _ order.Filter) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]order.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memOrderRepo) ListIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.orders))
	for id := range r.orders {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memOrderRepo) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
	return nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

var _ order.Repository = (*memOrderRepo)(nil)

// memCustomerRepo is an in-memory partner.Repository for resolver tests
type memCustomerRepo struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*partner.Customer
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{customers: make(map[uuid.UUID]*partner.Customer)}
}

func (r *memCustomerRepo) Save(_ context.Context, c *partner.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.customers[c.ID] = &cp
	return nil
}

func (r *memCustomerRepo) Update(_ context.Context, c *partner.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.customers[c.ID]; !exists {
		return shared.ErrNotFound
	}
	cp := *c
	r.customers[c.ID] = &cp
	return nil
}

func (r *memCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*partner.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCustomerRepo) FindByPhone(_ context.Context, phone string) (*partner.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.Phone == phone || c.NormalizedPhone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memCustomerRepo) FindAll(_ context.Context) ([]partner.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]partner.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, *c)
	}
	return out, nil
}

func (r *memCustomerRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.customers)
}

var _ partner.Repository = (*memCustomerRepo)(nil)

// staticCatalog serves a fixed product list
type staticCatalog struct {
	products []catalog.Product
	err      error
}

func (c *staticCatalog) Products(_ context.Context) ([]catalog.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.products, nil
}

var _ ProductCatalog = (*staticCatalog)(nil)

// recordingNotifier captures alerts for assertion
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []NewOrderAlert
	unread int
}

func (n *recordingNotifier) NotifyNewOrder(_ context.Context, alert NewOrderAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func (n *recordingNotifier) IncrementUnread(_ context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unread++
}

func (n *recordingNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

var _ Notifier = (*recordingNotifier)(nil)

// Package memory is a map-backed repository.Store for tests and local runs.
// Transactions snapshot every table and restore it when fn fails.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/qbcart/internal/model"
	"github.com/flicky/qbcart/internal/repository"
)

type tables struct {
	users     map[uuid.UUID]model.User
	products  map[uuid.UUID]model.Product
	carts     map[uuid.UUID]model.CartLine
	orders    map[uuid.UUID]model.Order
	activity  map[uuid.UUID]model.ActivityLogEntry
	schedules map[string]model.Schedule
	base      time.Time
	seq       int64
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	return &tables{
		users:     cloneMap(t.users),
		products:  cloneMap(t.products),
		carts:     cloneMap(t.carts),
		orders:    cloneMap(t.orders),
		activity:  cloneMap(t.activity),
		schedules: cloneMap(t.schedules),
		base:      t.base,
		seq:       t.seq,
	}
}

type Store struct {
	mu     *sync.Mutex
	data   *tables
	faults map[string]error
	inTx   bool

	// FailTx, when set, is returned by InTx before fn runs.
	FailTx error
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		mu:     &sync.Mutex{},
		faults: map[string]error{},
		data:   &tables{
			users:     map[uuid.UUID]model.User{},
			products:  map[uuid.UUID]model.Product{},
			carts:     map[uuid.UUID]model.CartLine{},
			orders:    map[uuid.UUID]model.Order{},
			activity:  map[uuid.UUID]model.ActivityLogEntry{},
			schedules: map[string]model.Schedule{},
			base:      time.Now().UTC(),
		},
	}
}

// InTx serialises transactions on the store mutex.
func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if s.FailTx != nil {
		return s.FailTx
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&Store{mu: s.mu, data: s.data, faults: s.faults, inTx: true}); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

// FailOn makes the named operation, e.g. "orders.MarkPlaced", return err.
// A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	defer s.lock()()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error { return s.faults[op] }

// lock is a no-op inside a transaction, which already holds the mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// tick returns a strictly increasing timestamp so orderings are stable.
func (s *Store) tick() time.Time {
	s.data.seq++
	return s.data.base.Add(time.Duration(s.data.seq) * time.Microsecond)
}

func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Products() repository.ProductRepository { return productRepo{s} }
func (s *Store) Carts() repository.CartRepository { return cartRepo{s} }
func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }
func (s *Store) Activity() repository.ActivityRepository { return activityRepo{s} }
func (s *Store) Schedules() repository.ScheduleRepository { return scheduleRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.users {
		if existing.Username == u.Username {
			return errDuplicate("users.username")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = r.s.tick()
	u.UpdatedAt = u.CreatedAt
	if u.Role == "" {
		u.Role = model.RoleBuyer
	}
	r.s.data.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	defer r.s.lock()()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r userRepo) List(_ context.Context) ([]model.User, error) {
	defer r.s.lock()()
	users := make([]model.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (r userRepo) Update(_ context.Context, u *model.User) error {
	defer r.s.lock()()
	existing, ok := r.s.data.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = existing.Password
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = r.s.tick()
	r.s.data.users[u.ID] = *u
	return nil
}

func (r userRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.data.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.users, id)
	for pid, p := range r.s.data.products {
		if p.OwnerID == id {
			r.s.deleteProduct(pid)
		}
	}
	for cid, c := range r.s.data.carts {
		if c.UserID == id {
			delete(r.s.data.carts, cid)
		}
	}
	for oid, o := range r.s.data.orders {
		if o.UserID == id {
			delete(r.s.data.orders, oid)
		}
	}
	return nil
}

func (s *Store) deleteProduct(id uuid.UUID) {
	delete(s.data.products, id)
	for cid, c := range s.data.carts {
		if c.ProductID == id {
			delete(s.data.carts, cid)
		}
	}
	for oid, o := range s.data.orders {
		if o.ProductID == id {
			delete(s.data.orders, oid)
		}
	}
}

type productRepo struct{ s *Store }

func (r productRepo) Create(_ context.Context, p *model.Product) error {
	defer r.s.lock()()
	p.ID = uuid.New()
	p.CreatedAt = r.s.tick()
	p.UpdatedAt = p.CreatedAt
	r.s.data.products[p.ID] = *p
	return nil
}

func (r productRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	defer r.s.lock()()
	p, ok := r.s.data.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r productRepo) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int, error) {
	defer r.s.lock()()
	search := strings.ToLower(f.Search)
	var matched []model.Product
	for _, p := range r.s.data.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if f.Category != 0 && p.Category != f.Category {
			continue
		}
		if f.OwnerID != uuid.Nil && p.OwnerID != f.OwnerID {
			continue
		}
		matched = append(matched, p)
	}

	less := func(a, b model.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch f.Sort {
	case "name":
		less = func(a, b model.Product) bool { return a.Name < b.Name }
	case "cost":
		less = func(a, b model.Product) bool { return a.Cost.LessThan(b.Cost) }
	}
	desc := f.Order != "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r productRepo) Update(_ context.Context, p *model.Product) error {
	defer r.s.lock()()
	existing, ok := r.s.data.products[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.OwnerID = existing.OwnerID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = r.s.tick()
	r.s.data.products[p.ID] = *p
	return nil
}

func (r productRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.data.products[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.deleteProduct(id)
	return nil
}

type cartRepo struct{ s *Store }

func (r cartRepo) Create(_ context.Context, l *model.CartLine) error {
	defer r.s.lock()()
	l.ID = uuid.New()
	if l.Status == "" {
		l.Status = model.CartInOrder
	}
	l.Version = 1
	l.CreatedAt = r.s.tick()
	l.UpdatedAt = l.CreatedAt
	r.s.data.carts[l.ID] = *l
	return nil
}

func (r cartRepo) GetByID(_ context.Context, id uuid.UUID) (*model.CartLine, error) {
	defer r.s.lock()()
	l, ok := r.s.data.carts[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r cartRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.CartLine, error) {
	return r.GetByID(ctx, id)
}

func (r cartRepo) FindByUserProduct(_ context.Context, userID, productID uuid.UUID) (*model.CartLine, error) {
	defer r.s.lock()()
	lines := r.s.filterCarts(func(l model.CartLine) bool { return l.UserID == userID && l.ProductID == productID })
	if len(lines) == 0 {
		return nil, nil
	}
	return &lines[0], nil
}

func (s *Store) filterCarts(keep func(model.CartLine) bool) []model.CartLine {
	var out []model.CartLine
	for _, l := range s.data.carts {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r cartRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	defer r.s.lock()()
	return r.s.filterCarts(func(l model.CartLine) bool { return l.UserID == userID }), nil
}

func (r cartRepo) LockByUserStatus(_ context.Context, userID uuid.UUID, status model.CartStatus) ([]model.CartLine, error) {
	defer r.s.lock()()
	return r.s.filterCarts(func(l model.CartLine) bool { return l.UserID == userID && l.Status == status }), nil
}

func (r cartRepo) UpdateQuantity(_ context.Context, id uuid.UUID, quantity, expectedVersion int) (*model.CartLine, error) {
	defer r.s.lock()()
	l, ok := r.s.data.carts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if expectedVersion != 0 && l.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	l.Quantity = quantity
	l.Version++
	l.UpdatedAt = r.s.tick()
	r.s.data.carts[id] = l
	return &l, nil
}

func (r cartRepo) SetStatus(_ context.Context, id uuid.UUID, status model.CartStatus) error {
	defer r.s.lock()()
	l, ok := r.s.data.carts[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Status = status
	l.Version++
	l.UpdatedAt = r.s.tick()
	r.s.data.carts[id] = l
	return nil
}

func (r cartRepo) SetStatusByUserProduct(_ context.Context, userID, productID uuid.UUID, status model.CartStatus) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, l := range r.s.data.carts {
		if l.UserID == userID && l.ProductID == productID {
			l.Status = status
			l.Version++
			r.s.data.carts[id] = l
			n++
		}
	}
	return n, nil
}

func (r cartRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.data.carts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.carts, id)
	return nil
}

func (r cartRepo) DeleteByUserStatus(_ context.Context, userID uuid.UUID, status model.CartStatus) (int64, error) {
	defer r.s.lock()()
	if err := r.s.fault("carts.DeleteByUserStatus"); err != nil {
		return 0, err
	}
	var n int64
	for id, l := range r.s.data.carts {
		if l.UserID == userID && l.Status == status {
			delete(r.s.data.carts, id)
			n++
		}
	}
	return n, nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) UpsertDraft(_ context.Context, o *model.Order) (bool, error) {
	defer r.s.lock()()
	if err := r.s.fault("orders.UpsertDraft"); err != nil {
		return false, err
	}
	for id, existing := range r.s.data.orders {
		if existing.UserID == o.UserID && existing.ProductID == o.ProductID && existing.Status == model.OrderStatusNotPlaced {
			existing.Quantity = o.Quantity
			existing.Price = o.Price
			r.s.data.orders[id] = existing
			*o = existing
			return false, nil
		}
	}
	o.ID = uuid.New()
	o.OrderDate = r.s.tick()
	o.Status = model.OrderStatusNotPlaced
	r.s.data.orders[o.ID] = *o
	return true, nil
}

func (r orderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	defer r.s.lock()()
	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r orderRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.GetByID(ctx, id)
}

func (s *Store) filterOrders(keep func(model.Order) bool) []model.Order {
	var out []model.Order
	for _, o := range s.data.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.Before(out[j].OrderDate) })
	return out
}

func (r orderRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	defer r.s.lock()()
	orders := r.s.filterOrders(func(o model.Order) bool { return o.UserID == userID })
	for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
		orders[i], orders[j] = orders[j], orders[i]
	}
	return orders, nil
}

func (r orderRepo) ListByUserStatus(_ context.Context, userID uuid.UUID, status model.OrderStatus) ([]model.Order, error) {
	defer r.s.lock()()
	return r.s.filterOrders(func(o model.Order) bool { return o.UserID == userID && o.Status == status }), nil
}

func (r orderRepo) LockByUserStatus(ctx context.Context, userID uuid.UUID, status model.OrderStatus) ([]model.Order, error) {
	return r.ListByUserStatus(ctx, userID, status)
}

func (r orderRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]model.Order, error) {
	defer r.s.lock()()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.s.filterOrders(func(o model.Order) bool { return want[o.ID] }), nil
}

func (r orderRepo) ListPlacedBetween(_ context.Context, start, end time.Time) ([]model.Order, error) {
	defer r.s.lock()()
	return r.s.filterOrders(func(o model.Order) bool {
		return o.PlacedAt != nil && !o.PlacedAt.Before(start) && !o.PlacedAt.After(end)
	}), nil
}

func (r orderRepo) SetStatus(_ context.Context, id uuid.UUID, status model.OrderStatus) error {
	defer r.s.lock()()
	o, ok := r.s.data.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = status
	r.s.data.orders[id] = o
	return nil
}

func (r orderRepo) MarkPlaced(_ context.Context, ids []uuid.UUID, at time.Time) error {
	defer r.s.lock()()
	if err := r.s.fault("orders.MarkPlaced"); err != nil {
		return err
	}
	for _, id := range ids {
		o, ok := r.s.data.orders[id]
		if !ok || o.Status != model.OrderStatusNotPlaced {
			continue
		}
		placed := at
		o.Status = model.OrderStatusPlaced
		o.PlacedAt = &placed
		r.s.data.orders[id] = o
	}
	return nil
}

func (r orderRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.data.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.orders, id)
	return nil
}

type activityRepo struct{ s *Store }

func (r activityRepo) Create(_ context.Context, e *model.ActivityLogEntry) error {
	defer r.s.lock()()
	if err := r.s.fault("activity.Create"); err != nil {
		return err
	}
	e.ID = uuid.New()
	e.CreatedAt = r.s.tick()
	r.s.data.activity[e.ID] = *e
	return nil
}

func (r activityRepo) List(_ context.Context, limit, offset int) ([]model.ActivityLogEntry, int, error) {
	defer r.s.lock()()
	entries := make([]model.ActivityLogEntry, 0, len(r.s.data.activity))
	for _, e := range r.s.data.activity {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	total := len(entries)
	if limit <= 0 {
		limit = 50
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return entries[offset:end], total, nil
}

func (r activityRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.data.activity[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.activity, id)
	return nil
}

type scheduleRepo struct{ s *Store }

func (r scheduleRepo) GetByName(_ context.Context, name string) (*model.Schedule, error) {
	defer r.s.lock()()
	sc, ok := r.s.data.schedules[name]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (r scheduleRepo) CreateIfAbsent(_ context.Context, sc *model.Schedule) (bool, error) {
	defer r.s.lock()()
	if _, ok := r.s.data.schedules[sc.Name]; ok {
		return false, nil
	}
	sc.ID = uuid.New()
	sc.UpdatedAt = r.s.tick()
	r.s.data.schedules[sc.Name] = *sc
	return true, nil
}

func (r scheduleRepo) Update(_ context.Context, sc *model.Schedule) error {
	defer r.s.lock()()
	existing, ok := r.s.data.schedules[sc.Name]
	if !ok {
		return repository.ErrNotFound
	}
	sc.ID = existing.ID
	sc.UpdatedAt = r.s.tick()
	r.s.data.schedules[sc.Name] = *sc
	return nil
}

func (r scheduleRepo) List(_ context.Context) ([]model.Schedule, error) {
	defer r.s.lock()()
	out := make([]model.Schedule, 0, len(r.s.data.schedules))
	for _, sc := range r.s.data.schedules {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type errDuplicate string

func (e errDuplicate) Error() string { return "duplicate key: " + string(e) }

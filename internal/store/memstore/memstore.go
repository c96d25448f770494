// Package memstore is an in-memory store.Store used by tests and by
// `serve --store memory`. A transaction excludes every other caller while it
// runs and is rolled back from a snapshot when fn fails.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/models"
	"shop_back_end/internal/store"
)

type Store struct {
	mu sync.RWMutex

	users      map[primitive.ObjectID]models.User
	categories map[primitive.ObjectID]models.Category
	products   map[primitive.ObjectID]models.Product
	cart       map[primitive.ObjectID]models.CartItem
	orders     map[primitive.ObjectID]models.Order
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      map[primitive.ObjectID]models.User{},
		categories: map[primitive.ObjectID]models.Category{},
		products:   map[primitive.ObjectID]models.Product{},
		cart:       map[primitive.ObjectID]models.CartItem{},
		orders:     map[primitive.ObjectID]models.Order{},
	}
}

func (s *Store) Users() store.Users           { return users{s} }
func (s *Store) Categories() store.Categories { return categories{s} }
func (s *Store) Products() store.Products     { return products{s} }
func (s *Store) Cart() store.Cart             { return cart{s} }
func (s *Store) Orders() store.Orders         { return orders{s} }

func (s *Store) EnsureIndexes(context.Context) error { return nil }
func (s *Store) Ping(context.Context) error          { return nil }
func (s *Store) Close(context.Context) error         { return nil }

type snapshot struct {
	users      map[primitive.ObjectID]models.User
	categories map[primitive.ObjectID]models.Category
	products   map[primitive.ObjectID]models.Product
	cart       map[primitive.ObjectID]models.CartItem
	orders     map[primitive.ObjectID]models.Order
}

type txKey struct{}

// inTx reports whether ctx belongs to a transaction of s, which already
// holds s.mu.
func (s *Store) inTx(ctx context.Context) bool {
	tx, _ := ctx.Value(txKey{}).(*Store)
	return tx == s
}

func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// WithTransaction holds the write lock for the whole of fn, so the snapshot
// restored on failure contains nothing but fn's own writes. fn must use the
// context it is given; calls made with any other context block until the
// transaction ends.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		users:      cloneMap(s.users),
		categories: cloneMap(s.categories),
		products:   cloneMap(s.products),
		cart:       cloneMap(s.cart),
		orders:     cloneMap(s.orders),
	}
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.users, s.categories, s.products, s.cart, s.orders =
			snap.users, snap.categories, snap.products, snap.cart, snap.orders
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func ensureID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func lessID(a, b primitive.ObjectID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// --- users ---

type users struct{ s *Store }

func (r users) Create(ctx context.Context, user *models.User) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return &store.DuplicateError{Field: "email"}
		}
		if existing.Username == user.Username {
			return &store.DuplicateError{Field: "username"}
		}
	}
	ensureID(&user.ID)
	r.s.users[user.ID] = *user
	return nil
}

func (r users) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	defer r.s.rlock(ctx)()

	user, ok := r.s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findBy(ctx, func(u models.User) bool { return u.Email == email })
}

func (r users) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findBy(ctx, func(u models.User) bool { return u.Username == username })
}

func (r users) findBy(ctx context.Context, match func(models.User) bool) (models.User, error) {
	defer r.s.rlock(ctx)()

	for _, user := range r.s.users {
		if match(user) {
			return user, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (r users) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	defer r.s.rlock(ctx)()

	out := make(map[primitive.ObjectID]models.User, len(ids))
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (r users) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error {
	defer r.s.lock(ctx)()

	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = hash
	user.UpdatedAt = at
	r.s.users[id] = user
	return nil
}

// --- categories ---

type categories struct{ s *Store }

func (r categories) Create(ctx context.Context, category *models.Category) error {
	defer r.s.lock(ctx)()

	ensureID(&category.ID)
	r.s.categories[category.ID] = *category
	return nil
}

func (r categories) FindByID(ctx context.Context, id primitive.ObjectID) (models.Category, error) {
	defer r.s.rlock(ctx)()

	category, ok := r.s.categories[id]
	if !ok {
		return models.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r categories) List(ctx context.Context) ([]models.Category, error) {
	defer r.s.rlock(ctx)()

	out := make([]models.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

func (r categories) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.categories, id)
	return nil
}

// --- products ---

type products struct{ s *Store }

func (r products) Create(ctx context.Context, product *models.Product) error {
	defer r.s.lock(ctx)()

	ensureID(&product.ID)
	r.s.products[product.ID] = *product
	return nil
}

func (r products) FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	defer r.s.rlock(ctx)()

	product, ok := r.s.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	return product, nil
}

func (r products) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	defer r.s.rlock(ctx)()

	out := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r products) List(ctx context.Context) ([]models.Product, error) {
	return r.filter(ctx, func(models.Product) bool { return true }), nil
}

func (r products) Search(ctx context.Context, query string) ([]models.Product, error) {
	q := strings.ToLower(query)
	return r.filter(ctx, func(p models.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q)
	}), nil
}

func (r products) filter(ctx context.Context, match func(models.Product) bool) []models.Product {
	defer r.s.rlock(ctx)()

	out := make([]models.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

func (r products) Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch, at time.Time) (models.Product, error) {
	defer r.s.lock(ctx)()

	product, ok := r.s.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	patch.Apply(&product)
	product.UpdatedAt = at
	r.s.products[id] = product
	return product, nil
}

func (r products) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

func (r products) DeleteAll(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()

	n := int64(len(r.s.products))
	r.s.products = map[primitive.ObjectID]models.Product{}
	return n, nil
}

func (r products) CountByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	defer r.s.rlock(ctx)()

	var n int64
	for _, p := range r.s.products {
		if p.Category == categoryID {
			n++
		}
	}
	return n, nil
}

// --- cart ---

type cart struct{ s *Store }

func (r cart) Insert(ctx context.Context, item *models.CartItem) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.cart {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			return &store.DuplicateError{Field: "product_id"}
		}
	}
	ensureID(&item.ID)
	r.s.cart[item.ID] = *item
	return nil
}

func (r cart) FindItem(ctx context.Context, userID, productID primitive.ObjectID) (models.CartItem, error) {
	defer r.s.rlock(ctx)()

	for _, item := range r.s.cart {
		if item.UserID == userID && item.ProductID == productID {
			return item, nil
		}
	}
	return models.CartItem{}, store.ErrNotFound
}

func (r cart) AddQuantity(ctx context.Context, id primitive.ObjectID, delta int, at time.Time) (models.CartItem, error) {
	defer r.s.lock(ctx)()

	item, ok := r.s.cart[id]
	if !ok {
		return models.CartItem{}, store.ErrNotFound
	}
	item.Quantity += delta
	item.UpdatedAt = at
	r.s.cart[id] = item
	return item, nil
}

func (r cart) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	defer r.s.rlock(ctx)()

	out := []models.CartItem{}
	for _, item := range r.s.cart {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

func (r cart) DeleteItem(ctx context.Context, userID, itemID primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	item, ok := r.s.cart[itemID]
	if !ok || item.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.s.cart, itemID)
	return nil
}

func (r cart) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, item := range r.s.cart {
		if item.UserID == userID {
			delete(r.s.cart, id)
			n++
		}
	}
	return n, nil
}

// --- orders ---

type orders struct{ s *Store }

func (r orders) Create(ctx context.Context, order *models.Order) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.orders {
		if existing.OrderNumber == order.OrderNumber {
			return &store.DuplicateError{Field: "order_number"}
		}
	}
	ensureID(&order.ID)
	r.s.orders[order.ID] = *order
	return nil
}

func (r orders) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	defer r.s.rlock(ctx)()

	order, ok := r.s.orders[id]
	if !ok {
		return models.Order{}, store.ErrNotFound
	}
	return order, nil
}

func (r orders) FindByNumber(ctx context.Context, number string) (models.Order, error) {
	defer r.s.rlock(ctx)()

	for _, order := range r.s.orders {
		if order.OrderNumber == number {
			return order, nil
		}
	}
	return models.Order{}, store.ErrNotFound
}

func (r orders) NumberExists(ctx context.Context, number string) (bool, error) {
	_, err := r.FindByNumber(ctx, number)
	if err == store.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r orders) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	defer r.s.rlock(ctx)()

	out := []models.Order{}
	for _, order := range r.s.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, order)
	}

	newestFirst := func(a, b models.Order) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return lessID(b.ID, a.ID)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.SortBy {
		case models.SortOldest:
			return newestFirst(b, a)
		case models.SortStatus:
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		}
		return newestFirst(a, b)
	})
	return out, nil
}

func (r orders) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, notes *string, at time.Time) error {
	defer r.s.lock(ctx)()

	order, ok := r.s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	if order.Status != from {
		return store.ErrStatusChanged
	}
	order.Status = to
	if notes != nil {
		order.Notes = notes
	}
	order.UpdatedAt = at
	r.s.orders[id] = order
	return nil
}

package usecase_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

// =====================
// in-memory store（WithinTxはスナップショットで巻き戻す）
// =====================

type memData struct {
	books        map[int64]model.Book
	pickupPoints map[int64]model.PickupPoint
	users        map[int64]model.User
	carts        map[int64]model.Cart
	cartItems    map[int64]model.CartItem
	orders       map[int64]model.Order
	orderItems   map[int64]model.OrderItem
	movements    []model.StockMovement
	audits       []model.AuditLog
	nextID       int64
}

func (d memData) clone() memData {
	out := d
	out.books = cloneMap(d.books)
	out.pickupPoints = cloneMap(d.pickupPoints)
	out.users = cloneMap(d.users)
	out.carts = cloneMap(d.carts)
	out.cartItems = cloneMap(d.cartItems)
	out.orders = cloneMap(d.orders)
	out.orderItems = cloneMap(d.orderItems)
	out.movements = append([]model.StockMovement(nil), d.movements...)
	out.audits = append([]model.AuditLog(nil), d.audits...)
	return out
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memStore struct {
	txMu sync.Mutex // Txを直列化（行ロックの代わり）
	mu   sync.Mutex // データ本体
	d    memData

	// 失敗の注入
	failRelease    error
	failOrderSave  map[int64]error
	failAuditWrite error
	txCalls        int
}

func newMemStore() *memStore {
	return &memStore{
		d: memData{
			books:        map[int64]model.Book{},
			pickupPoints: map[int64]model.PickupPoint{},
			users:        map[int64]model.User{},
			carts:        map[int64]model.Cart{},
			cartItems:    map[int64]model.CartItem{},
			orders:       map[int64]model.Order{},
			orderItems:   map[int64]model.OrderItem{},
			nextID:       1000,
		},
		failOrderSave: map[int64]error{},
	}
}

func (s *memStore) id() int64 {
	s.d.nextID++
	return s.d.nextID
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.txCalls++
	snap := s.d.clone()
	s.mu.Unlock()

	if err := fn(s.repos()); err != nil {
		s.mu.Lock()
		s.d = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

type memRepos struct{ s *memStore }

func (s *memStore) repos() memRepos { return memRepos{s: s} }

func (r memRepos) Orders() repo.OrderRepository             { return memOrders{r.s} }
func (r memRepos) OrderItems() repo.OrderItemRepository     { return memOrderItems{r.s} }
func (r memRepos) Carts() repo.CartRepository               { return memCarts{r.s} }
func (r memRepos) CartItems() repo.CartItemRepository       { return memCartItems{r.s} }
func (r memRepos) Inventory() repo.InventoryLedger          { return memInventory{r.s} }
func (r memRepos) Books() repo.BookRepository               { return memBooks{r.s} }
func (r memRepos) PickupPoints() repo.PickupPointRepository { return memPickupPoints{r.s} }
func (r memRepos) AuditLogs() repo.AuditLogRepository       { return memAudits{r.s} }

func (s *memStore) Users() repo.UserRepository { return memUsers{s} }

// =====================
// seed / 参照ヘルパー
// =====================

func (s *memStore) addBook(title string, price string, discount string, rental string, stock int64) model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := model.Book{
		ID:              s.id(),
		Title:           title,
		AuthorName:      "author of " + title,
		PurchasePrice:   decimal.RequireFromString(price),
		DiscountPercent: decimal.RequireFromString(discount),
		RentalPrice:     decimal.RequireFromString(rental),
		StockQuantity:   stock,
	}
	s.d.books[b.ID] = b
	return b
}

func (s *memStore) addPickupPoint(name string, active bool) model.PickupPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.PickupPoint{ID: s.id(), Name: name, Address: name + " street", IsActive: active}
	s.d.pickupPoints[p.ID] = p
	return p
}

func (s *memStore) addUser(email string, role model.Role, pp *int64) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{ID: s.id(), Email: email, Role: role, PickupPointID: pp, IsActive: true}
	s.d.users[u.ID] = u
	return u
}

// 注文を直接作る（明細はPENDING、在庫は確保済みとして扱う）
func (s *memStore) addOrder(o model.Order, items ...model.OrderItem) (model.Order, []model.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.id()
	if o.TotalPrice.IsZero() {
		o.TotalPrice = decimal.NewFromInt(10)
	}
	s.d.orders[o.ID] = o
	out := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		it.ID = s.id()
		it.OrderID = o.ID
		if it.ItemStatus == "" {
			it.ItemStatus = model.ItemStatusPending
		}
		if it.Type == "" {
			it.Type = model.ItemTypeBuy
		}
		s.d.orderItems[it.ID] = it
		out = append(out, it)
	}
	return o, out
}

func (s *memStore) stock(bookID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.books[bookID].StockQuantity
}

func (s *memStore) order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.orders[id]
}

func (s *memStore) item(id int64) model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.orderItems[id]
}

func (s *memStore) itemsOf(orderID int64) []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listItemsLocked(orderID)
}

func (s *memStore) listItemsLocked(orderID int64) []model.OrderItem {
	var out []model.OrderItem
	for _, it := range s.d.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.orders)
}

func (s *memStore) cartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.carts)
}

func (s *memStore) movements() []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StockMovement(nil), s.d.movements...)
}

func (s *memStore) audits() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.d.audits...)
}

func paginate[T any](xs []T, page, limit int) []T {
	if page < 1 || limit < 1 {
		return []T{}
	}
	start := (page - 1) * limit
	if start >= len(xs) {
		return []T{}
	}
	end := start + limit
	if end > len(xs) {
		end = len(xs)
	}
	return xs[start:end]
}

// =====================
// Books / PickupPoints / Users
// =====================

type memBooks struct{ s *memStore }

func (r memBooks) FindByID(ctx context.Context, id int64) (model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.d.books[id]
	if !ok {
		return model.Book{}, repo.ErrNotFound
	}
	return b, nil
}

func (r memBooks) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[int64]model.Book{}
	for _, id := range ids {
		if b, ok := r.s.d.books[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

type memPickupPoints struct{ s *memStore }

func (r memPickupPoints) FindByID(ctx context.Context, id int64) (model.PickupPoint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.pickupPoints[id]
	if !ok {
		return model.PickupPoint{}, repo.ErrNotFound
	}
	return p, nil
}

func (r memPickupPoints) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.PickupPoint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[int64]model.PickupPoint{}
	for _, id := range ids {
		if p, ok := r.s.d.pickupPoints[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type memUsers struct{ s *memStore }

func (r memUsers) FindByID(ctx context.Context, id int64) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r memUsers) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[int64]model.User{}
	for _, id := range ids {
		if u, ok := r.s.d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// =====================
// Inventory
// =====================

type memInventory struct{ s *memStore }

func (r memInventory) Reserve(ctx context.Context, bookID int64, qty int64, ref repo.StockRef) error {
	if qty < 1 {
		return errors.New("qty must be >= 1")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.d.books[bookID]
	if !ok {
		return repo.ErrNotFound
	}
	if b.StockQuantity < qty {
		return repo.ErrOutOfStock
	}
	b.StockQuantity -= qty
	r.s.d.books[bookID] = b
	r.s.d.movements = append(r.s.d.movements, model.StockMovement{BookID: bookID, Delta: -qty, Reason: ref.Reason, OrderID: ref.OrderID})
	return nil
}

func (r memInventory) Release(ctx context.Context, bookID int64, qty int64, ref repo.StockRef) error {
	if qty < 1 {
		return errors.New("qty must be >= 1")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failRelease != nil {
		return r.s.failRelease
	}
	b, ok := r.s.d.books[bookID]
	if !ok {
		return repo.ErrNotFound
	}
	b.StockQuantity += qty
	r.s.d.books[bookID] = b
	r.s.d.movements = append(r.s.d.movements, model.StockMovement{BookID: bookID, Delta: qty, Reason: ref.Reason, OrderID: ref.OrderID})
	return nil
}

// =====================
// Carts / CartItems
// =====================

type memCarts struct{ s *memStore }

func (r memCarts) findLocked(userID int64) (model.Cart, bool) {
	for _, c := range r.s.d.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return model.Cart{}, false
}

func (r memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.findLocked(userID)
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return c, nil
}

func (r memCarts) GetOrCreateForUpdate(ctx context.Context, userID int64) (model.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.findLocked(userID); ok {
		return c, nil
	}
	c := model.Cart{ID: r.s.id(), UserID: userID}
	r.s.d.carts[c.ID] = c
	return c, nil
}

func (r memCarts) FindByUserIDForUpdate(ctx context.Context, userID int64) (model.Cart, error) {
	return r.FindByUserID(ctx, userID)
}

func (r memCarts) Touch(ctx context.Context, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.d.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	r.s.d.carts[cartID] = c
	return nil
}

func (r memCarts) Delete(ctx context.Context, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.carts, cartID)
	for id, it := range r.s.d.cartItems {
		if it.CartID == cartID {
			delete(r.s.d.cartItems, id)
		}
	}
	return nil
}

type memCartItems struct{ s *memStore }

func (r memCartItems) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.CartItem{}
	for _, it := range r.s.d.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

func (r memCartItems) CountByCartID(ctx context.Context, cartID int64) (int64, error) {
	items, _ := r.ListByCartID(ctx, cartID)
	return int64(len(items)), nil
}

func (r memCartItems) CountByCartAndBook(ctx context.Context, cartID int64, bookID int64) (int64, error) {
	items, _ := r.ListByCartID(ctx, cartID)
	var n int64
	for _, it := range items {
		if it.BookID == bookID {
			n++
		}
	}
	return n, nil
}

func (r memCartItems) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item.ID = r.s.id()
	r.s.d.cartItems[item.ID] = item
	return item, nil
}

func (r memCartItems) FindByID(ctx context.Context, id int64) (model.CartItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.d.cartItems[id]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (r memCartItems) DeleteByID(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.cartItems, id)
	return nil
}

// =====================
// Orders / OrderItems
// =====================

type memOrders struct{ s *memStore }

func (r memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.d.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, id int64) (model.Order, error) {
	return r.FindByID(ctx, id)
}

func (r memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.id()
	r.s.d.orders[o.ID] = o
	return o.ID, nil
}

func (r memOrders) Save(ctx context.Context, o model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failOrderSave[o.ID]; err != nil {
		return err
	}
	if _, ok := r.s.d.orders[o.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.d.orders[o.ID] = o
	return nil
}

func (r memOrders) sortedLocked(filter func(model.Order) bool, asc bool) []model.Order {
	var out []model.Order
	for _, o := range r.s.d.orders {
		if filter(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if asc {
				return out[i].ID < out[j].ID
			}
			return out[i].ID > out[j].ID
		}
		if asc {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.sortedLocked(func(o model.Order) bool { return o.UserID == userID }, false)
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r memOrders) ListStaff(ctx context.Context, f repo.StaffOrderListFilter) ([]model.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.sortedLocked(func(o model.Order) bool {
		if f.OrderID != nil && o.ID != *f.OrderID {
			return false
		}
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.PickupPointID != nil && o.PickupPointID != *f.PickupPointID {
			return false
		}
		if f.Email != "" {
			u := r.s.d.users[o.UserID]
			if !strings.Contains(strings.ToLower(u.Email), strings.ToLower(f.Email)) {
				return false
			}
		}
		return true
	}, f.SortDirection == "asc")
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r memOrders) ListExpiredPickupIDs(ctx context.Context, createdBefore time.Time) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.sortedLocked(func(o model.Order) bool {
		return o.Status.IsReadyForPickup() && o.CreatedAt.Before(createdBefore)
	}, true)
	ids := make([]int64, 0, len(all))
	for _, o := range all {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (r memOrders) CountByUserAndStatuses(ctx context.Context, userID int64, statuses []model.OrderStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, o := range r.s.d.orders {
		if o.UserID != userID {
			continue
		}
		for _, st := range statuses {
			if o.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

type memOrderItems struct{ s *memStore }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range items {
		it.ID = r.s.id()
		it.OrderID = orderID
		r.s.d.orderItems[it.ID] = it
	}
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listItemsLocked(orderID), nil
}

func (r memOrderItems) FindByID(ctx context.Context, id int64) (model.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.d.orderItems[id]
	if !ok {
		return model.OrderItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (r memOrderItems) Save(ctx context.Context, it model.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.orderItems[it.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.d.orderItems[it.ID] = it
	return nil
}

func (r memOrderItems) CountByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[int64]int64{}
	for _, id := range orderIDs {
		out[id] = int64(len(r.s.listItemsLocked(id)))
	}
	return out, nil
}

func (r memOrderItems) ListOverdueRentalIDs(ctx context.Context, now time.Time) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for _, it := range r.s.d.orderItems {
		if it.Type == model.ItemTypeRent && it.ItemStatus == model.ItemStatusRented &&
			it.RentalEndAt != nil && it.RentalEndAt.Before(now) {
			ids = append(ids, it.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memOrderItems) ListRentalsByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.OrderItem, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.OrderItem
	for _, it := range r.s.d.orderItems {
		if it.Type == model.ItemTypeRent && r.s.d.orders[it.OrderID].UserID == userID {
			all = append(all, it)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r memOrderItems) CountOverdueByUserID(ctx context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, it := range r.s.d.orderItems {
		if it.ItemStatus == model.ItemStatusOverdue && r.s.d.orders[it.OrderID].UserID == userID {
			n++
		}
	}
	return n, nil
}

// =====================
// AuditLogs
// =====================

type memAudits struct{ s *memStore }

func (r memAudits) Append(ctx context.Context, l model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failAuditWrite != nil {
		return r.s.failAuditWrite
	}
	l.ID = r.s.id()
	r.s.d.audits = append(r.s.d.audits, l)
	return nil
}

func (r memAudits) ListForOrder(ctx context.Context, orderID int64, limit int) ([]model.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.AuditLog{}
	for i := len(r.s.d.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if l := r.s.d.audits[i]; l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

// =====================
// clock
// =====================

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func timePtr(t time.Time) *time.Time {
	return &t
}

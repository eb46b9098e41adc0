package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/models"
)

// Memory is an in-memory implementation of every repository. It honours the
// same uniqueness rules as the Mongo indexes.
type Memory struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	products map[primitive.ObjectID]models.Product
	carts    map[primitive.ObjectID]models.Cart
	orders   map[primitive.ObjectID]models.Order
	jobs     map[primitive.ObjectID]models.OutboxJob
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[primitive.ObjectID]models.User),
		products: make(map[primitive.ObjectID]models.Product),
		carts:    make(map[primitive.ObjectID]models.Cart),
		orders:   make(map[primitive.ObjectID]models.Order),
		jobs:     make(map[primitive.ObjectID]models.OutboxJob),
	}
}

func (m *Memory) Users() Users       { return memoryUsers{m} }
func (m *Memory) Products() Products { return memoryProducts{m} }
func (m *Memory) Carts() Carts       { return memoryCarts{m} }
func (m *Memory) Orders() Orders     { return memoryOrders{m} }
func (m *Memory) Outbox() Outbox     { return memoryOutbox{m} }

// OrderCount reports how many orders are stored.
func (m *Memory) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Jobs returns a snapshot of all outbox jobs.
func (m *Memory) Jobs() []models.OutboxJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OutboxJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	return out
}

/* ---------- users ---------- */

type memoryUsers struct{ m *Memory }

func (r memoryUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) Create(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) SetResetOTP(_ context.Context, id primitive.ObjectID, otp string, expiry time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.ResetOTP = otp
	user.ResetOTPExpiry = &expiry
	r.m.users[id] = user
	return nil
}

func (r memoryUsers) ResetPassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetOTP = ""
	user.ResetOTPExpiry = nil
	r.m.users[id] = user
	return nil
}

/* ---------- products ---------- */

type memoryProducts struct{ m *Memory }

func (r memoryProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	product, ok := r.m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	product.Decorate()
	return &product, nil
}

func (r memoryProducts) List(_ context.Context, f ProductFilter) ([]models.Product, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	matched := make([]models.Product, 0)
	for _, p := range r.m.products {
		if f.Category != nil && p.Category != *f.Category {
			continue
		}
		if f.SubCategory != nil && (p.SubCategory == nil || *p.SubCategory != *f.SubCategory) {
			continue
		}
		if f.Featured != nil && p.Featured != *f.Featured {
			continue
		}
		if f.Bestseller != nil && p.Bestseller != *f.Bestseller {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		p.Decorate()
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	return paginate(matched, f.Page, f.Limit), total, nil
}

func (r memoryProducts) Create(_ context.Context, product *models.Product) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	product.Decorate()
	r.m.products[product.ID] = *product
	return nil
}

func (r memoryProducts) Update(_ context.Context, id primitive.ObjectID, u ProductUpdate) (*models.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.DiscountPrice != nil {
		p.DiscountPrice = *u.DiscountPrice
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.SubCategory != nil {
		sub := *u.SubCategory
		p.SubCategory = &sub
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Images != nil {
		p.Images = u.Images
	}
	if u.Featured != nil {
		p.Featured = *u.Featured
	}
	if u.Bestseller != nil {
		p.Bestseller = *u.Bestseller
	}
	if u.Sizes != nil {
		p.Sizes = u.Sizes
	}
	if u.Colors != nil {
		p.Colors = u.Colors
	}
	p.UpdatedAt = time.Now()
	p.Decorate()
	r.m.products[id] = p
	return &p, nil
}

func (r memoryProducts) Delete(_ context.Context, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.products, id)
	return nil
}

func (r memoryProducts) ReserveStock(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.m.products[id] = p
	return true, nil
}

func (r memoryProducts) ReleaseStock(_ context.Context, id primitive.ObjectID, qty int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[id]
	if !ok {
		return nil
	}
	p.Stock += qty
	r.m.products[id] = p
	return nil
}

/* ---------- carts ---------- */

type memoryCarts struct{ m *Memory }

func (r memoryCarts) FindByUser(_ context.Context, user primitive.ObjectID) (*models.Cart, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cart, ok := r.m.carts[user]
	if !ok {
		return nil, ErrNotFound
	}
	cart.Items = append([]models.CartItem(nil), cart.Items...)
	return &cart, nil
}

func (r memoryCarts) Save(_ context.Context, cart *models.Cart) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	if existing, ok := r.m.carts[cart.User]; ok {
		cart.ID = existing.ID
		cart.CreatedAt = existing.CreatedAt
	}
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	saved := *cart
	saved.Items = append([]models.CartItem(nil), cart.Items...)
	r.m.carts[cart.User] = saved
	return nil
}

func (r memoryCarts) DeleteByUser(_ context.Context, user primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.carts, user)
	return nil
}

/* ---------- orders ---------- */

type memoryOrders struct{ m *Memory }

func (r memoryOrders) Create(_ context.Context, order *models.Order) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.orders {
		if existing.OrderID == order.OrderID {
			return ErrDuplicate
		}
		if order.RazorpayOrderID != "" && existing.RazorpayOrderID == order.RazorpayOrderID {
			return ErrDuplicate
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	r.m.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r memoryOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	order, ok := r.m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyOrder(order)
	return &out, nil
}

func (r memoryOrders) find(match func(models.Order) bool) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, order := range r.m.orders {
		if match(order) {
			out := copyOrder(order)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryOrders) FindByOrderID(_ context.Context, orderID string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.OrderID == orderID })
}

func (r memoryOrders) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.RazorpayOrderID != "" && o.RazorpayOrderID == gatewayOrderID })
}

func (r memoryOrders) ListByUser(_ context.Context, user primitive.ObjectID) ([]models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.Order, 0)
	for _, order := range r.m.orders {
		if order.User == user {
			out = append(out, copyOrder(order))
		}
	}
	sortOrders(out)
	return out, nil
}

func (r memoryOrders) List(_ context.Context, f OrderFilter) ([]models.Order, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.Order, 0)
	for _, order := range r.m.orders {
		if f.OrderStatus != "" && order.OrderStatus != f.OrderStatus {
			continue
		}
		if f.PaymentStatus != "" && order.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.Unseen && order.SeenByAdmin {
			continue
		}
		out = append(out, copyOrder(order))
	}
	sortOrders(out)
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (r memoryOrders) transition(gatewayOrderID string, apply func(*models.Order)) (*models.Order, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, order := range r.m.orders {
		if order.RazorpayOrderID == "" || order.RazorpayOrderID != gatewayOrderID {
			continue
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			out := copyOrder(order)
			return &out, false, nil
		}
		apply(&order)
		order.UpdatedAt = time.Now()
		r.m.orders[id] = order
		out := copyOrder(order)
		return &out, true, nil
	}
	return nil, false, ErrNotFound
}

func (r memoryOrders) MarkPaid(_ context.Context, gatewayOrderID, paymentID string) (*models.Order, bool, error) {
	return r.transition(gatewayOrderID, func(o *models.Order) {
		o.PaymentStatus = models.PaymentStatusPaid
		o.OrderStatus = models.OrderStatusProcessing
		if paymentID != "" {
			o.RazorpayPaymentID = paymentID
		}
	})
}

func (r memoryOrders) MarkFailed(_ context.Context, gatewayOrderID string) (*models.Order, bool, error) {
	return r.transition(gatewayOrderID, func(o *models.Order) {
		o.PaymentStatus = models.PaymentStatusFailed
		o.OrderStatus = models.OrderStatusCancelled
	})
}

func (r memoryOrders) mutate(id primitive.ObjectID, apply func(*models.Order)) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	order, ok := r.m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	apply(&order)
	order.UpdatedAt = time.Now()
	r.m.orders[id] = order
	out := copyOrder(order)
	return &out, nil
}

func (r memoryOrders) UpdateStatus(_ context.Context, id primitive.ObjectID, orderStatus models.OrderStatus, paymentStatus models.PaymentStatus) (*models.Order, error) {
	return r.mutate(id, func(o *models.Order) {
		if orderStatus != "" {
			o.OrderStatus = orderStatus
		}
		if paymentStatus != "" {
			o.PaymentStatus = paymentStatus
		}
	})
}

func (r memoryOrders) SetFulfillment(_ context.Context, id primitive.ObjectID, f Fulfillment) error {
	_, err := r.mutate(id, func(o *models.Order) {
		o.ShiprocketOrderID = f.ShiprocketOrderID
		o.ShiprocketShipmentID = f.ShiprocketShipmentID
		if f.TrackingNumber != "" {
			o.TrackingNumber = f.TrackingNumber
		}
	})
	return err
}

func (r memoryOrders) MarkNotified(_ context.Context, id primitive.ObjectID, kind models.JobKind) error {
	_, err := r.mutate(id, func(o *models.Order) {
		switch kind {
		case models.JobCustomerEmail:
			o.UserEmailSent = true
		case models.JobAdminEmail:
			o.AdminEmailSent = true
		}
	})
	return err
}

func (r memoryOrders) MarkSeen(_ context.Context, id primitive.ObjectID) error {
	_, err := r.mutate(id, func(o *models.Order) { o.SeenByAdmin = true })
	return err
}

func (r memoryOrders) Delete(_ context.Context, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.orders, id)
	return nil
}

/* ---------- outbox ---------- */

type memoryOutbox struct{ m *Memory }

func (r memoryOutbox) Insert(_ context.Context, job *models.OutboxJob) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	r.m.jobs[job.ID] = *job
	return nil
}

func (r memoryOutbox) Due(_ context.Context, now, staleBefore time.Time, maxAttempts int, limit int64) ([]models.OutboxJob, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.OutboxJob, 0)
	for _, job := range r.m.jobs {
		if job.Attempts >= maxAttempts {
			continue
		}
		retry := job.Status == models.JobFailed && !job.NextAttemptAt.After(now)
		stale := job.Status == models.JobPending && !job.NextAttemptAt.After(staleBefore)
		if retry || stale {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memoryOutbox) MarkDone(_ context.Context, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	job, ok := r.m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = models.JobDone
	job.Attempts++
	job.LastError = ""
	job.UpdatedAt = time.Now()
	r.m.jobs[id] = job
	return nil
}

func (r memoryOutbox) MarkFailed(_ context.Context, id primitive.ObjectID, attempts int, lastError string, next time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	job, ok := r.m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = models.JobFailed
	job.Attempts = attempts
	job.LastError = lastError
	job.NextAttemptAt = next
	job.UpdatedAt = time.Now()
	r.m.jobs[id] = job
	return nil
}

/* ---------- helpers ---------- */

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func sortOrders(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

func paginate[T any](items []T, page, limit int64) []T {
	if page < 1 || limit < 1 {
		return items
	}
	start := (page - 1) * limit
	if start >= int64(len(items)) {
		return []T{}
	}
	end := start + limit
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[start:end]
}

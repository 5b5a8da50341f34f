package state

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

// Store is the in-memory Domain Store. Reads return copies. Every mutation
// except Restore and Clear fires the change hook once, after the lock is released.
type Store struct {
	mu       sync.RWMutex
	products []domain.Product
	sales    []domain.Sale
	clients  []domain.Client
	payments []domain.Payment
	expiries []domain.ProductExpiry

	// High-water marks keep ids from being reissued after deletion.
	lastProductID int64
	lastSaleID    int64
	lastClientID  int64
	lastPaymentID int64

	onChange func()
}

func New() *Store {
	return &Store{
		products: []domain.Product{},
		sales:    []domain.Sale{},
		clients:  []domain.Client{},
		payments: []domain.Payment{},
		expiries: []domain.ProductExpiry{},
	}
}

// OnChange registers the hook fired after local mutations.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{
		Products: slices.Clone(s.products),
		Sales:    slices.Clone(s.sales),
		Clients:  slices.Clone(s.clients),
		Payments: slices.Clone(s.payments),
	}.Normalize()
}

// Restore replaces all four collections at once. It does not fire the change
// hook: restored state came from the remote store and must not be echoed back.
func (s *Store) Restore(snap domain.Snapshot) {
	snap = snap.Normalize().Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = snap.Products
	s.sales = snap.Sales
	s.clients = snap.Clients
	s.payments = snap.Payments
	s.lastProductID = max(s.lastProductID, maxID(s.products, func(p domain.Product) int64 { return p.ID }))
	s.lastSaleID = max(s.lastSaleID, maxID(s.sales, func(v domain.Sale) int64 { return v.ID }))
	s.lastClientID = max(s.lastClientID, maxID(s.clients, func(c domain.Client) int64 { return c.ID }))
	s.lastPaymentID = max(s.lastPaymentID, maxID(s.payments, func(p domain.Payment) int64 { return p.ID }))
}

// Clear drops all local state, id high-water marks included.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = []domain.Product{}
	s.sales = []domain.Sale{}
	s.clients = []domain.Client{}
	s.payments = []domain.Payment{}
	s.expiries = []domain.ProductExpiry{}
	s.lastProductID, s.lastSaleID, s.lastClientID, s.lastPaymentID = 0, 0, 0, 0
}

func (s *Store) Expiries() []domain.ProductExpiry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.expiries)
}

// SetExpiries stores side data; it is not part of the persisted snapshot.
func (s *Store) SetExpiries(expiries []domain.ProductExpiry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiries = slices.Clone(expiries)
	if s.expiries == nil {
		s.expiries = []domain.ProductExpiry{}
	}
}

// Products

func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products)
}

func (s *Store) Product(id int64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.productIndex(id)
	if idx < 0 {
		return domain.Product{}, store.ErrNotFound
	}
	return s.products[idx], nil
}

// SetProducts replaces the product list. Negative stock or a repeated id
// rejects the whole list and leaves the store untouched.
func (s *Store) SetProducts(products []domain.Product) error {
	for _, p := range products {
		if p.Stock < 0 {
			return fmt.Errorf("%w: product %d has negative stock", store.ErrInvalidMutation, p.ID)
		}
	}
	if err := uniqueIDs("product", products, func(p domain.Product) int64 { return p.ID }); err != nil {
		return err
	}
	s.mu.Lock()
	s.products = cloneOrEmpty(products)
	s.lastProductID = max(s.lastProductID, maxID(s.products, func(p domain.Product) int64 { return p.ID }))
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *Store) AddProduct(product domain.Product) (domain.Product, error) {
	if product.Stock < 0 {
		return domain.Product{}, store.ErrInvalidMutation
	}

	s.mu.Lock()
	s.lastProductID = nextID(s.lastProductID, s.products, func(p domain.Product) int64 { return p.ID })
	product.ID = s.lastProductID
	s.products = append(s.products, product)
	s.mu.Unlock()

	s.changed()
	return product, nil
}

func (s *Store) UpdateProduct(product domain.Product) (domain.Product, error) {
	if product.Stock < 0 {
		return domain.Product{}, store.ErrInvalidMutation
	}

	s.mu.Lock()
	idx := s.productIndex(product.ID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Product{}, store.ErrNotFound
	}
	s.products[idx] = product
	s.mu.Unlock()

	s.changed()
	return product, nil
}

func (s *Store) RemoveProduct(id int64) error {
	s.mu.Lock()
	idx := s.productIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.products = slices.Delete(s.products, idx, idx+1)
	s.mu.Unlock()

	s.changed()
	return nil
}

// ReserveStock checks and decrements stock in one critical section. On error
// nothing changes.
func (s *Store) ReserveStock(id int64, qty int) (domain.Product, error) {
	if qty < 1 {
		return domain.Product{}, store.ErrInvalidMutation
	}

	s.mu.Lock()
	idx := s.productIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Product{}, store.ErrNotFound
	}
	if qty > s.products[idx].Stock {
		s.mu.Unlock()
		return domain.Product{}, store.ErrInsufficientStock
	}
	s.products[idx].Stock = max(0, s.products[idx].Stock-qty)
	updated := s.products[idx]
	s.mu.Unlock()

	s.changed()
	return updated, nil
}

// RestoreStock adds qty back. It reports false when the product no longer exists.
func (s *Store) RestoreStock(id int64, qty int) (domain.Product, bool) {
	s.mu.Lock()
	idx := s.productIndex(id)
	if idx < 0 || qty < 1 {
		s.mu.Unlock()
		return domain.Product{}, false
	}
	s.products[idx].Stock += qty
	updated := s.products[idx]
	s.mu.Unlock()

	s.changed()
	return updated, true
}

func (s *Store) productIndex(id int64) int {
	return slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == id })
}

// Sales

func (s *Store) Sales() []domain.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sales)
}

func (s *Store) Sale(id int64) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := slices.IndexFunc(s.sales, func(v domain.Sale) bool { return v.ID == id })
	if idx < 0 {
		return domain.Sale{}, store.ErrNotFound
	}
	return s.sales[idx], nil
}

func (s *Store) SetSales(sales []domain.Sale) error {
	if err := uniqueIDs("sale", sales, func(v domain.Sale) int64 { return v.ID }); err != nil {
		return err
	}
	s.mu.Lock()
	s.sales = cloneOrEmpty(sales)
	s.lastSaleID = max(s.lastSaleID, maxID(s.sales, func(v domain.Sale) int64 { return v.ID }))
	s.mu.Unlock()
	s.changed()
	return nil
}

// InsertSale assigns the next sale id and prepends the sale.
func (s *Store) InsertSale(sale domain.Sale) domain.Sale {
	s.mu.Lock()
	s.lastSaleID = nextID(s.lastSaleID, s.sales, func(v domain.Sale) int64 { return v.ID })
	sale.ID = s.lastSaleID
	s.sales = slices.Insert(s.sales, 0, sale)
	s.mu.Unlock()

	s.changed()
	return sale
}

func (s *Store) RemoveSale(id int64) (domain.Sale, error) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.sales, func(v domain.Sale) bool { return v.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return domain.Sale{}, store.ErrNotFound
	}
	removed := s.sales[idx]
	s.sales = slices.Delete(s.sales, idx, idx+1)
	s.mu.Unlock()

	s.changed()
	return removed, nil
}

// Clients

func (s *Store) Clients() []domain.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.clients)
}

func (s *Store) ClientByName(name string) (domain.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.clientNameIndex(name)
	if idx < 0 {
		return domain.Client{}, false
	}
	return s.clients[idx], true
}

func (s *Store) SetClients(clients []domain.Client) error {
	if err := uniqueIDs("client", clients, func(c domain.Client) int64 { return c.ID }); err != nil {
		return err
	}
	s.mu.Lock()
	s.clients = cloneOrEmpty(clients)
	s.lastClientID = max(s.lastClientID, maxID(s.clients, func(c domain.Client) int64 { return c.ID }))
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *Store) AddClient(client domain.Client) domain.Client {
	s.mu.Lock()
	s.lastClientID = nextID(s.lastClientID, s.clients, func(c domain.Client) int64 { return c.ID })
	client.ID = s.lastClientID
	s.clients = append(s.clients, client)
	s.mu.Unlock()

	s.changed()
	return client
}

func (s *Store) UpdateClient(client domain.Client) (domain.Client, error) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.clients, func(c domain.Client) bool { return c.ID == client.ID })
	if idx < 0 {
		s.mu.Unlock()
		return domain.Client{}, store.ErrNotFound
	}
	s.clients[idx] = client
	s.mu.Unlock()

	s.changed()
	return client, nil
}

func (s *Store) RemoveClient(id int64) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.clients, func(c domain.Client) bool { return c.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.clients = slices.Delete(s.clients, idx, idx+1)
	s.mu.Unlock()

	s.changed()
	return nil
}

// ApplyClientPurchase bumps the aggregates of the first client whose name
// matches exactly. An empty or unmatched name is a no-op and reports false.
func (s *Store) ApplyClientPurchase(name string, amountCents int64, at time.Time) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}

	s.mu.Lock()
	idx := s.clientNameIndex(name)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.clients[idx].TotalPurchases++
	s.clients[idx].TotalSpentCents += amountCents
	s.clients[idx].LastPurchase = at
	s.mu.Unlock()

	s.changed()
	return true
}

func (s *Store) clientNameIndex(name string) int {
	return slices.IndexFunc(s.clients, func(c domain.Client) bool { return c.Name == name })
}

// Payments

func (s *Store) Payments() []domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.payments)
}

func (s *Store) SetPayments(payments []domain.Payment) error {
	if err := uniqueIDs("payment", payments, func(p domain.Payment) int64 { return p.ID }); err != nil {
		return err
	}
	s.mu.Lock()
	s.payments = cloneOrEmpty(payments)
	s.lastPaymentID = max(s.lastPaymentID, maxID(s.payments, func(p domain.Payment) int64 { return p.ID }))
	s.mu.Unlock()
	s.changed()
	return nil
}

// InsertPayment assigns the next payment id and prepends the payment.
func (s *Store) InsertPayment(payment domain.Payment) domain.Payment {
	s.mu.Lock()
	s.lastPaymentID = nextID(s.lastPaymentID, s.payments, func(p domain.Payment) int64 { return p.ID })
	payment.ID = s.lastPaymentID
	s.payments = slices.Insert(s.payments, 0, payment)
	s.mu.Unlock()

	s.changed()
	return payment
}

func (s *Store) RemovePayment(id int64) (domain.Payment, error) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.payments, func(p domain.Payment) bool { return p.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return domain.Payment{}, store.ErrNotFound
	}
	removed := s.payments[idx]
	s.payments = slices.Delete(s.payments, idx, idx+1)
	s.mu.Unlock()

	s.changed()
	return removed, nil
}

func uniqueIDs[T any](kind string, items []T, id func(T) int64) error {
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		v := id(item)
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%w: duplicate %s id %d", store.ErrInvalidMutation, kind, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func nextID[T any](last int64, items []T, id func(T) int64) int64 {
	return max(last, maxID(items, id)) + 1
}

func maxID[T any](items []T, id func(T) int64) int64 {
	var out int64
	for _, item := range items {
		if v := id(item); v > out {
			out = v
		}
	}
	return out
}

func cloneOrEmpty[T any](items []T) []T {
	out := slices.Clone(items)
	if out == nil {
		out = []T{}
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/state"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

// Service is the mutation surface the UI layer calls into. Each operation
// reports its outcome through the Notifier on both paths.
type Service struct {
	store    *state.Store
	sales    *SaleService
	notifier Notifier
	now      func() time.Time
}

func New(st *state.Store, notifier Notifier) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		store:    st,
		sales:    NewSaleService(st, st, st, notifier),
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Snapshot() domain.Snapshot {
	return s.store.Snapshot()
}

func (s *Service) Expiries() []domain.ProductExpiry {
	return s.store.Expiries()
}

func (s *Service) ListProducts() []domain.Product {
	return s.store.Products()
}

func (s *Service) ListSales() []domain.Sale {
	return s.store.Sales()
}

func (s *Service) ListClients() []domain.Client {
	return s.store.Clients()
}

func (s *Service) ListPayments() []domain.Payment {
	return s.store.Payments()
}

func (s *Service) SetProducts(ctx context.Context, products []domain.Product) error {
	if err := s.store.SetProducts(products); err != nil {
		return s.fail(ctx, "set_products", err)
	}
	s.notifier.Success(ctx, "set_products", fmt.Sprintf("%d products replaced", len(products)))
	return nil
}

func (s *Service) SetSales(ctx context.Context, sales []domain.Sale) error {
	if err := s.store.SetSales(sales); err != nil {
		return s.fail(ctx, "set_sales", err)
	}
	s.notifier.Success(ctx, "set_sales", fmt.Sprintf("%d sales replaced", len(sales)))
	return nil
}

func (s *Service) SetClients(ctx context.Context, clients []domain.Client) error {
	if err := s.store.SetClients(clients); err != nil {
		return s.fail(ctx, "set_clients", err)
	}
	s.notifier.Success(ctx, "set_clients", fmt.Sprintf("%d clients replaced", len(clients)))
	return nil
}

func (s *Service) SetPayments(ctx context.Context, payments []domain.Payment) error {
	if err := s.store.SetPayments(payments); err != nil {
		return s.fail(ctx, "set_payments", err)
	}
	s.notifier.Success(ctx, "set_payments", fmt.Sprintf("%d payments replaced", len(payments)))
	return nil
}

func (s *Service) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.PriceCents < 0 || req.Stock < 0 {
		return domain.Product{}, s.fail(ctx, "add_product", store.ErrInvalidMutation)
	}

	created, err := s.store.AddProduct(domain.Product{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		return domain.Product{}, s.fail(ctx, "add_product", err)
	}
	s.notifier.Success(ctx, "add_product", fmt.Sprintf("product %d added", created.ID))
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.store.Product(id)
	if err != nil {
		return domain.Product{}, s.fail(ctx, "update_product", err)
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, s.fail(ctx, "update_product", store.ErrInvalidMutation)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, s.fail(ctx, "update_product", store.ErrInvalidMutation)
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, s.fail(ctx, "update_product", store.ErrInvalidMutation)
		}
		updated.Stock = *req.Stock
	}

	saved, err := s.store.UpdateProduct(updated)
	if err != nil {
		return domain.Product{}, s.fail(ctx, "update_product", err)
	}
	s.notifier.Success(ctx, "update_product", fmt.Sprintf("product %d updated", saved.ID))
	return saved, nil
}

func (s *Service) RemoveProduct(ctx context.Context, id int64) error {
	if err := s.store.RemoveProduct(id); err != nil {
		return s.fail(ctx, "remove_product", err)
	}
	s.notifier.Success(ctx, "remove_product", fmt.Sprintf("product %d removed", id))
	return nil
}

func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.Sale, error) {
	return s.sales.RecordSale(ctx, req)
}

func (s *Service) DeleteSale(ctx context.Context, id int64) (domain.Sale, error) {
	return s.sales.DeleteSale(ctx, id)
}

func (s *Service) AddClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.OpenInvoices < 0 {
		return domain.Client{}, s.fail(ctx, "add_client", store.ErrInvalidMutation)
	}
	if _, exists := s.store.ClientByName(name); exists {
		log.Printf("[service] WARN: client name %q already exists; aggregate updates will only reach the first", name)
	}

	now := s.now()
	joined := now
	if req.JoinDate != nil && !req.JoinDate.IsZero() {
		joined = req.JoinDate.UTC()
	}
	created := s.store.AddClient(domain.Client{
		Name:         name,
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		LastPurchase: now,
		JoinDate:     joined,
		OpenInvoices: req.OpenInvoices,
	})
	s.notifier.Success(ctx, "add_client", fmt.Sprintf("client %d added", created.ID))
	return created, nil
}

func (s *Service) UpdateClient(ctx context.Context, id int64, req domain.ClientUpdateRequest) (domain.Client, error) {
	var existing *domain.Client
	for _, c := range s.store.Clients() {
		if c.ID == id {
			found := c
			existing = &found
			break
		}
	}
	if existing == nil {
		return domain.Client{}, s.fail(ctx, "update_client", store.ErrNotFound)
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Client{}, s.fail(ctx, "update_client", store.ErrInvalidMutation)
		}
		if name != existing.Name {
			log.Printf("[service] WARN: renaming client %d from %q to %q unlinks its earlier sales and payments", id, existing.Name, name)
		}
		updated.Name = name
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.OpenInvoices != nil {
		if *req.OpenInvoices < 0 {
			return domain.Client{}, s.fail(ctx, "update_client", store.ErrInvalidMutation)
		}
		updated.OpenInvoices = *req.OpenInvoices
	}

	saved, err := s.store.UpdateClient(updated)
	if err != nil {
		return domain.Client{}, s.fail(ctx, "update_client", err)
	}
	s.notifier.Success(ctx, "update_client", fmt.Sprintf("client %d updated", saved.ID))
	return saved, nil
}

func (s *Service) RemoveClient(ctx context.Context, id int64) error {
	if err := s.store.RemoveClient(id); err != nil {
		return s.fail(ctx, "remove_client", err)
	}
	s.notifier.Success(ctx, "remove_client", fmt.Sprintf("client %d removed", id))
	return nil
}

// UpdateClientAggregate adds one purchase of amountCents to the named client.
// It reports whether a client matched; an unmatched name changes nothing and
// is reported to the notifier as ErrNotFound.
func (s *Service) UpdateClientAggregate(ctx context.Context, name string, amountCents int64) bool {
	if !s.store.ApplyClientPurchase(strings.TrimSpace(name), amountCents, s.now()) {
		s.notifier.Failure(ctx, "update_client_aggregate", fmt.Errorf("%w: client %q", store.ErrNotFound, name))
		return false
	}
	s.notifier.Success(ctx, "update_client_aggregate", fmt.Sprintf("client %q updated", name))
	return true
}

func (s *Service) AddPayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	if req.AmountCents < 0 {
		return domain.Payment{}, s.fail(ctx, "add_payment", store.ErrInvalidMutation)
	}

	now := s.now()
	payment := s.store.InsertPayment(domain.Payment{
		ClientName:  strings.TrimSpace(req.ClientName),
		AmountCents: req.AmountCents,
		Status:      strings.TrimSpace(req.Status),
		Method:      strings.TrimSpace(req.Method),
		Description: strings.TrimSpace(req.Description),
		Date:        now,
	})
	s.store.ApplyClientPurchase(payment.ClientName, payment.AmountCents, now)

	s.notifier.Success(ctx, "add_payment", fmt.Sprintf("payment %d added", payment.ID))
	return payment, nil
}

// DeletePayment removes the payment record only; client aggregates stay as they are.
func (s *Service) DeletePayment(ctx context.Context, id int64) error {
	if _, err := s.store.RemovePayment(id); err != nil {
		return s.fail(ctx, "delete_payment", err)
	}
	s.notifier.Success(ctx, "delete_payment", fmt.Sprintf("payment %d deleted", id))
	return nil
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	s.notifier.Failure(ctx, op, err)
	return err
}

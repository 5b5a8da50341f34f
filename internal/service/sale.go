package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
	"github.com/dummy-intern104/invex-ai/internal/xid"
)

type ProductRepository interface {
	Product(id int64) (domain.Product, error)
	ReserveStock(id int64, qty int) (domain.Product, error)
	RestoreStock(id int64, qty int) (domain.Product, bool)
}

type ClientRepository interface {
	ApplyClientPurchase(name string, amountCents int64, at time.Time) bool
}

type SaleRepository interface {
	InsertSale(sale domain.Sale) domain.Sale
	RemoveSale(id int64) (domain.Sale, error)
}

// SaleStage names a step of sale recording. Rejections are reported with the
// stage that refused the sale.
type SaleStage string

const (
	StageValidating      SaleStage = "validating"
	StageStockCheck      SaleStage = "stock-check"
	StageApplying        SaleStage = "applying"
	StageIntegrityUpdate SaleStage = "integrity-update"
	StageCommitted       SaleStage = "committed"
	StageRejected        SaleStage = "rejected"
)

// SaleService records and deletes sales, keeping product stock and client
// aggregates consistent with the sale list.
type SaleService struct {
	products ProductRepository
	clients  ClientRepository
	sales    SaleRepository
	notifier Notifier
	now      func() time.Time
}

func NewSaleService(products ProductRepository, clients ClientRepository, sales SaleRepository, notifier Notifier) *SaleService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &SaleService{
		products: products,
		clients:  clients,
		sales:    sales,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SaleService) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.Sale, error) {
	sale, err := s.recordSale(req)
	if err != nil {
		s.notifier.Failure(ctx, "record_sale", err)
		return domain.Sale{}, err
	}
	s.notifier.Success(ctx, "record_sale", fmt.Sprintf("sale recorded: %d x product %d", sale.Quantity, sale.ProductID))
	return sale, nil
}

func (s *SaleService) recordSale(req domain.RecordSaleRequest) (domain.Sale, error) {
	stage := StageValidating
	if req.Quantity < 1 || req.PriceCents < 0 {
		return domain.Sale{}, rejected(stage, store.ErrInvalidMutation)
	}
	if _, err := s.products.Product(req.ProductID); err != nil {
		return domain.Sale{}, rejected(stage, err)
	}

	// Check and decrement happen in one critical section so a concurrent sale
	// cannot drive stock below zero between them.
	stage = StageStockCheck
	if _, err := s.products.ReserveStock(req.ProductID, req.Quantity); err != nil {
		return domain.Sale{}, rejected(stage, err)
	}

	stage = StageApplying
	at := s.now()
	sale := s.sales.InsertSale(domain.Sale{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		PriceCents:    req.PriceCents,
		CreatedAt:     at,
		ClientName:    strings.TrimSpace(req.ClientName),
		TransactionID: xid.SaleToken(req.ProductID, at),
	})

	stage = StageIntegrityUpdate
	if sale.ClientName != "" {
		if !s.clients.ApplyClientPurchase(sale.ClientName, sale.TotalCents(), at) {
			log.Printf("[service] sale %d is unlinked: no client named %q", sale.ID, sale.ClientName)
		}
	}

	return sale, nil
}

// DeleteSale removes the sale and gives its quantity back to the product.
// Client aggregates are left untouched.
func (s *SaleService) DeleteSale(ctx context.Context, id int64) (domain.Sale, error) {
	removed, err := s.sales.RemoveSale(id)
	if err != nil {
		s.notifier.Failure(ctx, "delete_sale", err)
		return domain.Sale{}, err
	}
	if _, ok := s.products.RestoreStock(removed.ProductID, removed.Quantity); !ok {
		log.Printf("[service] WARN: sale %d deleted but product %d no longer exists; stock not restored", removed.ID, removed.ProductID)
	}
	s.notifier.Success(ctx, "delete_sale", fmt.Sprintf("sale %d deleted", removed.ID))
	return removed, nil
}

func rejected(stage SaleStage, err error) error {
	return fmt.Errorf("sale %s at %s: %w", StageRejected, stage, err)
}

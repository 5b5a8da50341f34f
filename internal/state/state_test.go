package state

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

func TestIDsStartAtOneAndFollowMax(t *testing.T) {
	s := New()

	first, err := s.AddProduct(domain.Product{Name: "A"})
	require.NoError(t, err)
	second, err := s.AddProduct(domain.Product{Name: "B"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestRestoreRaisesHighWaterMark(t *testing.T) {
	s := New()
	s.Restore(domain.Snapshot{Sales: []domain.Sale{{ID: 7}, {ID: 3}}})

	sale := s.InsertSale(domain.Sale{ProductID: 1, Quantity: 1})
	assert.Equal(t, int64(8), sale.ID)
}

func TestClearResetsIDs(t *testing.T) {
	s := New()
	s.InsertSale(domain.Sale{ProductID: 1, Quantity: 1})
	s.Clear()

	sale := s.InsertSale(domain.Sale{ProductID: 1, Quantity: 1})
	assert.Equal(t, int64(1), sale.ID)
}

func TestSalesAndPaymentsArePrepended(t *testing.T) {
	s := New()
	s.InsertSale(domain.Sale{ProductID: 1, Quantity: 1})
	s.InsertSale(domain.Sale{ProductID: 1, Quantity: 2})
	s.InsertPayment(domain.Payment{AmountCents: 1})
	s.InsertPayment(domain.Payment{AmountCents: 2})

	sales := s.Sales()
	require.Len(t, sales, 2)
	assert.Equal(t, int64(2), sales[0].ID)

	payments := s.Payments()
	require.Len(t, payments, 2)
	assert.Equal(t, int64(2), payments[0].ID)
}

func TestProductsAndClientsKeepInsertionOrder(t *testing.T) {
	s := New()
	_, _ = s.AddProduct(domain.Product{Name: "A"})
	_, _ = s.AddProduct(domain.Product{Name: "B"})
	s.AddClient(domain.Client{Name: "Ann"})
	s.AddClient(domain.Client{Name: "Bob"})

	assert.Equal(t, "A", s.Products()[0].Name)
	assert.Equal(t, "Ann", s.Clients()[0].Name)
}

func TestReserveStockIsAllOrNothing(t *testing.T) {
	s := New()
	p, err := s.AddProduct(domain.Product{Name: "A", Stock: 3})
	require.NoError(t, err)

	_, err = s.ReserveStock(p.ID, 4)
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	got, _ := s.Product(p.ID)
	assert.Equal(t, 3, got.Stock)

	_, err = s.ReserveStock(99, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	updated, err := s.ReserveStock(p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)
}

func TestApplyClientPurchaseMatchesExactName(t *testing.T) {
	s := New()
	s.AddClient(domain.Client{Name: "Bob"})
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.False(t, s.ApplyClientPurchase("bob", 10, at))
	assert.False(t, s.ApplyClientPurchase("", 10, at))
	assert.True(t, s.ApplyClientPurchase("Bob", 10, at))

	bob, ok := s.ClientByName("Bob")
	require.True(t, ok)
	assert.Equal(t, 1, bob.TotalPurchases)
	assert.Equal(t, int64(10), bob.TotalSpentCents)
	assert.Equal(t, at, bob.LastPurchase)
}

func TestChangeHookFiresForMutationsButNotRestore(t *testing.T) {
	s := New()
	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })

	s.Restore(domain.Snapshot{Products: []domain.Product{{ID: 1, Name: "A", Stock: 5}}})
	assert.Equal(t, int32(0), calls.Load())

	_, err := s.ReserveStock(1, 2)
	require.NoError(t, err)
	s.AddClient(domain.Client{Name: "Bob"})
	require.NoError(t, s.SetPayments(nil))
	assert.Equal(t, int32(3), calls.Load())

	_, err = s.ReserveStock(1, 99)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	_, _ = s.AddProduct(domain.Product{Name: "A", Stock: 5})

	snap := s.Snapshot()
	snap.Products[0].Stock = 0

	got, _ := s.Product(1)
	assert.Equal(t, 5, got.Stock)
}

func TestSetListsRejectInvalidInputAndKeepState(t *testing.T) {
	s := New()
	require.NoError(t, s.SetProducts([]domain.Product{{ID: 1, Name: "A", Stock: 5}}))
	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })

	err := s.SetProducts([]domain.Product{{ID: 2, Name: "B", Stock: -1}})
	assert.ErrorIs(t, err, store.ErrInvalidMutation)
	err = s.SetProducts([]domain.Product{{ID: 3, Name: "C"}, {ID: 3, Name: "D"}})
	assert.ErrorIs(t, err, store.ErrInvalidMutation)
	assert.ErrorIs(t, s.SetSales([]domain.Sale{{ID: 4}, {ID: 4}}), store.ErrInvalidMutation)
	assert.ErrorIs(t, s.SetClients([]domain.Client{{ID: 5, Name: "x"}, {ID: 5, Name: "y"}}), store.ErrInvalidMutation)
	assert.ErrorIs(t, s.SetPayments([]domain.Payment{{ID: 6}, {ID: 6}}), store.ErrInvalidMutation)

	assert.Equal(t, []domain.Product{{ID: 1, Name: "A", Stock: 5}}, s.Products())
	assert.Empty(t, s.Sales())
	assert.Empty(t, s.Clients())
	assert.Empty(t, s.Payments())
	assert.Equal(t, int32(0), calls.Load())

	next, err := s.AddProduct(domain.Product{Name: "E"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.ID)
}

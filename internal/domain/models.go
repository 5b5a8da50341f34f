package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

type Product struct {
	ID         int64  `json:"product_id"`
	Name       string `json:"product_name"`
	Category   string `json:"category,omitempty"`
	PriceCents int64  `json:"unit_price_cents"`
	Stock      int    `json:"units"`
}

type Sale struct {
	ID            int64     `json:"sale_id"`
	ProductID     int64     `json:"product_id"`
	Quantity      int       `json:"quantity_sold"`
	PriceCents    int64     `json:"selling_price_cents"`
	CreatedAt     time.Time `json:"sale_date"`
	ClientName    string    `json:"client_name,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
}

func (s Sale) TotalCents() int64 {
	return int64(s.Quantity) * s.PriceCents
}

type Client struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	TotalPurchases  int       `json:"totalPurchases"`
	TotalSpentCents int64     `json:"totalSpentCents"`
	LastPurchase    time.Time `json:"lastPurchase"`
	JoinDate        time.Time `json:"joinDate"`
	OpenInvoices    int       `json:"openInvoices"`
}

type Payment struct {
	ID          int64     `json:"id"`
	ClientName  string    `json:"clientName"`
	AmountCents int64     `json:"amountCents"`
	Status      string    `json:"status"`
	Method      string    `json:"method"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
}

// ProductExpiry is side data fetched separately from the snapshot.
type ProductExpiry struct {
	ID         string    `json:"id"`
	ProductID  int64     `json:"product_id"`
	ExpiryDate time.Time `json:"expiry_date"`
	Quantity   int       `json:"quantity"`
	Notes      string    `json:"notes,omitempty"`
}

type ProductCreateRequest struct {
	Name       string `json:"product_name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"unit_price_cents"`
	Stock      int    `json:"units"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"product_name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"unit_price_cents,omitempty"`
	Stock      *int    `json:"units,omitempty"`
}

type RecordSaleRequest struct {
	ProductID  int64  `json:"product_id"`
	Quantity   int    `json:"quantity_sold"`
	PriceCents int64  `json:"selling_price_cents"`
	ClientName string `json:"client_name,omitempty"`
}

type ClientCreateRequest struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	JoinDate     *time.Time `json:"joinDate,omitempty"`
	OpenInvoices int        `json:"openInvoices"`
}

type ClientUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	OpenInvoices *int    `json:"openInvoices,omitempty"`
}

type ClientAggregateRequest struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amountCents"`
}

type PaymentCreateRequest struct {
	ClientName  string `json:"clientName"`
	AmountCents int64  `json:"amountCents"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// Snapshot is the four-collection state persisted and exchanged as one unit.
type Snapshot struct {
	Products  []Product `json:"products"`
	Sales     []Sale    `json:"sales"`
	Clients   []Client  `json:"clients"`
	Payments  []Payment `json:"payments"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func EmptySnapshot() Snapshot {
	return Snapshot{
		Products: []Product{},
		Sales:    []Sale{},
		Clients:  []Client{},
		Payments: []Payment{},
	}
}

// Normalize replaces nil collections with empty ones.
func (s Snapshot) Normalize() Snapshot {
	if s.Products == nil {
		s.Products = []Product{}
	}
	if s.Sales == nil {
		s.Sales = []Sale{}
	}
	if s.Clients == nil {
		s.Clients = []Client{}
	}
	if s.Payments == nil {
		s.Payments = []Payment{}
	}
	return s
}

func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Products:  append([]Product{}, s.Products...),
		Sales:     append([]Sale{}, s.Sales...),
		Clients:   append([]Client{}, s.Clients...),
		Payments:  append([]Payment{}, s.Payments...),
		UpdatedAt: s.UpdatedAt,
	}
}

// Diff lists the collections whose canonical encoding differs. UpdatedAt is ignored.
func (s Snapshot) Diff(other Snapshot) []string {
	a := s.Normalize()
	b := other.Normalize()

	changed := make([]string, 0, 4)
	if !sameJSON(a.Products, b.Products) {
		changed = append(changed, "products")
	}
	if !sameJSON(a.Sales, b.Sales) {
		changed = append(changed, "sales")
	}
	if !sameJSON(a.Clients, b.Clients) {
		changed = append(changed, "clients")
	}
	if !sameJSON(a.Payments, b.Payments) {
		changed = append(changed, "payments")
	}
	return changed
}

func (s Snapshot) Equal(other Snapshot) bool {
	return len(s.Diff(other)) == 0
}

func sameJSON(a any, b any) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(left, right)
}

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

const (
	TableUserData      = "user_data"
	TableProductExpiry = "product_expiry"
)

// ChangeEvent is a parsed remote change notification.
type ChangeEvent struct {
	Kind            ChangeKind `json:"kind"`
	Table           string     `json:"table"`
	UserID          string     `json:"user_id"`
	Payload         *Snapshot  `json:"payload,omitempty"`
	ServerTimestamp time.Time  `json:"server_timestamp"`
}

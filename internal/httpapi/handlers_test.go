package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/service"
	"github.com/dummy-intern104/invex-ai/internal/state"
	"github.com/dummy-intern104/invex-ai/internal/store/memory"
	"github.com/dummy-intern104/invex-ai/internal/syncer"
)

const (
	testSecret   = "test-secret-key"
	testIdentity = "owner-1"
)

type testEnv struct {
	api         *API
	handler     http.Handler
	store       *state.Store
	coordinator *syncer.Coordinator
	gateway     *memory.Gateway
	token       string
}

// newTestEnv wires a real service, coordinator and in-memory gateway behind
// the API so handler tests exercise the complete request path.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := state.New()
	gw := memory.New()
	coordinator := syncer.New(st, gw, service.LogNotifier{}, syncer.Options{Debounce: time.Hour})
	coordinator.Bind(auth.WithSession(context.Background(), auth.Session{UserID: testIdentity}), testIdentity)
	t.Cleanup(coordinator.Unbind)

	verifier := auth.NewVerifier(testSecret, "")
	token, err := verifier.Sign(testIdentity, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	api := New(service.New(st, service.LogNotifier{}), coordinator, verifier, testIdentity, "*")
	return &testEnv{
		api:         api,
		handler:     api.Handler(),
		store:       st,
		coordinator: coordinator,
		gateway:     gw,
		token:       token,
	}
}

func (e *testEnv) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
	if body["identity"] != testIdentity {
		t.Fatalf("expected identity %q, got %v", testIdentity, body["identity"])
	}
}

func TestProductLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{Name: "Teh", PriceCents: 300, Stock: 10})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &created)
	if created.Product.ID != 1 {
		t.Fatalf("expected first product id 1, got %d", created.Product.ID)
	}

	stock := 4
	rec = env.do(t, http.MethodPatch, "/api/v1/products/1", domain.ProductUpdateRequest{Stock: &stock})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := env.store.Products()[0].Stock; got != 4 {
		t.Fatalf("expected stock 4, got %d", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/products/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/v1/products/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing product, got %d", rec.Code)
	}
}

func TestRecordSaleErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.store.AddProduct(domain.Product{Name: "Kopi", PriceCents: 1500, Stock: 2}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	cases := []struct {
		name   string
		req    domain.RecordSaleRequest
		status int
	}{
		{name: "unknown product", req: domain.RecordSaleRequest{ProductID: 99, Quantity: 1, PriceCents: 1500}, status: http.StatusNotFound},
		{name: "too many units", req: domain.RecordSaleRequest{ProductID: 1, Quantity: 3, PriceCents: 1500}, status: http.StatusConflict},
		{name: "zero quantity", req: domain.RecordSaleRequest{ProductID: 1, Quantity: 0, PriceCents: 1500}, status: http.StatusBadRequest},
		{name: "accepted", req: domain.RecordSaleRequest{ProductID: 1, Quantity: 2, PriceCents: 1500}, status: http.StatusCreated},
	}
	for _, tc := range cases {
		rec := env.do(t, http.MethodPost, "/api/v1/sales", tc.req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d (body: %s)", tc.name, tc.status, rec.Code, rec.Body.String())
		}
	}

	if got := env.store.Products()[0].Stock; got != 0 {
		t.Fatalf("expected stock 0 after sale, got %d", got)
	}

	rec := env.do(t, http.MethodDelete, "/api/v1/sales/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting sale, got %d", rec.Code)
	}
	if got := env.store.Products()[0].Stock; got != 2 {
		t.Fatalf("expected stock restored to 2, got %d", got)
	}
}

func TestClientAggregateAndPayments(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/clients", domain.ClientCreateRequest{Name: "Bob"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/clients/aggregate", domain.ClientAggregateRequest{Name: "Nobody", AmountCents: 500})
	var agg map[string]bool
	decodeBody(t, rec, &agg)
	if agg["updated"] {
		t.Fatalf("expected unknown client to be a no-op")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/payments", domain.PaymentCreateRequest{ClientName: "Bob", AmountCents: 2500, Status: "paid", Method: "cash"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	client := env.store.Clients()[0]
	if client.TotalPurchases != 1 || client.TotalSpentCents != 2500 {
		t.Fatalf("expected client aggregates 1/2500, got %d/%d", client.TotalPurchases, client.TotalSpentCents)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/payments/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(env.store.Payments()) != 0 {
		t.Fatalf("expected payment removed")
	}
}

func TestBulkReplaceProducts(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"products": []domain.Product{{ID: 5, Name: "Gula", Stock: 3}}}
	rec := env.do(t, http.MethodPut, "/api/v1/products", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if len(env.store.Products()) != 1 || env.store.Products()[0].ID != 5 {
		t.Fatalf("expected products replaced, got %#v", env.store.Products())
	}
}

func TestBulkReplaceRejectsInvalidLists(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"products": []domain.Product{{ID: 5, Name: "Gula", Stock: 3}}}
	if rec := env.do(t, http.MethodPut, "/api/v1/products", body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	body = map[string]any{"products": []domain.Product{{ID: 6, Name: "Teh", Stock: -1}}}
	if rec := env.do(t, http.MethodPut, "/api/v1/products", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body = map[string]any{"clients": []domain.Client{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}}
	if rec := env.do(t, http.MethodPut, "/api/v1/clients", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate client ids, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	if len(env.store.Products()) != 1 || env.store.Products()[0].ID != 5 {
		t.Fatalf("expected products unchanged, got %#v", env.store.Products())
	}
	if len(env.store.Clients()) != 0 {
		t.Fatalf("expected clients unchanged, got %#v", env.store.Clients())
	}
}

func TestAutoSyncToggle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/sync/auto", nil)
	var status map[string]bool
	decodeBody(t, rec, &status)
	if status["enabled"] {
		t.Fatalf("expected auto-sync off by default")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sync/auto", map[string]bool{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !env.coordinator.AutoSyncEnabled() {
		t.Fatalf("expected auto-sync enabled")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sync/auto", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without enabled flag, got %d", rec.Code)
	}
}

func TestConflictAcceptOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.coordinator.SetAutoSync(true)

	rec := env.do(t, http.MethodGet, "/api/v1/sync/conflict", nil)
	var empty map[string]any
	decodeBody(t, rec, &empty)
	if empty["conflict"] != nil {
		t.Fatalf("expected no pending conflict, got %v", empty["conflict"])
	}

	remote := domain.EmptySnapshot()
	remote.Clients = []domain.Client{{ID: 3, Name: "Remote Client"}}
	outcome := make(chan syncer.Outcome, 1)
	go func() {
		outcome <- env.coordinator.HandleRemote(context.Background(), domain.ChangeEvent{
			Kind:            domain.ChangeUpdate,
			Table:           domain.TableUserData,
			UserID:          testIdentity,
			Payload:         &remote,
			ServerTimestamp: time.Now().UTC(),
		})
	}()

	var conflict *syncer.Conflict
	select {
	case conflict = <-env.coordinator.Conflicts():
	case <-time.After(time.Second):
		t.Fatalf("no conflict raised")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sync/conflict/accept", map[string]string{"id": "wrong-id"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unknown conflict id, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sync/conflict/accept", map[string]string{"id": conflict.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	select {
	case got := <-outcome:
		if got != syncer.OutcomeApplied {
			t.Fatalf("expected applied outcome, got %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("remote handling did not finish")
	}
	if clients := env.store.Clients(); len(clients) != 1 || clients[0].Name != "Remote Client" {
		t.Fatalf("expected remote clients applied, got %#v", clients)
	}
}

func TestFlushPersistsImmediately(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.store.AddProduct(domain.Product{Name: "Roti", Stock: 1}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/sync/flush", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env.gateway.SaveCount(testIdentity) != 1 {
		t.Fatalf("expected one save, got %d", env.gateway.SaveCount(testIdentity))
	}
}

func TestRefreshExpiries(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.PutExpiry(testIdentity, domain.ProductExpiry{ID: "exp-1", ProductID: 1, ExpiryDate: time.Now().Add(24 * time.Hour), Quantity: 5})

	rec := env.do(t, http.MethodPost, "/api/v1/expiries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Expiries []domain.ProductExpiry `json:"expiries"`
	}
	decodeBody(t, rec, &body)
	if len(body.Expiries) != 1 || body.Expiries[0].ID != "exp-1" {
		t.Fatalf("expected refreshed expiry, got %#v", body.Expiries)
	}
}

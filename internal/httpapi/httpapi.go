package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/auth"
	"github.com/dummy-intern104/invex-ai/internal/service"
	"github.com/dummy-intern104/invex-ai/internal/store"
	"github.com/dummy-intern104/invex-ai/internal/syncer"
)

// API is the local HTTP surface the UI uses to read state, mutate it and
// answer sync prompts for the signed-in identity.
type API struct {
	service       *service.Service
	coordinator   *syncer.Coordinator
	verifier      *auth.Verifier
	identity      string
	allowedOrigin string
	authLimiter   *attemptLimiter
}

func New(svc *service.Service, coordinator *syncer.Coordinator, verifier *auth.Verifier, identity string, allowedOrigin string) *API {
	return &API{
		service:       svc,
		coordinator:   coordinator,
		verifier:      verifier,
		identity:      identity,
		allowedOrigin: allowedOrigin,
		authLimiter:   newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/snapshot", a.requireAuth(a.handleSnapshot))
	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions))
	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions))
	mux.HandleFunc("/api/v1/clients", a.requireAuth(a.handleClients))
	mux.HandleFunc("/api/v1/clients/aggregate", a.requireAuth(a.handleClientAggregate))
	mux.HandleFunc("/api/v1/clients/", a.requireAuth(a.handleClientActions))
	mux.HandleFunc("/api/v1/payments", a.requireAuth(a.handlePayments))
	mux.HandleFunc("/api/v1/payments/", a.requireAuth(a.handlePaymentActions))
	mux.HandleFunc("/api/v1/expiries", a.requireAuth(a.handleExpiries))

	mux.HandleFunc("/api/v1/sync/auto", a.requireAuth(a.handleAutoSync))
	mux.HandleFunc("/api/v1/sync/flush", a.requireAuth(a.handleFlush))
	mux.HandleFunc("/api/v1/sync/conflict", a.requireAuth(a.handleConflict))
	mux.HandleFunc("/api/v1/sync/conflict/", a.requireAuth(a.handleConflictAnswer))

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"at":       time.Now().UTC().Format(time.RFC3339),
		"identity": a.coordinator.Identity(),
	})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidMutation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, syncer.ErrNoPendingConflict):
		return http.StatusConflict
	case errors.Is(err, syncer.ErrNotBound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// pathID extracts the numeric id that follows prefix.
func pathID(path string, prefix string) (int64, error) {
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
	if tail == "" || strings.Contains(tail, "/") {
		return 0, errors.New("id required")
	}
	id, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; details go to the log.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

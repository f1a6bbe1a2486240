package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/trywear-labs/storefront-backend/pkg/logger"
)

type memoryStore struct {
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value.(string)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idem:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// newSalesMux mirrors the production layout: the guard sits on the /api/v1
// group, the sale endpoint on a nested subrouter.
func newSalesMux(store *memoryStore, calls *int) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, logg))
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			r.Post("/", func(w http.ResponseWriter, _ *http.Request) {
				*calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"data":{"order_number":"ORD-20260830-0001"}}`))
			})
		})
	})
	return r
}

func postSale(t *testing.T, mux http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyRequiresKey(t *testing.T) {
	t.Parallel()

	calls := 0
	mux := newSalesMux(newMemoryStore(), &calls)

	rec := postSale(t, mux, "", `{"lines":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "VALIDATION_ERROR") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if calls != 0 {
		t.Fatalf("handler must not run without a key, ran %d times", calls)
	}
}

func TestIdempotencyReplayReturnsStoredResponse(t *testing.T) {
	t.Parallel()

	calls := 0
	mux := newSalesMux(newMemoryStore(), &calls)
	body := `{"lines":[{"quantity":1}]}`

	first := postSale(t, mux, "key-123", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want %d", first.Code, http.StatusCreated)
	}
	if calls != 1 {
		t.Fatalf("expected 1 handler call, got %d", calls)
	}

	second := postSale(t, mux, "key-123", body)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want %d", second.Code, http.StatusCreated)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("replay content type = %q", ct)
	}
	if calls != 1 {
		t.Fatalf("replay must not re-run the handler, ran %d times", calls)
	}
}

func TestIdempotencyKeyReuseWithDifferentBodyRejected(t *testing.T) {
	t.Parallel()

	calls := 0
	mux := newSalesMux(newMemoryStore(), &calls)

	if rec := postSale(t, mux, "key-456", `{"lines":[{"quantity":1}]}`); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want %d", rec.Code, http.StatusCreated)
	}

	rec := postSale(t, mux, "key-456", `{"lines":[{"quantity":2}]}`)
	if !strings.Contains(rec.Body.String(), "IDEMPOTENCY_KEY_REUSED") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("mismatched reuse must not re-run the handler, ran %d times", calls)
	}
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	t.Parallel()

	calls := 0
	mux := newSalesMux(newMemoryStore(), &calls)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(ordersURL, inventoryURL string) http.Handler {
	r := chi.NewRouter()
	NewHandler(
		NewServiceProxy(ordersURL, http.DefaultClient),
		NewServiceProxy(inventoryURL, http.DefaultClient),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	).Routes(r)
	return r
}

func TestHandler_OrdersRoutes(t *testing.T) {
	t.Run("proxies order paths unchanged", func(t *testing.T) {
		var seen []string
		ordersServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Method+" "+r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[]`))
		}))
		defer ordersServer.Close()

		router := newTestRouter(ordersServer.URL, "http://unused")
		for _, path := range []string{"/orders", "/orders/o1", "/cart", "/seller/items/i1/accept", "/admin/orders"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("%s: expected status 200, got %d", path, rec.Code)
			}
		}

		if len(seen) != 5 || seen[3] != "GET /seller/items/i1/accept" {
			t.Errorf("unexpected downstream requests: %v", seen)
		}
	})

	t.Run("forwards checkout with identity and idempotency headers", func(t *testing.T) {
		ordersServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("missing authorization, got %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("Idempotency-Key") != "k1" {
				t.Errorf("missing idempotency key, got %q", r.Header.Get("Idempotency-Key"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"payment_method":"card"}` {
				t.Errorf("unexpected body: %s", body)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"order_ids":["o1"]}`))
		}))
		defer ordersServer.Close()

		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"payment_method":"card"}`))
		req.Header.Set("Authorization", "Bearer tok")
		req.Header.Set("Idempotency-Key", "k1")
		rec := httptest.NewRecorder()

		newTestRouter(ordersServer.URL, "http://unused").ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rec.Code)
		}
		if rec.Body.String() != `{"order_ids":["o1"]}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("returns 502 when orders service unavailable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter("http://localhost:99999", "http://unused").
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})

	t.Run("unknown prefix is not proxied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter("http://unused", "http://unused").
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_InventoryRoutes(t *testing.T) {
	t.Run("maps /inventory to /stock", func(t *testing.T) {
		var seen []string
		inventoryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer inventoryServer.Close()

		router := newTestRouter("http://unused", inventoryServer.URL)
		for _, path := range []string{"/inventory", "/inventory/p1"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		}

		if len(seen) != 2 || seen[0] != "/stock" || seen[1] != "/stock/p1" {
			t.Errorf("unexpected downstream paths: %v", seen)
		}
	})

	t.Run("preserves downstream error status and retry hint", func(t *testing.T) {
		inventoryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"product is busy, retry"}`))
		}))
		defer inventoryServer.Close()

		req := httptest.NewRequest(http.MethodPut, "/inventory/p1", strings.NewReader(`{"stock":3}`))
		rec := httptest.NewRecorder()
		newTestRouter("http://unused", inventoryServer.URL).ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "1" {
			t.Errorf("expected Retry-After to be copied, got %q", rec.Header().Get("Retry-After"))
		}
	})
}

package cart

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/auth"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.JWTService, *memoryStore) {
	t.Helper()
	svc, store := newTestService()
	jwtService := auth.NewJWTService("test-secret", time.Minute)
	handler := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return handler.Routes(jwtService), jwtService, store
}

func TestHandler_GuestCart(t *testing.T) {
	router, _, store := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"product_id":"mug","quantity":2}`))
	req.Header.Set(auth.SessionHeader, "guest-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "9", got.Subtotal.String())
	assert.Contains(t, store.carts, "session:guest-1")
}

func TestHandler_SignedInUserIgnoresSession(t *testing.T) {
	router, jwtService, store := newTestRouter(t)

	tok, _, err := jwtService.GenerateAccessToken("b1", "b1@example.com", auth.RoleBuyer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"product_id":"tea","quantity":1}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set(auth.SessionHeader, "guest-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, store.carts, "user:b1")
	assert.NotContains(t, store.carts, "session:guest-1")
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"no owner", http.MethodGet, "/", "", http.StatusUnauthorized},
		{"over stock", http.MethodPost, "/items", `{"product_id":"mug","quantity":4}`, http.StatusConflict},
		{"unknown product", http.MethodPost, "/items", `{"product_id":"nope","quantity":1}`, http.StatusNotFound},
		{"bad quantity", http.MethodPost, "/items", `{"product_id":"mug","quantity":0}`, http.StatusBadRequest},
		{"remove missing row", http.MethodDelete, "/items/mug", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := newTestRouter(t)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.name != "no owner" {
				req.Header.Set(auth.SessionHeader, "guest-1")
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_SetQuantityAndClear(t *testing.T) {
	router, _, store := newTestRouter(t)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(auth.SessionHeader, "guest-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do(http.MethodPost, "/items", `{"product_id":"tea","quantity":1}`).Code)

	rec := do(http.MethodPatch, "/items/tea", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, store.carts["session:guest-1"].Rows[0].Quantity)

	rec = do(http.MethodDelete, "/", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, store.carts, "session:guest-1")
}

package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/auth"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

type StockStore interface {
	ListAll(ctx context.Context) ([]domain.StockLevel, error)
	GetStock(ctx context.Context, productID string) (*domain.StockLevel, error)
	SetStock(ctx context.Context, productID, sellerID string, stock int) (*domain.StockLevel, error)
}

type Handler struct {
	store  StockStore
	logger *slog.Logger
}

func NewHandler(store StockStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list stock", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("stock listed", "count", len(levels))
	h.writeJSON(w, http.StatusOK, levels)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	level, err := h.store.GetStock(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to get stock", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if level == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, level)
}

type setStockRequest struct {
	Stock *int `json:"stock"`
}

func (h *Handler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stock == nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sellerID := auth.UserID(r.Context())
	level, err := h.store.SetStock(r.Context(), productID, sellerID, *req.Stock)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNegativeStock):
			h.writeError(w, http.StatusBadRequest, "stock must not be negative")
		case errors.Is(err, domain.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, domain.ErrConflictRetry):
			w.Header().Set("Retry-After", "1")
			h.writeError(w, http.StatusServiceUnavailable, "product is busy, retry")
		default:
			h.logger.Error("failed to set stock", "error", err, "product_id", productID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.Info("stock updated", "product_id", productID, "seller_id", sellerID, "stock", level.Stock)
	h.writeJSON(w, http.StatusOK, level)
}

// Routes mounts the stock endpoints; restocking requires a seller token.
func (h *Handler) Routes(jwtService *auth.JWTService) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HandleListStock)
	r.Get("/{productId}", h.HandleGetStock)
	r.With(auth.Middleware(jwtService), auth.RequireRole(auth.RoleSeller)).Put("/{productId}", h.HandleSetStock)
	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

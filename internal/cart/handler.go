package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/auth"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Routes mounts the cart endpoints. Guests identify their cart with the
// session header; signed-in users always use their own cart.
func (h *Handler) Routes(jwtService *auth.JWTService) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.OptionalMiddleware(jwtService))

	r.Get("/", h.HandleGet)
	r.Delete("/", h.HandleClear)
	r.Post("/items", h.HandleAdd)
	r.Patch("/items/{productId}", h.HandleSetQuantity)
	r.Delete("/items/{productId}", h.HandleRemove)
	return r
}

type cartResponse struct {
	Rows     []domain.CartRow `json:"rows"`
	Count    int              `json:"count"`
	Subtotal decimal.Decimal  `json:"subtotal"`
}

func newCartResponse(c *Cart) cartResponse {
	rows := c.Rows
	if rows == nil {
		rows = []domain.CartRow{}
	}
	return cartResponse{Rows: rows, Count: c.Count(), Subtotal: c.Subtotal()}
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, err := Owner(auth.UserID(r.Context()), r.Header.Get(auth.SessionHeader))
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	return owner, true
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	c, err := h.svc.Get(r.Context(), owner)
	if err != nil {
		h.handleError(w, err, "failed to load cart")
		return
	}
	h.writeJSON(w, http.StatusOK, newCartResponse(c))
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Add(r.Context(), owner, auth.UserID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		h.handleError(w, err, "failed to add cart item", "product_id", req.ProductID)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartResponse(c))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID := chi.URLParam(r, "productId")
	c, err := h.svc.SetQuantity(r.Context(), owner, productID, req.Quantity)
	if err != nil {
		h.handleError(w, err, "failed to update cart item", "product_id", productID)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productId")
	c, err := h.svc.Remove(r.Context(), owner, productID)
	if err != nil {
		h.handleError(w, err, "failed to remove cart item", "product_id", productID)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	if err := h.svc.Clear(r.Context(), owner); err != nil {
		h.handleError(w, err, "failed to clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
		})
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrOwnProduct):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrBusy):
		w.Header().Set("Retry-After", "1")
		h.writeError(w, http.StatusServiceUnavailable, "cart is busy, retry")
	default:
		h.logger.Error(msg, append([]any{"error", err}, attrs...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
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

package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/auth"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/cart"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

type OrderService interface {
	CheckoutCart(ctx context.Context, in CheckoutInput) ([]string, error)

	AcceptItem(ctx context.Context, itemID, sellerID string) (*domain.LineItem, error)
	ShipItem(ctx context.Context, itemID, sellerID string) (*domain.LineItem, error)
	RejectItem(ctx context.Context, itemID, sellerID string) (*domain.LineItem, error)
	CancelItem(ctx context.Context, itemID, buyerID string) (*domain.LineItem, error)
	CompleteItem(ctx context.Context, itemID, buyerID string) (*domain.LineItem, error)
	CancelOrder(ctx context.Context, orderID, buyerID string) (*domain.Order, error)

	HideOrderHistory(ctx context.Context, orderID, buyerID string) error
	HideSellerItem(ctx context.Context, itemID, sellerID string) error
	HardDeleteOrder(ctx context.Context, orderID string) error

	GetBuyerOrder(ctx context.Context, orderID, buyerID string) (*domain.Order, error)
	BuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error)
	BuyerStats(ctx context.Context, buyerID string) (domain.BuyerStats, error)
	SellerItems(ctx context.Context, sellerID string) ([]domain.SellerItem, error)
	SellerItem(ctx context.Context, itemID, sellerID string) (*domain.SellerItem, error)
	SellerStats(ctx context.Context, sellerID string) (domain.SellerStats, error)
	AdminOrders(ctx context.Context) ([]domain.Order, error)
}

type itemAction func(ctx context.Context, itemID, actorID string) (*domain.LineItem, error)

type Handler struct {
	svc    OrderService
	logger *slog.Logger
}

func NewHandler(svc OrderService, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Routes mounts the buyer, seller and admin endpoints. Cart routes are
// mounted separately by the cart handler.
func (h *Handler) Routes(r chi.Router, jwtService *auth.JWTService) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwtService), auth.RequireRole(auth.RoleBuyer))

		r.Post("/checkout", h.HandleCheckout)
		r.Get("/orders", h.HandleListBuyerOrders)
		r.Get("/orders/stats", h.HandleBuyerStats)
		r.Get("/orders/{id}", h.HandleGetOrder)
		r.Post("/orders/{id}/cancel", h.HandleCancelOrder)
		r.Post("/orders/{id}/hide", h.HandleHideOrder)
		r.Post("/items/{id}/cancel", h.itemHandler("cancel", h.svc.CancelItem))
		r.Post("/items/{id}/complete", h.itemHandler("complete", h.svc.CompleteItem))
	})

	r.Route("/seller", func(r chi.Router) {
		r.Use(auth.Middleware(jwtService), auth.RequireRole(auth.RoleSeller))

		r.Get("/items", h.HandleListSellerItems)
		r.Get("/items/{id}", h.HandleGetSellerItem)
		r.Get("/stats", h.HandleSellerStats)
		r.Post("/items/{id}/accept", h.itemHandler("accept", h.svc.AcceptItem))
		r.Post("/items/{id}/ship", h.itemHandler("ship", h.svc.ShipItem))
		r.Post("/items/{id}/reject", h.itemHandler("reject", h.svc.RejectItem))
		r.Post("/items/{id}/hide", h.HandleHideSellerItem)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Middleware(jwtService), auth.RequireRole(auth.RoleAdmin))

		r.Get("/orders", h.HandleAdminListOrders)
		r.Delete("/orders/{id}", h.HandleDeleteOrder)
	})
}

type checkoutRequest struct {
	Shipping      domain.ShippingInfo `json:"shipping"`
	PaymentMethod string              `json:"payment_method"`
}

type checkoutResponse struct {
	OrderIDs []string `json:"order_ids"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	buyerID := auth.UserID(r.Context())
	ids, err := h.svc.CheckoutCart(r.Context(), CheckoutInput{
		BuyerID:        buyerID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Shipping:       req.Shipping,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		h.handleError(w, err, "checkout failed", "buyer_id", buyerID)
		return
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{OrderIDs: ids})
}

func (h *Handler) HandleListBuyerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.BuyerOrders(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.handleError(w, err, "failed to list orders")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleBuyerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.BuyerStats(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.handleError(w, err, "failed to compute buyer stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.svc.GetBuyerOrder(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.handleError(w, err, "failed to get order", "order_id", id)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.svc.CancelOrder(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.handleError(w, err, "failed to cancel order", "order_id", id)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleHideOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.HideOrderHistory(r.Context(), id, auth.UserID(r.Context())); err != nil {
		h.handleError(w, err, "failed to hide order", "order_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) itemHandler(name string, action itemAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, err := action(r.Context(), id, auth.UserID(r.Context()))
		if err != nil {
			h.handleError(w, err, "item transition failed", "item_id", id, "action", name)
			return
		}
		h.writeJSON(w, http.StatusOK, item)
	}
}

func (h *Handler) HandleListSellerItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.SellerItems(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.handleError(w, err, "failed to list seller items")
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleGetSellerItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.svc.SellerItem(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.handleError(w, err, "failed to get seller item", "item_id", id)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) HandleSellerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.SellerStats(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.handleError(w, err, "failed to compute seller stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleHideSellerItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.HideSellerItem(r.Context(), id, auth.UserID(r.Context())); err != nil {
		h.handleError(w, err, "failed to hide item", "item_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.AdminOrders(r.Context())
	if err != nil {
		h.handleError(w, err, "failed to list orders")
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.HardDeleteOrder(r.Context(), id); err != nil {
		h.handleError(w, err, "failed to delete order", "order_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockErrorResponse struct {
	Error     string `json:"error"`
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// handleError maps domain errors to status codes. Only unexpected errors are
// logged at error level.
func (h *Handler) handleError(w http.ResponseWriter, err error, msg string, attrs ...any) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		h.writeJSON(w, http.StatusConflict, stockErrorResponse{
			Error:     stockErr.Error(),
			ProductID: stockErr.ProductID,
			Available: stockErr.Available,
			Requested: stockErr.Requested,
		})
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrMissingProduct),
		errors.Is(err, domain.ErrMissingShipping),
		errors.Is(err, domain.ErrOwnProduct),
		errors.Is(err, domain.ErrSellerMismatch),
		errors.Is(err, domain.ErrMixedSellers),
		errors.Is(err, cart.ErrNoOwner):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotTerminal),
		errors.Is(err, ErrCheckoutInProgress):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflictRetry), errors.Is(err, cart.ErrBusy):
		w.Header().Set("Retry-After", "1")
		h.writeError(w, http.StatusServiceUnavailable, "resource is busy, retry")
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

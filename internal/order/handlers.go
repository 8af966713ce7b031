package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopcore/orderpay/internal/logger"
	"github.com/shopcore/orderpay/internal/middleware"
	"github.com/shopcore/orderpay/internal/types/order"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func orderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP codes; anything unexpected is logged
// and surfaced as an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidItem),
		errors.Is(err, ErrInvalidShipping),
		errors.Is(err, ErrTotalMismatch),
		errors.Is(err, ErrUnknownStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, "not authorized", http.StatusForbidden)
	case errors.Is(err, ErrNotCancellable), errors.Is(err, ErrStatusConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.Error("order storage failure", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	o, err := h.svc.PlaceOrder(r.Context(), ident.UserID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     o.ID,
		"status": o.Status,
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	orders, err := h.svc.ListOrders(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	detail, err := h.svc.GetOrder(r.Context(), ident.UserID, ident.IsAdmin, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	if err := h.svc.Cancel(r.Context(), ident.UserID, orderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteForUser(r.Context(), ident.UserID, orderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	listing, err := h.svc.AdminList(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if listing.Orders == nil {
		listing.Orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, listing)
}

type setStatusReq struct {
	Status order.OrderStatus `json:"status"`
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.svc.SetStatus(r.Context(), orderID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteForAdmin(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

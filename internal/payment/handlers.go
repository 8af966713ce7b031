package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopcore/orderpay/internal/logger"
	"github.com/shopcore/orderpay/internal/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrOrderCancelled),
		errors.Is(err, ErrUnknownIntentState):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrPaymentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, "not authorized", http.StatusForbidden)
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrStatusNotConfirmed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrProcessor):
		// Kept distinct from storage failures in the logs; the caller only
		// sees an opaque 500 either way.
		logger.Log.Error("payment processor failure", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		logger.Log.Error("payment storage failure", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type intentReq struct {
	OrderID int64 `json:"order_id"`
	Amount  int64 `json:"amount"`
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())

	var req intentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.OrderID == 0 || req.Amount == 0 {
		http.Error(w, "order_id and amount are required", http.StatusBadRequest)
		return
	}

	handle, err := h.svc.GetOrCreateHandle(r.Context(), ident.UserID, req.OrderID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handle)
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}
	if err := h.svc.ReconcileStatus(r.Context(), orderID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

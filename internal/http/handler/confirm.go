package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Jconte1/auth-api/internal/auth"
	"github.com/Jconte1/auth-api/internal/erp"
	"github.com/Jconte1/auth-api/internal/notify"
	"github.com/Jconte1/auth-api/internal/orders"
)

// ConfirmHandler flips an order to confirmed on behalf of the portal user.
// Confirmation closes every open reminder job so no later pass can remind or
// escalate the order again.
type ConfirmHandler struct {
	Orders *orders.Repo
	Store  *notify.Store
	ERP    *erp.Client
	Log    *zap.Logger
}

type confirmReq struct {
	ConfirmedVia  string `json:"confirmedVia"`
	ConfirmedWith string `json:"confirmedWith"`
}

func (h *ConfirmHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	orderNbr := strings.TrimSpace(chi.URLParam(r, "orderNbr"))
	if orderNbr == "" {
		http.Error(w, "order number required", http.StatusBadRequest)
		return
	}

	// An empty body means "confirm as-is"; the portal button sends no fields.
	var req confirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	via := strings.TrimSpace(req.ConfirmedVia)
	with := strings.TrimSpace(req.ConfirmedWith)
	if via == "" && with == "" {
		via = "portal"
	}

	o, err := h.Orders.FindByOrderNbr(r.Context(), orderNbr)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	if err := h.Orders.Confirm(r.Context(), o.ID, via, with, now); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			http.Error(w, "order has no contact on file", http.StatusConflict)
			return
		}
		h.Log.Error("confirm failed", zap.String("order_nbr", orderNbr), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	closed, err := h.Store.CloseOpenJobsForOrder(r.Context(), o.ID, now)
	if err != nil {
		// Confirmation stands; the runner's confirmed branch closes
		// stragglers on the next pass.
		h.Log.Warn("closing reminder jobs failed", zap.String("order_nbr", orderNbr), zap.Error(err))
	}

	// Best-effort ERP write-back; never fails the user confirmation.
	if err := h.ERP.PostOrderConfirmed(r.Context(), erp.OrderConfirmation{
		OrderID:       o.ID,
		BAID:          o.BAID,
		OrderNbr:      o.OrderNbr,
		DeliveryDate:  o.DeliveryDate,
		ConfirmedVia:  via,
		ConfirmedWith: with,
	}); err != nil {
		h.Log.Warn("erp confirmation write failed", zap.String("order_nbr", orderNbr), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":         true,
		"orderNbr":   orderNbr,
		"confirmed":  true,
		"jobsClosed": closed,
		"by":         uid,
	})
}

package invoice

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/rizalfahlevi/booking-management/internal/auth"
	"github.com/rizalfahlevi/booking-management/internal/transport"
)

type ServiceAPI interface {
	CreateInvoice(ctx context.Context, clientID int64, dto CreateInvoiceDTO) (*Invoice, error)
	GetByID(ctx context.Context, userID, invoiceID int64) (*Invoice, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !actor.IsClient() {
		h.WriteError(w, http.StatusForbidden, "only clients can request invoices")
		return
	}

	var dto CreateInvoiceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateInvoice: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inv, err := h.Service.CreateInvoice(r.Context(), actor.UserID, dto)
	if err != nil {
		h.Logger.Error("CreateInvoice: service error",
			"error", err,
			"appointment_id", dto.AppointmentID,
			"client_id", actor.UserID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, inv.ToResponse())
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	inv, err := h.Service.GetByID(r.Context(), actor.UserID, invoiceID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, inv.ToResponse())
}

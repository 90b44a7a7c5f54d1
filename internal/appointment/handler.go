package appointment

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
	CreateAppointment(ctx context.Context, clientID int64, dto CreateAppointmentDTO) (*Appointment, error)
	UpdateStatus(ctx context.Context, actor *auth.Actor, appointmentID int64, dto UpdateStatusDTO) (*Appointment, error)
	Reschedule(ctx context.Context, actor *auth.Actor, appointmentID int64, dto RescheduleDTO) (*Appointment, error)
	GetByID(ctx context.Context, actor *auth.Actor, appointmentID int64) (*Appointment, error)
	ListForActor(ctx context.Context, actor *auth.Actor, limit, offset int) ([]*Appointment, error)
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

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !actor.IsClient() {
		h.WriteError(w, http.StatusForbidden, "only clients can book appointments")
		return
	}

	var dto CreateAppointmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateAppointment: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.Service.CreateAppointment(r.Context(), actor.UserID, dto)
	if err != nil {
		h.Logger.Error("CreateAppointment: service error", "error", err, "client_id", actor.UserID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, appt.ToResponse())
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointmentID, err := h.appointmentIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var dto UpdateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateStatus: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.Service.UpdateStatus(r.Context(), actor, appointmentID, dto)
	if err != nil {
		h.Logger.Error("UpdateStatus: service error",
			"error", err,
			"appointment_id", appointmentID,
			"actor_id", actor.UserID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, appt.ToResponse())
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointmentID, err := h.appointmentIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var dto RescheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Reschedule: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.Service.Reschedule(r.Context(), actor, appointmentID, dto)
	if err != nil {
		h.Logger.Error("Reschedule: service error",
			"error", err,
			"appointment_id", appointmentID,
			"actor_id", actor.UserID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, appt.ToResponse())
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointmentID, err := h.appointmentIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	appt, err := h.Service.GetByID(r.Context(), actor, appointmentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, appt.ToResponse())
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	appts, err := h.Service.ListForActor(r.Context(), actor, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	responses := make([]*AppointmentResponse, len(appts))
	for i, appt := range appts {
		responses[i] = appt.ToResponse()
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"appointments": responses})
}

func (h *Handler) appointmentIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

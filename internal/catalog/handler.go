package catalog

import (
	"net/http"

	"github.com/rizalfahlevi/booking-management/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service *CatalogService
}

func NewHandler(baseHandler *transport.BaseHandler, service *CatalogService) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.Service.GetBookableServices()
	if err != nil {
		h.Logger.Error("GetServices: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

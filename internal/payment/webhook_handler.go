package payment

import (
	"context"
	"io"
	"net/http"

	"github.com/rizalfahlevi/booking-management/internal/paymentgateway"
	"github.com/rizalfahlevi/booking-management/internal/transport"
)

// SignatureHeader is where the gateway puts the signed event digest.
const SignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 1 << 20

type WebhookVerifier interface {
	VerifyAndParse(payload []byte, signatureHeader string) (*paymentgateway.WebhookEvent, error)
}

type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *paymentgateway.WebhookEvent) error
}

// WebhookHandler is the unauthenticated callback endpoint for the gateway.
// Signature verification replaces bearer auth here.
type WebhookHandler struct {
	*transport.BaseHandler
	verifier  WebhookVerifier
	processor EventProcessor
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, verifier WebhookVerifier, processor EventProcessor) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		verifier:    verifier,
		processor:   processor,
	}
}

// HandleWebhook verifies the signature before reading any domain field. An
// invalid signature is a 400 the gateway must not retry; processing errors
// return 5xx so the gateway redelivers.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.Logger.Error("HandleWebhook: failed to read body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	event, err := h.verifier.VerifyAndParse(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		h.Logger.Error("HandleWebhook: signature verification failed", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if err := h.processor.ProcessEvent(r.Context(), event); err != nil {
		h.Logger.Error("HandleWebhook: event processing failed",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

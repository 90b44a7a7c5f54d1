package payment_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/payment"
	"github.com/rizalfahlevi/booking-management/internal/paymentgateway"
	"github.com/rizalfahlevi/booking-management/internal/transport"
)

type mockVerifier struct {
	event       *paymentgateway.WebhookEvent
	verifyError error

	gotPayload []byte
	gotHeader  string
}

func (m *mockVerifier) VerifyAndParse(payload []byte, signatureHeader string) (*paymentgateway.WebhookEvent, error) {
	m.gotPayload = payload
	m.gotHeader = signatureHeader
	if m.verifyError != nil {
		return nil, m.verifyError
	}
	return m.event, nil
}

type mockProcessor struct {
	processError error
	processed    []*paymentgateway.WebhookEvent
}

func (m *mockProcessor) ProcessEvent(ctx context.Context, event *paymentgateway.WebhookEvent) error {
	if m.processError != nil {
		return m.processError
	}
	m.processed = append(m.processed, event)
	return nil
}

var _ = Describe("WebhookHandler", func() {
	var (
		handler     *payment.WebhookHandler
		mockVerify  *mockVerifier
		mockProcess *mockProcessor
		recorder    *httptest.ResponseRecorder
	)

	postWebhook := func(body, signature string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewBufferString(body))
		req.Header.Set(payment.SignatureHeader, signature)
		handler.HandleWebhook(recorder, req)
	}

	BeforeEach(func() {
		mockVerify = &mockVerifier{event: gatewayEvent(paymentgateway.EventPaymentSucceeded, "pi_123")}
		mockProcess = &mockProcessor{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = payment.NewWebhookHandler(transport.NewBaseHandler(logger), mockVerify, mockProcess)
		recorder = httptest.NewRecorder()
	})

	It("should acknowledge a verified event with 200", func() {
		postWebhook(`{"id":"evt_1"}`, "t=1,v1=abc")

		Expect(recorder.Code).To(Equal(http.StatusOK))
		Expect(mockProcess.processed).To(HaveLen(1))
		Expect(mockVerify.gotHeader).To(Equal("t=1,v1=abc"))
		Expect(mockVerify.gotPayload).To(Equal([]byte(`{"id":"evt_1"}`)))
	})

	It("should return 400 on signature failure without processing", func() {
		mockVerify.verifyError = internal.NewValidationError("webhook signature mismatch", internal.ErrCodeInvalidSignature)

		postWebhook(`{"id":"evt_1"}`, "t=1,v1=bad")

		Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		Expect(mockProcess.processed).To(BeEmpty())
	})

	It("should return 500 when reconciliation finds inconsistent state", func() {
		// the gateway retries on 5xx, which is what an inconsistency needs
		mockProcess.processError = internal.NewInternalStateError("payment in unexpected status", internal.ErrCodeInconsistentState)

		postWebhook(`{"id":"evt_1"}`, "t=1,v1=abc")

		Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
	})

	It("should map not found processing errors to 404", func() {
		mockProcess.processError = internal.ErrPaymentNotFound

		postWebhook(`{"id":"evt_1"}`, "t=1,v1=abc")

		Expect(recorder.Code).To(Equal(http.StatusNotFound))
	})
})

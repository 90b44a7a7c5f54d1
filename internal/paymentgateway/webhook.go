package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

// signatureTolerance bounds how stale a signed webhook may be before it is
// rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

// WebhookEvent is the gateway's event envelope. Metadata round-trips the
// domain ids attached at intent-creation time.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string         `json:"id"`
			Amount         int64          `json:"amount"`
			AmountRefunded int64          `json:"amount_refunded"`
			FailureMessage string         `json:"failure_message"`
			Metadata       IntentMetadata `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Verifier checks webhook signatures of the form "t=<unix>,v1=<hexhmac>"
// where the MAC covers "<t>.<payload>". The clock is injected so replay
// tolerance is testable.
type Verifier struct {
	secret []byte
	clock  clock.Clock
}

func NewVerifier(secret string, clk clock.Clock) *Verifier {
	return &Verifier{secret: []byte(secret), clock: clk}
}

// VerifyAndParse rejects bad signatures before any payload field is read.
func (v *Verifier) VerifyAndParse(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	timestamp, signature, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}

	age := v.clock.Now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, internal.NewValidationError("webhook timestamp outside tolerance", internal.ErrCodeInvalidSignature)
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(expected, provided) {
		return nil, internal.NewValidationError("webhook signature mismatch", internal.ErrCodeInvalidSignature)
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, internal.NewValidationError("malformed webhook payload", internal.ErrCodeInvalidSignature)
	}
	return &event, nil
}

func parseSignatureHeader(header string) (int64, string, error) {
	var timestamp int64
	var signature string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", internal.NewValidationError("malformed webhook timestamp", internal.ErrCodeInvalidSignature)
			}
			timestamp = parsed
		case "v1":
			signature = value
		}
	}

	if timestamp == 0 || signature == "" {
		return 0, "", internal.NewValidationError("missing webhook signature components", internal.ErrCodeInvalidSignature)
	}
	return timestamp, signature, nil
}

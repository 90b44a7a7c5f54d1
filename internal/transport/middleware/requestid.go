package middleware

import (
	"net/http"

	"github.com/rizalfahlevi/booking-management/pkg/logger"

	"github.com/google/uuid"
)

const traceHeader = "X-Trace-ID"

// RequestID tags every request with a trace ID so webhook deliveries and
// booking calls can be correlated across log lines. An inbound header wins;
// otherwise a fresh UUID is minted. The ID is echoed back to the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set(traceHeader, traceID)

		ctx := logger.With(r.Context(), "traceID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

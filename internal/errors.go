package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeForbidden  ErrorType = "FORBIDDEN"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal   ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"

	ErrCodeAppointmentNotFound ErrorCode = "APPOINTMENT_NOT_FOUND"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrCodeInvalidStatus       ErrorCode = "INVALID_STATUS"
	ErrCodeTimeSlotTaken       ErrorCode = "TIME_SLOT_TAKEN"
	ErrCodeConcurrentUpdate    ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeForbiddenActor      ErrorCode = "FORBIDDEN_ACTOR"
	ErrCodeServiceNotFound     ErrorCode = "SERVICE_NOT_FOUND"
	ErrCodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	ErrCodeInvoiceNotFound     ErrorCode = "INVOICE_NOT_FOUND"
	ErrCodeInvoiceExists       ErrorCode = "INVOICE_ALREADY_EXISTS"
	ErrCodePromotionNotFound   ErrorCode = "PROMOTION_NOT_FOUND"
	ErrCodePromotionInactive   ErrorCode = "PROMOTION_NOT_ACTIVE"
	ErrCodePromotionLimit      ErrorCode = "PROMOTION_MAX_USAGE_REACHED"
	ErrCodePromotionUsed       ErrorCode = "PROMOTION_ALREADY_USED"
	ErrCodePaymentNotFound     ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeRefundAlreadyIssued ErrorCode = "REFUND_ALREADY_ISSUED"
	ErrCodeGatewayFailed       ErrorCode = "GATEWAY_REQUEST_FAILED"
	ErrCodeInvalidSignature    ErrorCode = "INVALID_WEBHOOK_SIGNATURE"
	ErrCodeInconsistentState   ErrorCode = "INCONSISTENT_STATE"
	ErrCodeUnexpectedRowCount  ErrorCode = "UNEXPECTED_ROW_COUNT"
	ErrCodeCounterUnderflow    ErrorCode = "COUNTER_UNDERFLOW"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {

			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewExternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeGatewayFailed,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewInternalStateError marks a stored-state violation that should surface as
// a retryable 500 rather than a client error.
func NewInternalStateError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewInvalidTransitionError names the rejected combination so the caller can
// see exactly which (role, current, target) move was refused.
func NewInvalidTransitionError(role, current, target string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeInvalidTransition,
		Message:    fmt.Sprintf("role %s may not move appointment from %s to %s", role, current, target),
		StatusCode: http.StatusBadRequest,
	}
}

func NewInvalidStatusError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeInvalidStatus,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

var (
	ErrAppointmentNotFound = NewNotFoundError("Appointment not found", ErrCodeAppointmentNotFound)
	ErrServiceNotFound     = NewNotFoundError("Service not found", ErrCodeServiceNotFound)
	ErrUserNotFound        = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrInvoiceNotFound     = NewNotFoundError("Invoice not found", ErrCodeInvoiceNotFound)
	ErrPaymentNotFound     = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)
	ErrPromotionNotFound   = NewNotFoundError("Promotion code not found or not active", ErrCodePromotionNotFound)

	ErrNotAppointmentParty = NewForbiddenError("actor is not a party on this appointment", ErrCodeForbiddenActor)
	ErrNotInvoiceOwner     = NewForbiddenError("invoice does not belong to this client", ErrCodeForbiddenActor)

	ErrInvoiceAlreadyExists     = NewConflictError("an invoice already exists for this appointment", ErrCodeInvoiceExists)
	ErrPromotionMaxUsageReached = NewConflictError("promotion usage limit reached", ErrCodePromotionLimit)
	ErrPromotionAlreadyUsed     = NewConflictError("promotion already redeemed by this client", ErrCodePromotionUsed)
	ErrRefundAlreadyIssued      = NewConflictError("refund already issued for this payment", ErrCodeRefundAlreadyIssued)

	ErrTimeSlotTaken = NewConflictError("appointment time collides with another booking", ErrCodeTimeSlotTaken)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

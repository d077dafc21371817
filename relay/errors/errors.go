package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/qolzam/telar/apps/relay/internal/auth/replay"
	"github.com/qolzam/telar/apps/relay/internal/auth/signature"
	"github.com/qolzam/telar/apps/relay/internal/middleware/originguard"
	"github.com/qolzam/telar/apps/relay/internal/platform/email"
)

// Kind classifies a RelayError and decides its status class.
type Kind int

const (
	// KindForbidden is an address or origin policy rejection.
	KindForbidden Kind = iota + 1
	// KindValidation is a missing or malformed field.
	KindValidation
	// KindAuth is a signature, freshness or replay rejection.
	KindAuth
	// KindDelivery is a mail transport failure.
	KindDelivery
	// KindInternal is anything else.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

// Error codes
const (
	CodeUnauthorizedIP     = "UNAUTHORIZED_IP"
	CodeInvalidOrigin      = "INVALID_ORIGIN"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeMissingField       = "MISSING_FIELD"
	CodeInvalidTimestamp   = "INVALID_TIMESTAMP"
	CodeBadPayload         = "BAD_PAYLOAD"
	CodeBadEmailFormat     = "BAD_EMAIL_FORMAT"
	CodeAttachmentTooLarge = "ATTACHMENT_TOO_LARGE"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeExpired            = "EXPIRED"
	CodeReplayed           = "REPLAYED"
	CodeDeliveryFailed     = "DELIVERY_FAILED"
	CodeSystemError        = "SYSTEM_ERROR"
)

// Messages returned to clients. Auth failures share one message so the
// response does not tell which check failed.
const (
	MessageForbidden    = "Access denied"
	MessageUnauthorized = "Request authentication failed"
	MessageDelivery     = "Email delivery failed"
	MessageSystem       = "An unexpected error occurred"
)

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RelayError is the terminal outcome of a rejected relay request.
type RelayError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	// Status overrides the status derived from Kind when non-zero.
	Status int
}

// Error implements the error interface
func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RelayError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status for the error
func (e *RelayError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindForbidden, KindAuth:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewForbiddenError creates an address or origin policy error
func NewForbiddenError(code string, cause error) *RelayError {
	return &RelayError{Kind: KindForbidden, Code: code, Message: MessageForbidden, Cause: cause}
}

// NewValidationError creates a 400 error with a client facing message
func NewValidationError(code, message string, cause error) *RelayError {
	return &RelayError{Kind: KindValidation, Code: code, Message: message, Cause: cause}
}

// NewMissingFieldError reports the first absent required field
func NewMissingFieldError(field string) *RelayError {
	return NewValidationError(CodeMissingField, fmt.Sprintf("Missing required field: %s", field), nil)
}

// NewAttachmentTooLargeError reports an attachment over the ceiling (413)
func NewAttachmentTooLargeError(size, limit int64) *RelayError {
	return &RelayError{
		Kind:    KindValidation,
		Code:    CodeAttachmentTooLarge,
		Message: fmt.Sprintf("Attachment exceeds the %d byte limit", limit),
		Cause:   fmt.Errorf("attachment is %d bytes", size),
		Status:  http.StatusRequestEntityTooLarge,
	}
}

// NewAuthError creates an authentication error with the shared generic message
func NewAuthError(code string, cause error) *RelayError {
	return &RelayError{Kind: KindAuth, Code: code, Message: MessageUnauthorized, Cause: cause}
}

// NewDeliveryError wraps a transport failure. The transport detail is kept
// in the message for operators; transports redact credentials themselves.
func NewDeliveryError(cause error) *RelayError {
	message := MessageDelivery
	if cause != nil {
		detail := strings.TrimPrefix(cause.Error(), email.ErrDelivery.Error()+": ")
		message = fmt.Sprintf("%s: %s", MessageDelivery, detail)
	}
	return &RelayError{Kind: KindDelivery, Code: CodeDeliveryFailed, Message: message, Cause: cause}
}

// NewSystemError wraps an unexpected failure
func NewSystemError(cause error) *RelayError {
	return &RelayError{Kind: KindInternal, Code: CodeSystemError, Message: MessageSystem, Cause: cause}
}

// FromError maps any error to a RelayError. RelayErrors pass through and
// the component sentinels map to their codes.
func FromError(err error) *RelayError {
	if err == nil {
		return nil
	}

	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr
	}

	switch {
	case errors.Is(err, originguard.ErrUnauthorizedIP):
		return NewForbiddenError(CodeUnauthorizedIP, err)
	case errors.Is(err, originguard.ErrInvalidOrigin):
		return NewForbiddenError(CodeInvalidOrigin, err)
	case errors.Is(err, signature.ErrInvalidTimestamp):
		return NewValidationError(CodeInvalidTimestamp, "Invalid timestamp", err)
	case errors.Is(err, signature.ErrParse):
		return NewValidationError(CodeBadPayload, "Invalid payload", err)
	case errors.Is(err, signature.ErrInvalidSignature):
		return NewAuthError(CodeInvalidSignature, err)
	case errors.Is(err, signature.ErrExpired), errors.Is(err, signature.ErrFutureTimestamp):
		return NewAuthError(CodeExpired, err)
	case errors.Is(err, replay.ErrReplayed):
		return NewAuthError(CodeReplayed, err)
	case errors.Is(err, email.ErrDelivery):
		return NewDeliveryError(err)
	default:
		return NewSystemError(err)
	}
}

// HandleError writes the JSON error response for err
func HandleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}
	relayErr := FromError(err)
	return c.Status(relayErr.StatusCode()).JSON(ErrorResponse{
		Code:    relayErr.Code,
		Message: relayErr.Message,
	})
}

package types

// HTTP Header Constants
const (
	HeaderOrigin      = "Origin"
	HeaderReferer     = "Referer"
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
)

// Authentication Constants
const (
	// HMACPrefix is accepted (and stripped) in front of a hex signature.
	HMACPrefix = "sha256="
)

// Form field names of the relay submission
const (
	FieldTo         = "to"
	FieldCc         = "cc"
	FieldSubject    = "subject"
	FieldText       = "text"
	FieldPayload    = "payload"
	FieldTimestamp  = "timestamp"
	FieldSignature  = "signature"
	FieldAttachment = "attachment"
)

// Common Values
const (
	NotAvailable = "N/A"
	Yes          = "Yes"
	No           = "No"
)

package validation

import (
	"regexp"
	"strings"

	"github.com/qolzam/telar/apps/relay/internal/types"
	relayErrors "github.com/qolzam/telar/apps/relay/relay/errors"
	"github.com/qolzam/telar/apps/relay/relay/models"
)

const maxEmailLength = 254

// Email validation regex pattern (RFC 5322 compliant)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// RequiredFields lists the submission fields that must be non-empty, in
// the order they are checked.
var RequiredFields = []string{
	types.FieldTo,
	types.FieldSubject,
	types.FieldText,
	types.FieldPayload,
	types.FieldTimestamp,
	types.FieldSignature,
}

// ValidateRequired returns a MISSING_FIELD error naming the first empty
// required field.
func ValidateRequired(sub models.Submission) error {
	values := map[string]string{
		types.FieldTo:        sub.To,
		types.FieldSubject:   sub.Subject,
		types.FieldText:      sub.Text,
		types.FieldPayload:   sub.Payload,
		types.FieldTimestamp: sub.Timestamp,
		types.FieldSignature: sub.Signature,
	}
	for _, field := range RequiredFields {
		if strings.TrimSpace(values[field]) == "" {
			return relayErrors.NewMissingFieldError(field)
		}
	}
	return nil
}

// IsValidEmail reports whether addr is a single bare address.
func IsValidEmail(addr string) bool {
	if addr == "" || len(addr) > maxEmailLength {
		return false
	}
	return emailRegex.MatchString(addr)
}

// ParseAddressList splits a comma or semicolon separated list and drops
// empty entries.
func ParseAddressList(list string) []string {
	parts := strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ';' })
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}

// ValidateRecipients parses To and Cc and checks every address.
func ValidateRecipients(to, cc string) ([]string, []string, error) {
	toAddrs := ParseAddressList(to)
	if len(toAddrs) == 0 {
		return nil, nil, relayErrors.NewValidationError(relayErrors.CodeBadEmailFormat, "Invalid email format", nil)
	}
	ccAddrs := ParseAddressList(cc)

	for _, addr := range append(append([]string{}, toAddrs...), ccAddrs...) {
		if !IsValidEmail(addr) {
			return nil, nil, relayErrors.NewValidationError(relayErrors.CodeBadEmailFormat, "Invalid email format", nil)
		}
	}
	return toAddrs, ccAddrs, nil
}

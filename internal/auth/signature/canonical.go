// Package signature authenticates relay submissions: it canonicalizes the
// signed payload, verifies its HMAC-SHA256 digest and checks the freshness of
// the signed timestamp.
package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gowebpki/jcs"
)

// ErrParse is returned when a payload does not decode to a JSON object.
var ErrParse = errors.New("payload is not a valid JSON object")

// signedDocument is the structure covered by the signature.
type signedDocument struct {
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// ParsePayload decodes the string form of a payload into an object.
// Numbers are kept as json.Number so their text survives canonicalization.
func ParsePayload(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: null", ErrParse)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrParse)
	}
	return payload, nil
}

// Canonicalize serializes {"data": payload, "timestamp": timestamp} with keys
// in ascending order and no insignificant whitespace (RFC 8785). The payload
// may be a decoded object or its JSON string form.
//
// The output matches JSON.stringify of the key-sorted object, so browser
// clients can produce the same bytes without a JCS library.
func Canonicalize(payload any, timestamp int64) ([]byte, error) {
	var data map[string]any

	switch p := payload.(type) {
	case map[string]any:
		data = p
	case string:
		parsed, err := ParsePayload(p)
		if err != nil {
			return nil, err
		}
		data = parsed
	case []byte:
		parsed, err := ParsePayload(string(p))
		if err != nil {
			return nil, err
		}
		data = parsed
	case nil:
		return nil, fmt.Errorf("%w: payload is required", ErrParse)
	default:
		return nil, fmt.Errorf("%w: unsupported payload type %T", ErrParse, payload)
	}

	if data == nil {
		data = map[string]any{}
	}

	intermediate, err := json.Marshal(signedDocument{Data: data, Timestamp: timestamp})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return canonical, nil
}

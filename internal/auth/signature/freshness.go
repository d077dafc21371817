package signature

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrExpired is returned when a timestamp is older than the window.
	ErrExpired = errors.New("timestamp outside valid window")

	// ErrFutureTimestamp is returned when a timestamp is beyond the allowed future skew.
	ErrFutureTimestamp = errors.New("timestamp is in the future")

	// ErrInvalidTimestamp is returned when a timestamp is not an epoch-millisecond number.
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
)

// FreshnessChecker bounds the age of signed timestamps (epoch milliseconds).
type FreshnessChecker struct {
	// Window is the maximum accepted age.
	Window time.Duration

	// MaxFutureSkew rejects timestamps more than this ahead of the server
	// clock. Zero accepts any future timestamp.
	MaxFutureSkew time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Check returns ErrExpired when now - timestamp > Window, and
// ErrFutureTimestamp when MaxFutureSkew is set and exceeded. Bounds are
// compared against the timestamp directly so extreme values cannot wrap.
func (f FreshnessChecker) Check(timestamp int64) error {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	nowMs := now().UnixMilli()

	if oldest := nowMs - f.Window.Milliseconds(); timestamp < oldest {
		return fmt.Errorf("%w: %d is before %d, max age %d ms", ErrExpired, timestamp, oldest, f.Window.Milliseconds())
	}

	if f.MaxFutureSkew > 0 {
		if latest := nowMs + f.MaxFutureSkew.Milliseconds(); timestamp > latest {
			return fmt.Errorf("%w: %d is after %d, max skew %d ms", ErrFutureTimestamp, timestamp, latest, f.MaxFutureSkew.Milliseconds())
		}
	}

	return nil
}

// ParseTimestamp parses an epoch-millisecond timestamp from a form value.
// Integral decimal forms such as "1700000000000.0" are accepted.
func ParseTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}

	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ts, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidTimestamp, value)
	}
	return int64(f), nil
}

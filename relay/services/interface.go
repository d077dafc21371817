package services

import (
	"context"
	"time"

	"github.com/qolzam/telar/apps/relay/relay/models"
)

// RelayService defines the relay operation
type RelayService interface {
	// Relay authenticates req and hands the resulting email to the
	// transport. Failures are *errors.RelayError values.
	Relay(ctx context.Context, req *models.RelayRequest) error
}

// Observer receives relay outcomes, typically a metrics sink
type Observer interface {
	ObserveOutcome(code string)
	ObserveSend(d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveOutcome(string)     {}
func (noopObserver) ObserveSend(time.Duration) {}

// internal/dispatch/errors.go
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rovshanmuradov/solana-fanout/internal/channel"
)

var (
	ErrNoChannels = errors.New("no channels configured")
	ErrNoPayer    = errors.New("payer is required")
)

// AggregateError возвращается только когда не удалось ни одному каналу.
type AggregateError struct {
	Outcomes []channel.Outcome
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Outcomes))
	for _, out := range e.Outcomes {
		reason := "not accepted"
		if out.Err != nil {
			reason = out.Err.Error()
		} else if out.Accepted {
			reason = "status " + out.Status.String()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", out.Channel, reason))
	}
	return fmt.Sprintf("all %d channels failed: %s", len(e.Outcomes), strings.Join(parts, "; "))
}

// Unwrap отдаёт ошибки каналов для errors.Is / errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Outcomes))
	for _, out := range e.Outcomes {
		if out.Err != nil {
			errs = append(errs, out.Err)
		}
	}
	return errs
}

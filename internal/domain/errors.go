package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Components wrap these
// with %w so callers can classify with errors.Is.
var (
	// ErrDataUnavailable marks a failed or empty candle fetch. The affected
	// run or window is FAILED; the surrounding cycle continues.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientSample marks too few trades to score reliably. The
	// candidate or window is excluded from selection, not treated as fatal.
	ErrInsufficientSample = errors.New("insufficient trade sample")

	// ErrPromotionConflict marks a concurrent promotion attempt. Retried
	// once with fresh state, then surfaced as a rejection.
	ErrPromotionConflict = errors.New("concurrent promotion conflict")

	// ErrCancelled marks cooperative cancellation. Partial results are
	// preserved.
	ErrCancelled = errors.New("cancelled")
)

// SimulationError reports malformed config or candle input. It aborts only
// the affected simulation.
type SimulationError struct {
	Symbol string
	Reason string
}

func (e *SimulationError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("simulation error: %s", e.Reason)
	}
	return fmt.Sprintf("simulation error (%s): %s", e.Symbol, e.Reason)
}

// NewSimulationError builds a SimulationError with a formatted reason.
func NewSimulationError(symbol, format string, args ...any) *SimulationError {
	return &SimulationError{Symbol: symbol, Reason: fmt.Sprintf(format, args...)}
}

// IsSimulationError reports whether err is (or wraps) a SimulationError.
func IsSimulationError(err error) bool {
	var se *SimulationError
	return errors.As(err, &se)
}

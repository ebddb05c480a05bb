// Package indicator provides technical indicator calculations over price series.
//
// Every function is pure: it takes index-aligned []float64 input and returns
// fresh slices of the same length. Nothing here mutates its arguments, so a
// Set computed from an immutable PriceSeries snapshot can be shared freely.
package indicator

import (
	"errors"
	"fmt"
)

// ErrInsufficientData matches any *InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports a series shorter than an indicator's lookback.
type InsufficientDataError struct {
	Indicator string
	Need      int
	Have      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d samples, have %d", e.Indicator, e.Need, e.Have)
}

// Is lets errors.Is(err, ErrInsufficientData) succeed.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

func requireLen(name string, have, need int) error {
	if have < need {
		return &InsufficientDataError{Indicator: name, Need: need, Have: have}
	}
	return nil
}

// Package settings stores runtime switches that operators can flip without a
// redeploy.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
)

// KeyAutoProcessing is the setting that gates the single-record trigger
const KeyAutoProcessing = "auto_processing_enabled"

// Provider reads and writes the auto-processing switch
type Provider interface {
	AutoProcessingEnabled(ctx context.Context) (bool, error)
	SetAutoProcessing(ctx context.Context, enabled bool) error
}

// Static keeps the switch in memory. It starts from the configured default.
type Static struct {
	enabled atomic.Bool
}

// NewStatic creates a Static provider
func NewStatic(enabled bool) *Static {
	s := &Static{}
	s.enabled.Store(enabled)
	return s
}

// AutoProcessingEnabled returns the current value
func (s *Static) AutoProcessingEnabled(context.Context) (bool, error) {
	return s.enabled.Load(), nil
}

// SetAutoProcessing updates the value
func (s *Static) SetAutoProcessing(_ context.Context, enabled bool) error {
	s.enabled.Store(enabled)
	return nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value %q for setting %s: %w", value, key, err)
	}
	return b, nil
}

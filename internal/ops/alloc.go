package ops

import (
	"context"
	"errors"
	"fmt"

	"graf/internal/bands"
)

// ErrBandExhausted is returned when a band has no free id above its highest
// allocated one.
var ErrBandExhausted = errors.New("node id band exhausted")

// IDSource reports the highest node id within a range.
type IDSource interface {
	HighestNodeID(ctx context.Context, min, max int64) (int64, bool, error)
}

// AllocateNodeID returns the id for a new node in band: one past the highest
// id already in the band, or the band minimum when the band is empty.
// Gaps left by deletions below the highest id are not reused.
func AllocateNodeID(ctx context.Context, src IDSource, band bands.Band) (int64, error) {
	if band.Min >= band.Max {
		return 0, fmt.Errorf("%w: %s is empty", ErrBandExhausted, band)
	}

	highest, found, err := src.HighestNodeID(ctx, band.Min, band.Max)
	if err != nil {
		return 0, fmt.Errorf("finding highest node id: %w", err)
	}
	if !found {
		return band.Min, nil
	}
	next := highest + 1
	if !band.Contains(next) {
		return 0, fmt.Errorf("%w: %s, highest id %d", ErrBandExhausted, band, highest)
	}
	return next, nil
}

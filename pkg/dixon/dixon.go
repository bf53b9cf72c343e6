// Package dixon implements the two-point Dixon combination that separates
// water and fat signal from an in-phase / out-of-phase MRI acquisition pair.
//
// The combination is pointwise arithmetic over pre-aligned images:
//
//	water = (in + out) / 2
//	fat   = (in - out) / 2
//
// Fat may contain negative samples where the out-of-phase signal exceeds
// the in-phase signal at a pixel. Those values are preserved here; the
// contrast enhancement stage is the only place allowed to rescale them.
package dixon

import (
	"errors"
	"fmt"

	"dixonsep/internal/models"
)

// ErrDimensionMismatch reports that the two acquisitions do not share
// dimensions. The combiner never resizes or broadcasts; a mismatched pair
// is a fatal input error.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Separate computes the water and fat images from an in-phase and
// out-of-phase pair of identical dimensions. Inputs are not modified.
func Separate(inPhase, outOfPhase *models.Image) (water, fat *models.Image, err error) {
	if !inPhase.SameSize(outOfPhase) {
		return nil, nil, fmt.Errorf("%w: in-phase is %dx%d, out-of-phase is %dx%d",
			ErrDimensionMismatch,
			inPhase.Width, inPhase.Height,
			outOfPhase.Width, outOfPhase.Height)
	}

	water = models.NewImage(inPhase.Width, inPhase.Height)
	fat = models.NewImage(inPhase.Width, inPhase.Height)

	for i := range inPhase.Data {
		water.Data[i] = (inPhase.Data[i] + outOfPhase.Data[i]) / 2
		fat.Data[i] = (inPhase.Data[i] - outOfPhase.Data[i]) / 2
	}

	return water, fat, nil
}

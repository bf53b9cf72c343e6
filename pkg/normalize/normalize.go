// Package normalize implements min-max intensity rescaling.
//
// Every stage of the separation pipeline that needs a canonical intensity
// range goes through Normalize, so the scale choice (1.0 for the float
// pipeline, 255 for 8-bit display) is made once in the configuration and
// applied uniformly.
package normalize

import (
	"fmt"

	"dixonsep/internal/models"
)

// Normalize linearly rescales an image so its minimum maps to 0 and its
// maximum maps to targetMax. The input may contain negative values (a fat
// image from the combiner, for instance); rescaling uses the observed
// minimum and maximum, never an assumed range.
//
// A constant image has no range to stretch; it maps to an all-zero image
// of the same shape rather than dividing by zero.
func Normalize(img *models.Image, targetMax float64) (*models.Image, error) {
	if targetMax <= 0 {
		return nil, fmt.Errorf("target range must be positive, got %v", targetMax)
	}

	out := models.NewImage(img.Width, img.Height)

	min, max := img.MinMax()
	if max == min {
		return out, nil
	}

	scale := targetMax / (max - min)
	for i, v := range img.Data {
		out.Data[i] = (v - min) * scale
	}

	return out, nil
}

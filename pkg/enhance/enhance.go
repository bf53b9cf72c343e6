// Package enhance implements contrast enhancement for displaying the
// combiner's water and fat outputs: min-max renormalization followed by
// histogram equalization over a fixed number of discrete levels.
package enhance

import (
	"fmt"

	"dixonsep/internal/models"
	"dixonsep/pkg/normalize"
)

// Enhancer stretches combiner outputs for display. Bin count and target
// range are fixed at construction and shared by every image it processes.
type Enhancer struct {
	targetMax float64
	bins      int
}

// NewEnhancer creates an enhancer producing images in [0, targetMax] and
// equalizing over the given number of histogram bins. 256 bins matches the
// 8-bit display depth the separation results are rendered at.
func NewEnhancer(targetMax float64, bins int) (*Enhancer, error) {
	if targetMax <= 0 {
		return nil, fmt.Errorf("target range must be positive, got %v", targetMax)
	}
	if bins < 2 {
		return nil, fmt.Errorf("bins must be at least 2, got %d", bins)
	}

	return &Enhancer{targetMax: targetMax, bins: bins}, nil
}

// Enhance renormalizes an image to the canonical range and equalizes its
// histogram so the output intensity distribution is approximately uniform.
// The input may contain negative samples and an arbitrary range; the actual
// minimum and maximum drive the renormalization.
//
// A constant image has a degenerate single-bin histogram; it is returned
// normalized but otherwise unchanged.
func (e *Enhancer) Enhance(img *models.Image) (*models.Image, error) {
	normalized, err := normalize.Normalize(img, e.targetMax)
	if err != nil {
		return nil, fmt.Errorf("failed to renormalize for enhancement: %v", err)
	}

	min, max := normalized.MinMax()
	if max == min {
		return normalized, nil
	}

	// Accumulate the intensity histogram over e.bins discrete levels
	hist := make([]float64, e.bins)
	binWidth := (max - min) / float64(e.bins)
	for _, v := range normalized.Data {
		binIdx := int((v - min) / binWidth)
		if binIdx >= e.bins {
			binIdx = e.bins - 1
		} else if binIdx < 0 {
			binIdx = 0
		}
		hist[binIdx]++
	}

	// Build the cumulative distribution and remap each level through it.
	// Subtracting the first non-empty bin's mass anchors the darkest
	// occupied level at 0, mirroring the classic equalizeHist formulation.
	cdf := make([]float64, e.bins)
	total := 0.0
	for i, count := range hist {
		total += count
		cdf[i] = total
	}

	cdfMin := 0.0
	for _, c := range cdf {
		if c > 0 {
			cdfMin = c
			break
		}
	}

	lookup := make([]float64, e.bins)
	denom := total - cdfMin
	if denom <= 0 {
		// All mass in one bin; nothing to redistribute
		return normalized, nil
	}
	for i := range lookup {
		lookup[i] = (cdf[i] - cdfMin) / denom * e.targetMax
	}

	out := models.NewImage(img.Width, img.Height)
	for i, v := range normalized.Data {
		binIdx := int((v - min) / binWidth)
		if binIdx >= e.bins {
			binIdx = e.bins - 1
		} else if binIdx < 0 {
			binIdx = 0
		}
		out.Data[i] = lookup[binIdx]
	}

	return out, nil
}

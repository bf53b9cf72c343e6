// Package denoise implements Gaussian smoothing for acquisition noise
// suppression. The blur runs as two separable 1D convolution passes with
// reflect-101 border handling (edge samples mirror inward without repeating
// the border pixel), so the output at image borders is well defined.
package denoise

import (
	"fmt"
	"math"

	"dixonsep/internal/models"
)

// Filter is a 2D Gaussian blur with fixed kernel parameters.
// Parameters are validated once at construction; filtering itself
// cannot fail.
type Filter struct {
	kernel []float64
	radius int
}

// NewFilter builds a Gaussian filter from a kernel size and standard
// deviation. The size must be a positive odd integer. A sigma of zero
// derives the deviation from the kernel size using the OpenCV rule
// sigma = 0.3*((size-1)*0.5 - 1) + 0.8, which the reference acquisition
// protocol relies on.
func NewFilter(size int, sigma float64) (*Filter, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("kernel size must be a positive odd integer, got %d", size)
	}
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("sigma must be finite and non-negative, got %v", sigma)
	}

	if sigma == 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}

	return &Filter{
		kernel: gaussianKernel(size, sigma),
		radius: size / 2,
	}, nil
}

// gaussianKernel samples a 1D Gaussian at integer offsets and normalizes
// the weights to sum to 1, so filtering preserves the mean intensity.
func gaussianKernel(size int, sigma float64) []float64 {
	kernel := make([]float64, size)
	radius := size / 2

	sum := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += kernel[i]
	}

	for i := range kernel {
		kernel[i] /= sum
	}

	return kernel
}

// Kernel returns a copy of the normalized 1D kernel weights
func (f *Filter) Kernel() []float64 {
	out := make([]float64, len(f.kernel))
	copy(out, f.kernel)
	return out
}

// Apply blurs an image and returns a new image of the same dimensions.
// Smoothing may push samples slightly outside the input's original range;
// downstream normalization absorbs that.
func (f *Filter) Apply(img *models.Image) *models.Image {
	// Horizontal pass
	tmp := models.NewImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			acc := 0.0
			for k := -f.radius; k <= f.radius; k++ {
				sx := reflect101(x+k, img.Width)
				acc += img.At(sx, y) * f.kernel[k+f.radius]
			}
			tmp.Set(x, y, acc)
		}
	}

	// Vertical pass
	out := models.NewImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			acc := 0.0
			for k := -f.radius; k <= f.radius; k++ {
				sy := reflect101(y+k, img.Height)
				acc += tmp.At(x, sy) * f.kernel[k+f.radius]
			}
			out.Set(x, y, acc)
		}
	}

	return out
}

// reflect101 maps an out-of-bounds coordinate back into [0, n) by mirroring
// around the border pixel: -1 -> 1, n -> n-2. A 1-wide axis has nothing to
// mirror into and always resolves to 0.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

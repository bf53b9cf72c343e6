package normalize

import (
	"math"
	"testing"

	"dixonsep/internal/models"
)

const tolerance = 1e-12

func makeImage(t *testing.T, data []float64, width, height int) *models.Image {
	img, err := models.FromPixels(data, width, height)
	if err != nil {
		t.Fatalf("Failed to build test image: %v", err)
	}
	return img
}

// TestNormalizeRange verifies the normalization post-condition: for any
// non-constant input the output spans exactly [0, targetMax].
func TestNormalizeRange(t *testing.T) {
	targets := []float64{1.0, 255.0}

	for _, target := range targets {
		img := makeImage(t, []float64{100, 150, 200, 175}, 2, 2)

		out, err := Normalize(img, target)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}

		min, max := out.MinMax()
		if math.Abs(min) > tolerance {
			t.Errorf("Expected min=0 for target %v, got %g", target, min)
		}
		if math.Abs(max-target) > tolerance {
			t.Errorf("Expected max=%v, got %g", target, max)
		}
	}
}

// TestNormalizeFormula verifies the linear rescaling at a known midpoint
func TestNormalizeFormula(t *testing.T) {
	img := makeImage(t, []float64{0, 50, 100, 100}, 2, 2)

	out, err := Normalize(img, 1.0)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if math.Abs(out.At(1, 0)-0.5) > tolerance {
		t.Errorf("Expected midpoint to map to 0.5, got %f", out.At(1, 0))
	}
}

// TestNormalizeNegativeInput verifies that the actual minimum drives the
// rescaling, not an assumed non-negative range. Fat images from the
// combiner routinely contain negative samples.
func TestNormalizeNegativeInput(t *testing.T) {
	img := makeImage(t, []float64{-0.5, 0, 0.25, 0.5}, 2, 2)

	out, err := Normalize(img, 1.0)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if math.Abs(out.At(0, 0)) > tolerance {
		t.Errorf("Expected most negative sample to map to 0, got %f", out.At(0, 0))
	}
	if math.Abs(out.At(1, 1)-1.0) > tolerance {
		t.Errorf("Expected maximum sample to map to 1, got %f", out.At(1, 1))
	}
}

// TestNormalizeConstantImage verifies the degenerate-range fallback:
// a constant image maps to zeros instead of dividing by zero
func TestNormalizeConstantImage(t *testing.T) {
	img := models.NewImage(4, 4)
	for i := range img.Data {
		img.Data[i] = 42.0
	}

	out, err := Normalize(img, 1.0)
	if err != nil {
		t.Fatalf("Normalize failed on constant image: %v", err)
	}

	for i, v := range out.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Constant image produced non-finite value at %d: %f", i, v)
		}
		if v != 0 {
			t.Errorf("Expected zero output at %d, got %f", i, v)
		}
	}
}

func TestNormalizeInvalidTarget(t *testing.T) {
	img := models.NewImage(2, 2)

	if _, err := Normalize(img, 0); err == nil {
		t.Error("Expected error for zero target range, got nil")
	}
	if _, err := Normalize(img, -1); err == nil {
		t.Error("Expected error for negative target range, got nil")
	}
}

// TestNormalizeDoesNotMutateInput verifies the pure-function contract
func TestNormalizeDoesNotMutateInput(t *testing.T) {
	img := makeImage(t, []float64{1, 2, 3, 4}, 2, 2)
	original := img.Clone()

	if _, err := Normalize(img, 255.0); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	for i := range img.Data {
		if img.Data[i] != original.Data[i] {
			t.Fatalf("Normalize mutated its input at index %d", i)
		}
	}
}

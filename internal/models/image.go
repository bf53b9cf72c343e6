package models

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Image is a single grayscale MRI acquisition stored as row-major float64
// samples. All pipeline stages consume and produce this type; a stage never
// mutates its input, it allocates a new Image instead.
type Image struct {
	// Data holds the pixel intensities in row-major order (y*Width + x)
	Data []float64

	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int
}

// Metadata describes a loaded acquisition beyond raw pixels
type Metadata struct {
	// Filename is the source file the image was decoded from
	Filename string

	// RowSpacing and ColSpacing are the physical pixel spacing in mm,
	// taken from the DICOM PixelSpacing attribute (0 when absent)
	RowSpacing float64
	ColSpacing float64

	// BitsStored is the stored bit depth of the acquisition
	// (range hint for display scaling; 0 when absent)
	BitsStored int
}

// Study is a matched in-phase / out-of-phase acquisition pair.
// Both images are guaranteed to share dimensions by the loader.
type Study struct {
	InPhase    *Image
	OutOfPhase *Image

	InPhaseMeta    Metadata
	OutOfPhaseMeta Metadata
}

// NewImage allocates a zero-valued image of the given dimensions
func NewImage(width, height int) *Image {
	return &Image{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// FromPixels wraps existing row-major pixel data in an Image.
// It returns an error if the data length does not match the dimensions.
func FromPixels(data []float64, width, height int) (*Image, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("pixel data length %d does not match %dx%d image", len(data), width, height)
	}
	return &Image{Data: data, Width: width, Height: height}, nil
}

// At returns the sample at column x, row y
func (img *Image) At(x, y int) float64 {
	return img.Data[y*img.Width+x]
}

// Set stores a sample at column x, row y
func (img *Image) Set(x, y int, v float64) {
	img.Data[y*img.Width+x] = v
}

// Clone returns a deep copy of the image
func (img *Image) Clone() *Image {
	out := NewImage(img.Width, img.Height)
	copy(out.Data, img.Data)
	return out
}

// SameSize reports whether two images share dimensions
func (img *Image) SameSize(other *Image) bool {
	return img.Width == other.Width && img.Height == other.Height
}

// MinMax returns the smallest and largest sample values.
// A zero-pixel image yields (0, 0).
func (img *Image) MinMax() (min, max float64) {
	if len(img.Data) == 0 {
		return 0, 0
	}

	return floats.Min(img.Data), floats.Max(img.Data)
}

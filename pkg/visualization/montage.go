// Package visualization renders separation results for visual comparison.
// The main entry point is Montage, which arranges the original pair and the
// derived water/fat images into a labeled grid and writes it as a single
// JPEG, the side-by-side layout radiologists review the separation with.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"dixonsep/internal/models"
)

const (
	panelMargin = 8
	labelHeight = 18
)

// Panel is one cell of the montage: a float image plus its caption
type Panel struct {
	Label string
	Image *models.Image
}

// Montage lays out labeled panels in a fixed-column grid
type Montage struct {
	// columns is the number of panels per row
	columns int

	// maxPanelWidth caps the rendered width of each panel; panels wider
	// than this are downscaled proportionally. Zero keeps the native size.
	maxPanelWidth int

	// displayMax is the upper bound of the pipeline's intensity range,
	// used to map float samples to grayscale
	displayMax float64
}

// NewMontage creates a montage renderer. displayMax must match the
// pipeline's configured target range so panels render at full contrast.
func NewMontage(columns, maxPanelWidth int, displayMax float64) (*Montage, error) {
	if columns < 1 {
		return nil, fmt.Errorf("montage needs at least 1 column, got %d", columns)
	}
	if displayMax <= 0 {
		return nil, fmt.Errorf("display range must be positive, got %v", displayMax)
	}
	return &Montage{
		columns:       columns,
		maxPanelWidth: maxPanelWidth,
		displayMax:    displayMax,
	}, nil
}

// Render composes the panels into a single image. All panels must share
// dimensions, which the pipeline guarantees for a single study.
func (m *Montage) Render(panels []Panel) (image.Image, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("no panels to render")
	}

	first := panels[0].Image
	for _, p := range panels {
		if !p.Image.SameSize(first) {
			return nil, fmt.Errorf("panel %q is %dx%d, expected %dx%d",
				p.Label, p.Image.Width, p.Image.Height, first.Width, first.Height)
		}
	}

	cellW := first.Width
	cellH := first.Height
	if m.maxPanelWidth > 0 && cellW > m.maxPanelWidth {
		cellH = cellH * m.maxPanelWidth / cellW
		cellW = m.maxPanelWidth
	}

	rows := (len(panels) + m.columns - 1) / m.columns
	canvasW := m.columns*(cellW+panelMargin) + panelMargin
	canvasH := rows*(cellH+labelHeight+panelMargin) + panelMargin

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for i, p := range panels {
		col := i % m.columns
		row := i / m.columns

		x0 := panelMargin + col*(cellW+panelMargin)
		y0 := panelMargin + row*(cellH+labelHeight+panelMargin)

		var panelImg image.Image = m.toGray16(p.Image)
		if cellW != p.Image.Width {
			panelImg = transform.Resize(panelImg, cellW, cellH, transform.Linear)
		}

		rect := image.Rect(x0, y0+labelHeight, x0+cellW, y0+labelHeight+cellH)
		draw.Draw(canvas, rect, panelImg, panelImg.Bounds().Min, draw.Src)

		drawLabel(canvas, p.Label, x0, y0+labelHeight-5)
	}

	return canvas, nil
}

// WriteJPEG renders the panels and writes the montage to path
func (m *Montage) WriteJPEG(panels []Panel, path string) error {
	img, err := m.Render(panels)
	if err != nil {
		return fmt.Errorf("failed to render montage: %v", err)
	}

	return writeJPEG(img, path)
}

// SaveImage writes a single float image as a grayscale JPEG, used for
// intermediary stage dumps.
func (m *Montage) SaveImage(img *models.Image, path string) error {
	return writeJPEG(m.toGray16(img), path)
}

// toGray16 maps float samples in [0, displayMax] to 16-bit grayscale,
// clamping anything outside the display range
func (m *Montage) toGray16(img *models.Image) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.At(x, y) / m.displayMax
			value := uint16(math.Max(0, math.Min(65535, v*65535)))
			out.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	return out
}

// drawLabel draws a caption in white above a panel
func drawLabel(dst draw.Image, label string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func writeJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %v", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode image: %v", err)
	}

	return nil
}

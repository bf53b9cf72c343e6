// Package dicomio loads MRI acquisitions from DICOM files into the
// pipeline's float image representation. Only reading is supported; the
// pipeline never writes DICOM.
package dicomio

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dixonsep/internal/models"
)

// LoadImage decodes the first pixel-data frame of a DICOM file into a
// grayscale float image together with the acquisition metadata relevant
// downstream (pixel spacing, stored bit depth). Sample values are scaled
// to [0, 1] from the decoder's 16-bit grayscale output.
func LoadImage(path string) (*models.Image, models.Metadata, error) {
	meta := models.Metadata{Filename: filepath.Base(path)}

	dataset, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, meta, fmt.Errorf("failed to parse DICOM file %s: %v", path, err)
	}

	pixelElem, err := dataset.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, meta, fmt.Errorf("no pixel data in %s: %v", path, err)
	}

	info := dicom.MustGetPixelDataInfo(pixelElem.Value)
	if len(info.Frames) == 0 {
		return nil, meta, fmt.Errorf("no frames in pixel data of %s", path)
	}

	frameImg, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, meta, fmt.Errorf("failed to decode frame of %s: %v", path, err)
	}

	fillMetadata(&meta, &dataset)

	return FromGray(frameImg), meta, nil
}

// LoadPair loads a matched in-phase / out-of-phase acquisition pair.
// The two images must share dimensions; a mismatched pair cannot be
// combined and is rejected before any processing starts.
func LoadPair(inPhasePath, outOfPhasePath string) (*models.Study, error) {
	inPhase, inMeta, err := LoadImage(inPhasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load in-phase image: %v", err)
	}

	outOfPhase, outMeta, err := LoadImage(outOfPhasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load out-of-phase image: %v", err)
	}

	if !inPhase.SameSize(outOfPhase) {
		return nil, fmt.Errorf("acquisition pair dimensions differ: in-phase is %dx%d, out-of-phase is %dx%d",
			inPhase.Width, inPhase.Height, outOfPhase.Width, outOfPhase.Height)
	}

	return &models.Study{
		InPhase:        inPhase,
		OutOfPhase:     outOfPhase,
		InPhaseMeta:    inMeta,
		OutOfPhaseMeta: outMeta,
	}, nil
}

// FromGray converts a decoded grayscale frame to the float representation
// used by the pipeline, scaling 16-bit samples to the [0, 1] range.
func FromGray(img image.Image) *models.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	out := models.NewImage(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.Data[y*width+x] = float64(r) / 65535.0
		}
	}

	return out
}

// fillMetadata extracts PixelSpacing and BitsStored when present.
// Both attributes are optional range hints; absence leaves the zero value.
func fillMetadata(meta *models.Metadata, dataset *dicom.Dataset) {
	if elem, err := dataset.FindElementByTag(tag.PixelSpacing); err == nil {
		if vals, ok := elem.Value.GetValue().([]string); ok && len(vals) == 2 {
			if row, err := strconv.ParseFloat(vals[0], 64); err == nil {
				meta.RowSpacing = row
			}
			if col, err := strconv.ParseFloat(vals[1], 64); err == nil {
				meta.ColSpacing = col
			}
		}
	}

	if elem, err := dataset.FindElementByTag(tag.BitsStored); err == nil {
		if vals, ok := elem.Value.GetValue().([]int); ok && len(vals) == 1 {
			meta.BitsStored = vals[0]
		}
	}
}

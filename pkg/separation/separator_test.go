package separation

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"dixonsep/internal/models"
)

func testParams(t *testing.T) *Params {
	dir := t.TempDir()
	return &Params{
		OutputFile:      filepath.Join(dir, "separation.jpg"),
		TargetMax:       1.0,
		KernelSize:      5,
		Sigma:           0,
		Bins:            256,
		NumCores:        2,
		IntermediaryDir: filepath.Join(dir, "intermediary"),
	}
}

// elevatedPairStudy builds the scenario from the separation contract:
// a 4x4 in-phase image of value 100 with one elevated pixel of 200, and
// an out-of-phase image shifted uniformly by +10
func elevatedPairStudy(t *testing.T) (*models.Study, int, int) {
	hotX, hotY := 2, 1

	inPhase := models.NewImage(4, 4)
	outOfPhase := models.NewImage(4, 4)
	for i := range inPhase.Data {
		inPhase.Data[i] = 100
		outOfPhase.Data[i] = 110
	}
	inPhase.Set(hotX, hotY, 200)
	outOfPhase.Set(hotX, hotY, 210)

	return &models.Study{
		InPhase:    inPhase,
		OutOfPhase: outOfPhase,
	}, hotX, hotY
}

func TestNewSeparatorRejectsInvalidParameters(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"even kernel", func(p *Params) { p.KernelSize = 4 }},
		{"negative sigma", func(p *Params) { p.Sigma = -1 }},
		{"zero target range", func(p *Params) { p.TargetMax = 0 }},
		{"single bin", func(p *Params) { p.Bins = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := testParams(t)
			tc.mutate(params)

			if _, err := NewSeparator(params); err == nil {
				t.Error("Expected parameter error, got nil")
			}
		})
	}
}

func TestProcessMissingInput(t *testing.T) {
	params := testParams(t)
	params.InPhaseFile = filepath.Join(t.TempDir(), "missing-in.dcm")
	params.OutOfPhaseFile = filepath.Join(t.TempDir(), "missing-out.dcm")

	s, err := NewSeparator(params)
	if err != nil {
		t.Fatalf("NewSeparator failed: %v", err)
	}

	if err := s.Process(); err == nil {
		t.Error("Expected error for missing input files, got nil")
	}
}

// TestProcessStudyElevatedPixel runs the full numeric pipeline on the
// elevated-pixel scenario and checks the separation outcome: the water
// image is brightest at the elevated pixel, and the fat image is
// near-uniform because the phase difference is uniform
func TestProcessStudyElevatedPixel(t *testing.T) {
	params := testParams(t)
	s, err := NewSeparator(params)
	if err != nil {
		t.Fatalf("NewSeparator failed: %v", err)
	}

	study, hotX, hotY := elevatedPairStudy(t)

	if err := s.processStudy(study); err != nil {
		t.Fatalf("processStudy failed: %v", err)
	}

	results := s.Results()

	t.Run("ShapesPreserved", func(t *testing.T) {
		images := []*models.Image{
			results.InPhase, results.OutOfPhase,
			results.RawWater, results.RawFat,
			results.Water, results.Fat,
			results.FilteredWater, results.FilteredFat,
		}
		for i, img := range images {
			if img == nil {
				t.Fatalf("Result image %d is nil", i)
			}
			if img.Width != 4 || img.Height != 4 {
				t.Errorf("Result image %d is %dx%d, expected 4x4", i, img.Width, img.Height)
			}
		}
	})

	t.Run("WaterHighlightsElevatedPixel", func(t *testing.T) {
		hot := results.Water.At(hotX, hotY)
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if x == hotX && y == hotY {
					continue
				}
				if results.Water.At(x, y) >= hot {
					t.Errorf("Water at (%d,%d)=%g not below elevated pixel %g",
						x, y, results.Water.At(x, y), hot)
				}
			}
		}

		if math.Abs(hot-params.TargetMax) > 1e-9 {
			t.Errorf("Expected elevated water pixel at %v, got %g", params.TargetMax, hot)
		}
	})

	t.Run("FilteredWaterSpreadsElevatedSignal", func(t *testing.T) {
		// Blurring spreads the elevated signal, so the filtered water
		// image is non-constant and the elevated pixel stays well above
		// the image mean
		min, max := results.FilteredWater.MinMax()
		if max <= min {
			t.Fatal("Filtered water is constant, expected spread signal")
		}

		mean := 0.0
		for _, v := range results.FilteredWater.Data {
			mean += v
		}
		mean /= float64(len(results.FilteredWater.Data))

		if results.FilteredWater.At(hotX, hotY) <= mean {
			t.Errorf("Filtered water at elevated pixel %g not above mean %g",
				results.FilteredWater.At(hotX, hotY), mean)
		}
	})

	t.Run("FatNearUniform", func(t *testing.T) {
		// A uniform phase shift normalizes away entirely, so the raw fat
		// image is flat and the enhanced fat image falls back to zeros
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if math.Abs(results.RawFat.At(x, y)) > 1e-9 {
					t.Errorf("Raw fat at (%d,%d)=%g, expected ~0", x, y, results.RawFat.At(x, y))
				}
				if math.Abs(results.Fat.At(x, y)) > 1e-9 {
					t.Errorf("Enhanced fat at (%d,%d)=%g, expected 0", x, y, results.Fat.At(x, y))
				}
			}
		}
	})

	t.Run("ReportFinite", func(t *testing.T) {
		report := s.Report()
		values := []float64{
			report.WaterEntropy, report.FatEntropy,
			report.WaterEntropyGain, report.FatEntropyGain,
			report.FilteredWaterSSIM, report.FilteredFatSSIM,
			report.FilteredWaterRMSE, report.FilteredFatRMSE,
			report.WaterContrast, report.FatContrast,
		}
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("Report value %d is not finite: %f", i, v)
			}
		}
	})

	t.Run("Montage", func(t *testing.T) {
		if err := s.SaveMontage(); err != nil {
			t.Fatalf("SaveMontage failed: %v", err)
		}

		info, err := os.Stat(params.OutputFile)
		if err != nil {
			t.Fatalf("Montage file was not created: %v", err)
		}
		if info.Size() == 0 {
			t.Error("Montage file is empty")
		}
	})
}

// TestProcessStudySequentialMatchesParallel verifies per-pixel parallelism
// does not change the numbers: a single-core run must produce results
// identical to a multi-core run
func TestProcessStudySequentialMatchesParallel(t *testing.T) {
	runPipeline := func(cores int) Results {
		params := testParams(t)
		params.NumCores = cores

		s, err := NewSeparator(params)
		if err != nil {
			t.Fatalf("NewSeparator failed: %v", err)
		}

		study, _, _ := elevatedPairStudy(t)
		if err := s.processStudy(study); err != nil {
			t.Fatalf("processStudy failed: %v", err)
		}
		return s.Results()
	}

	sequential := runPipeline(1)
	parallel := runPipeline(4)

	pairs := []struct {
		name string
		a, b *models.Image
	}{
		{"water", sequential.Water, parallel.Water},
		{"fat", sequential.Fat, parallel.Fat},
		{"filtered water", sequential.FilteredWater, parallel.FilteredWater},
		{"filtered fat", sequential.FilteredFat, parallel.FilteredFat},
	}

	for _, p := range pairs {
		for i := range p.a.Data {
			if p.a.Data[i] != p.b.Data[i] {
				t.Errorf("Sequential and parallel %s differ at %d: %g vs %g",
					p.name, i, p.a.Data[i], p.b.Data[i])
			}
		}
	}
}

// TestIntermediaryResults verifies stage dumps land in the expected
// directories when enabled
func TestIntermediaryResults(t *testing.T) {
	params := testParams(t)
	params.SaveIntermediaryResults = true

	s, err := NewSeparator(params)
	if err != nil {
		t.Fatalf("NewSeparator failed: %v", err)
	}

	study, _, _ := elevatedPairStudy(t)
	if err := s.processStudy(study); err != nil {
		t.Fatalf("processStudy failed: %v", err)
	}

	expected := []string{
		"01_input/in_phase.jpg",
		"02_normalized/out_of_phase.jpg",
		"03_denoised/in_phase.jpg",
		"04_combined/water.jpg",
		"05_enhanced/fat_filtered.jpg",
	}

	for _, rel := range expected {
		path := filepath.Join(params.IntermediaryDir, rel)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected intermediary result %s: %v", rel, err)
		}
	}
}

package separation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dixonsep/internal/models"
	"dixonsep/pkg/denoise"
	"dixonsep/pkg/dicomio"
	"dixonsep/pkg/dixon"
	"dixonsep/pkg/enhance"
	"dixonsep/pkg/metrics"
	"dixonsep/pkg/normalize"
	"dixonsep/pkg/visualization"
)

// Params holds the separation parameters. They control input/output and
// the numeric configuration of every pipeline stage.
type Params struct {
	// InPhaseFile and OutOfPhaseFile are the two DICOM acquisitions.
	// The pair must be pre-aligned and share dimensions.
	InPhaseFile    string
	OutOfPhaseFile string

	// OutputFile is the path the result montage is written to
	OutputFile string

	// TargetMax is the canonical intensity range upper bound (1 or 255),
	// applied consistently by every normalization step
	TargetMax float64

	// KernelSize and Sigma configure the Gaussian denoiser. Sigma 0
	// derives the deviation from the kernel size.
	KernelSize int
	Sigma      float64

	// Bins is the histogram equalization level count
	Bins int

	// NumCores specifies how many CPU cores to use for parallel processing
	NumCores int

	// MontagePanelWidth caps the rendered panel width (0 = native)
	MontagePanelWidth int

	// SaveIntermediaryResults determines whether to save intermediary processing results
	SaveIntermediaryResults bool

	// IntermediaryDir is the directory where intermediary results will be saved.
	// Only used when SaveIntermediaryResults is true.
	IntermediaryDir string
}

// Results holds every image the pipeline produces, ready for display
type Results struct {
	// InPhase and OutOfPhase are the normalized input acquisitions
	InPhase    *models.Image
	OutOfPhase *models.Image

	// RawWater and RawFat are the combiner outputs before enhancement.
	// RawFat may contain negative samples; they are preserved here.
	RawWater *models.Image
	RawFat   *models.Image

	// Water and Fat are the enhanced separation of the unfiltered pair
	Water *models.Image
	Fat   *models.Image

	// FilteredWater and FilteredFat are the enhanced separation of the
	// Gaussian-denoised pair
	FilteredWater *models.Image
	FilteredFat   *models.Image
}

// Separator runs the two-point Dixon separation pipeline:
//
//  1. Load the in-phase / out-of-phase DICOM pair
//  2. Normalize both acquisitions to the canonical range
//  3. Gaussian-denoise both (a second, filtered processing chain)
//  4. Dixon-combine the unfiltered and the filtered pair
//  5. Contrast-enhance all four water/fat outputs
//  6. Compute quality metrics
//
// Every stage is a pure transformation; the separator only carries the
// configuration and the accumulated stage outputs.
type Separator struct {
	params *Params

	filter   *denoise.Filter
	enhancer *enhance.Enhancer
	montage  *visualization.Montage

	results Results
	report  metrics.SeparationReport
}

// NewSeparator creates a separator and validates all stage parameters.
// Parameter errors (even kernel size, non-positive range, too few bins)
// surface here rather than mid-pipeline.
func NewSeparator(params *Params) (*Separator, error) {
	filter, err := denoise.NewFilter(params.KernelSize, params.Sigma)
	if err != nil {
		return nil, fmt.Errorf("invalid denoise parameters: %v", err)
	}

	enhancer, err := enhance.NewEnhancer(params.TargetMax, params.Bins)
	if err != nil {
		return nil, fmt.Errorf("invalid enhancement parameters: %v", err)
	}

	montage, err := visualization.NewMontage(2, params.MontagePanelWidth, params.TargetMax)
	if err != nil {
		return nil, fmt.Errorf("invalid montage parameters: %v", err)
	}

	if params.NumCores < 1 {
		params.NumCores = 1
	}

	return &Separator{
		params:   params,
		filter:   filter,
		enhancer: enhancer,
		montage:  montage,
	}, nil
}

// Process runs the complete separation pipeline
func (s *Separator) Process() error {
	if s.params.SaveIntermediaryResults {
		if err := os.MkdirAll(s.params.IntermediaryDir, 0755); err != nil {
			return fmt.Errorf("failed to create intermediary directory: %v", err)
		}
	}

	fmt.Println("Step 1: Loading DICOM acquisition pair...")
	study, err := dicomio.LoadPair(s.params.InPhaseFile, s.params.OutOfPhaseFile)
	if err != nil {
		return fmt.Errorf("failed to load acquisition pair: %v", err)
	}

	fmt.Printf("Loaded %dx%d pair (in-phase: %s, out-of-phase: %s)\n",
		study.InPhase.Width, study.InPhase.Height,
		study.InPhaseMeta.Filename, study.OutOfPhaseMeta.Filename)
	if study.InPhaseMeta.RowSpacing > 0 {
		fmt.Printf("Pixel spacing: %.2fx%.2f mm\n",
			study.InPhaseMeta.RowSpacing, study.InPhaseMeta.ColSpacing)
	}

	return s.processStudy(study)
}

// processStudy runs stages 2-6 on an already loaded study
func (s *Separator) processStudy(study *models.Study) error {
	s.saveIntermediaryResult("01_input", "in_phase", study.InPhase)
	s.saveIntermediaryResult("01_input", "out_of_phase", study.OutOfPhase)

	// Step 2: Normalize both acquisitions
	fmt.Println("Step 2: Normalizing acquisitions...")
	inPhase, outOfPhase, err := s.normalizePair(study)
	if err != nil {
		return err
	}
	s.results.InPhase = inPhase
	s.results.OutOfPhase = outOfPhase
	s.saveIntermediaryResult("02_normalized", "in_phase", inPhase)
	s.saveIntermediaryResult("02_normalized", "out_of_phase", outOfPhase)

	// Step 3: Denoise both acquisitions for the filtered chain.
	// The two blurs are independent pointwise pipelines, so running them
	// concurrently yields identical results to sequential processing.
	fmt.Println("Step 3: Applying Gaussian denoising...")
	var filteredIn, filteredOut *models.Image
	if s.params.NumCores > 1 {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			filteredIn = s.filter.Apply(inPhase)
		}()
		go func() {
			defer wg.Done()
			filteredOut = s.filter.Apply(outOfPhase)
		}()
		wg.Wait()
	} else {
		filteredIn = s.filter.Apply(inPhase)
		filteredOut = s.filter.Apply(outOfPhase)
	}
	s.saveIntermediaryResult("03_denoised", "in_phase", filteredIn)
	s.saveIntermediaryResult("03_denoised", "out_of_phase", filteredOut)

	// Step 4: Dixon combination of both chains
	fmt.Println("Step 4: Computing Dixon water/fat separation...")
	rawWater, rawFat, err := dixon.Separate(inPhase, outOfPhase)
	if err != nil {
		return fmt.Errorf("failed to combine unfiltered pair: %v", err)
	}
	filteredWater, filteredFat, err := dixon.Separate(filteredIn, filteredOut)
	if err != nil {
		return fmt.Errorf("failed to combine filtered pair: %v", err)
	}
	s.results.RawWater = rawWater
	s.results.RawFat = rawFat
	s.saveIntermediaryResult("04_combined", "water", rawWater)
	s.saveIntermediaryResult("04_combined", "fat", rawFat)

	// Step 5: Contrast enhancement of all four outputs
	fmt.Println("Step 5: Enhancing contrast...")
	enhanced, err := s.enhanceAll([]*models.Image{rawWater, rawFat, filteredWater, filteredFat})
	if err != nil {
		return err
	}
	s.results.Water = enhanced[0]
	s.results.Fat = enhanced[1]
	s.results.FilteredWater = enhanced[2]
	s.results.FilteredFat = enhanced[3]
	s.saveIntermediaryResult("05_enhanced", "water", s.results.Water)
	s.saveIntermediaryResult("05_enhanced", "fat", s.results.Fat)
	s.saveIntermediaryResult("05_enhanced", "water_filtered", s.results.FilteredWater)
	s.saveIntermediaryResult("05_enhanced", "fat_filtered", s.results.FilteredFat)

	// Step 6: Quality metrics
	fmt.Println("Step 6: Calculating quality metrics...")
	s.calculateReport(rawWater, rawFat)

	return nil
}

// normalizePair rescales both acquisitions to the canonical range
func (s *Separator) normalizePair(study *models.Study) (*models.Image, *models.Image, error) {
	inPhase, err := normalize.Normalize(study.InPhase, s.params.TargetMax)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to normalize in-phase image: %v", err)
	}

	outOfPhase, err := normalize.Normalize(study.OutOfPhase, s.params.TargetMax)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to normalize out-of-phase image: %v", err)
	}

	return inPhase, outOfPhase, nil
}

// enhanceAll contrast-enhances a batch of combiner outputs, spreading the
// work across the configured cores. Order of the returned slice matches
// the input order.
func (s *Separator) enhanceAll(images []*models.Image) ([]*models.Image, error) {
	type enhanceResult struct {
		idx int
		img *models.Image
		err error
	}

	workers := s.params.NumCores
	if workers > len(images) {
		workers = len(images)
	}

	if workers <= 1 {
		out := make([]*models.Image, len(images))
		for i, img := range images {
			enhanced, err := s.enhancer.Enhance(img)
			if err != nil {
				return nil, fmt.Errorf("failed to enhance output %d: %v", i, err)
			}
			out[i] = enhanced
		}
		return out, nil
	}

	resultChan := make(chan enhanceResult)
	for i, img := range images {
		go func(idx int, img *models.Image) {
			enhanced, err := s.enhancer.Enhance(img)
			resultChan <- enhanceResult{idx: idx, img: enhanced, err: err}
		}(i, img)
	}

	out := make([]*models.Image, len(images))
	for range images {
		res := <-resultChan
		if res.err != nil {
			return nil, fmt.Errorf("failed to enhance output %d: %v", res.idx, res.err)
		}
		out[res.idx] = res.img
	}

	return out, nil
}

// calculateReport fills the quality report from the finished results
func (s *Separator) calculateReport(rawWater, rawFat *models.Image) {
	r := &s.report

	r.WaterEntropy = metrics.Entropy(s.results.Water)
	r.FatEntropy = metrics.Entropy(s.results.Fat)
	r.WaterEntropyGain = r.WaterEntropy - metrics.Entropy(rawWater)
	r.FatEntropyGain = r.FatEntropy - metrics.Entropy(rawFat)

	r.FilteredWaterSSIM = metrics.SSIM(s.results.Water, s.results.FilteredWater, s.params.TargetMax)
	r.FilteredFatSSIM = metrics.SSIM(s.results.Fat, s.results.FilteredFat, s.params.TargetMax)
	r.FilteredWaterRMSE = metrics.RMSE(s.results.Water, s.results.FilteredWater)
	r.FilteredFatRMSE = metrics.RMSE(s.results.Fat, s.results.FilteredFat)

	r.WaterContrast = metrics.MichelsonContrast(s.results.Water)
	r.FatContrast = metrics.MichelsonContrast(s.results.Fat)
}

// SaveMontage writes the standard 3x2 comparison grid: input pair on top,
// unfiltered separation in the middle, filtered separation at the bottom.
func (s *Separator) SaveMontage() error {
	if s.results.Water == nil {
		return fmt.Errorf("no results to render, run Process first")
	}

	panels := []visualization.Panel{
		{Label: "In Phase Image", Image: s.results.InPhase},
		{Label: "Out Phase Image", Image: s.results.OutOfPhase},
		{Label: "Water Image", Image: s.results.Water},
		{Label: "Fat Image", Image: s.results.Fat},
		{Label: "Water Image (Gaussian filter)", Image: s.results.FilteredWater},
		{Label: "Fat Image (Gaussian filter)", Image: s.results.FilteredFat},
	}

	if err := s.montage.WriteJPEG(panels, s.params.OutputFile); err != nil {
		return fmt.Errorf("failed to save montage: %v", err)
	}

	return nil
}

// Results returns the images produced by the last Process run
func (s *Separator) Results() Results {
	return s.results
}

// Report returns the quality metrics of the last Process run
func (s *Separator) Report() metrics.SeparationReport {
	return s.report
}

// saveIntermediaryResult saves one stage output as a grayscale JPEG under
// the intermediary directory. Failures are reported but never abort the
// pipeline; the dumps exist for inspection only.
func (s *Separator) saveIntermediaryResult(stage, name string, img *models.Image) {
	if !s.params.SaveIntermediaryResults {
		return
	}

	path := filepath.Join(s.params.IntermediaryDir, stage, name+".jpg")
	if err := s.montage.SaveImage(img, path); err != nil {
		fmt.Printf("Warning: failed to save intermediary result %s/%s: %v\n", stage, name, err)
	}
}

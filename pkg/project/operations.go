package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/menta2k/slides-crop/pkg/access"
	"github.com/menta2k/slides-crop/pkg/batch"
	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/slide"
	"github.com/menta2k/slides-crop/pkg/types"
)

// GeneratePreviews loads every slide and stores a preview at resolution.
// Slides are processed concurrently, one goroutine per slide. Slides whose
// preview could not be generated keep their previous state.
func (p *Project) GeneratePreviews(ctx context.Context, c codec.ImageCodec, store slide.PreviewStore, resolution float64, workers int, progress batch.ProgressFunc) error {
	slides := p.Slides()
	_, err := batch.Run(ctx, len(slides), workers, func(ctx context.Context, i int) error {
		return slides[i].GeneratePreview(c, store, resolution)
	}, progress)
	return err
}

// ReleasePreviews drops every slide's preview artifact.
func (p *Project) ReleasePreviews(store slide.PreviewStore) error {
	var errs []error
	for _, s := range p.slides {
		if err := s.ReleasePreview(store); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Export writes the crops of the slides at indices (all slides when empty)
// into dir. Failures on one file never stop the batch; the report lists what
// was written, what failed and what was skipped after cancellation. A nil
// checker checks the local filesystem.
func (p *Project) Export(ctx context.Context, dir string, c codec.ImageCodec, format codec.Format, indices []int, workers int, checker access.Checker, progress batch.ProgressFunc) (types.ExportReport, error) {
	report := types.ExportReport{Directory: dir}

	if err := checkDirWritable(dir, checker); err != nil {
		return report, err
	}

	targets, err := p.exportTargets(indices)
	if err != nil {
		return report, err
	}

	type result struct {
		exported, failed []string
	}
	results := make([]result, len(targets))

	summary, err := batch.Run(ctx, len(targets), workers, func(ctx context.Context, i int) (err error) {
		defer func() {
			if r := recover(); r != nil {
				results[i] = result{failed: targets[i].ExportNamesFor(format)}
				err = fmt.Errorf("%s: panic while exporting: %v", targets[i].FileName, r)
			}
		}()
		exported, failed, err := targets[i].ExportCrops(dir, c, format)
		results[i] = result{exported: exported, failed: failed}
		return err
	}, progress)

	skipped := make(map[int]bool, len(summary.Skipped))
	for _, i := range summary.Skipped {
		skipped[i] = true
	}
	for i, r := range results {
		if skipped[i] {
			report.Skipped = append(report.Skipped, targets[i].ExportNamesFor(format)...)
			continue
		}
		report.Exported = append(report.Exported, r.exported...)
		report.Failed = append(report.Failed, r.failed...)
	}
	return report, err
}

func (p *Project) exportTargets(indices []int) ([]*slide.Slide, error) {
	if len(indices) == 0 {
		return p.Slides(), nil
	}
	targets := make([]*slide.Slide, 0, len(indices))
	seen := make(map[int]bool, len(indices))
	for _, i := range indices {
		s, err := p.Slide(i)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		if seen[i] {
			continue
		}
		seen[i] = true
		targets = append(targets, s)
	}
	return targets, nil
}

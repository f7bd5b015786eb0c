package slide

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/geometry"
)

// PreviewStore holds temporary preview artifacts.
type PreviewStore interface {
	Put(img image.Image, sourceName string) (string, error)
	Remove(path string) error
}

// GeneratePreview loads the full image, records its dimensions and stores a
// downsampled copy at resolution. At resolution 1 no preview is generated and
// selections are displayed in full-resolution coordinates.
func (s *Slide) GeneratePreview(c codec.ImageCodec, store PreviewStore, resolution float64) error {
	if geometry.ScaleDenominator(resolution) == 1 {
		if err := s.LoadDimensions(c); err != nil {
			return err
		}
		return s.ReleasePreview(store)
	}

	img, err := c.Decode(s.Path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", s.FileName, err)
	}
	s.Width, s.Height = img.Bounds().Dx(), img.Bounds().Dy()
	s.clampAll()

	pw, ph := geometry.PreviewSize(s.Width, s.Height, resolution)
	path, err := store.Put(c.Resize(img, pw, ph), s.FileName)
	if err != nil {
		return err
	}
	if err := s.ReleasePreview(store); err != nil {
		return errors.Join(err, store.Remove(path))
	}
	s.preview = &Preview{
		Path:   path,
		Width:  pw,
		Height: ph,
		Scale:  geometry.ScaleDenominator(resolution),
	}
	return nil
}

// Preview returns the current preview, if any
func (s *Slide) Preview() (Preview, bool) {
	if s.preview == nil {
		return Preview{}, false
	}
	return *s.preview, true
}

// ReleasePreview deletes the preview artifact.
func (s *Slide) ReleasePreview(store PreviewStore) error {
	if s.preview == nil {
		return nil
	}
	path := s.preview.Path
	s.preview = nil
	if store == nil {
		return nil
	}
	return store.Remove(path)
}

// ScaleDenominator is the factor between full-resolution and displayed
// coordinates: 1 without a preview.
func (s *Slide) ScaleDenominator() int {
	if s.preview == nil {
		return 1
	}
	return s.preview.Scale
}

// PreviewSelections returns the selections in preview coordinates.
func (s *Slide) PreviewSelections() []geometry.PreviewSelection {
	d := s.ScaleDenominator()
	out := make([]geometry.PreviewSelection, len(s.selections))
	for i, sel := range s.selections {
		out[i] = geometry.TransformForPreview(sel, d)
	}
	return out
}

// PreviewPoint converts a point on the displayed preview to image pixels.
func (s *Slide) PreviewPoint(x, y float64) geometry.Point {
	return geometry.PreviewPointToFull(x, y, s.ScaleDenominator())
}

package slide

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/geometry"
)

// ExportCrops writes one cropped image per selection into dir. The source is
// decoded once. A failure on one selection does not stop the others: the
// names that could not be written are returned in failed, and err joins the
// underlying causes. If the source cannot be decoded every name fails.
// The decoded image replaces the recorded dimensions, so selections are
// clamped to the actual pixels before cropping.
func (s *Slide) ExportCrops(dir string, c codec.ImageCodec, format codec.Format) (exported, failed []string, err error) {
	names := s.ExportNamesFor(format)
	if len(names) == 0 {
		return nil, nil, nil
	}

	img, derr := c.Decode(s.Path)
	if derr != nil {
		return nil, names, fmt.Errorf("failed to load %s: %w", s.FileName, derr)
	}
	s.Width, s.Height = img.Bounds().Dx(), img.Bounds().Dy()
	s.clampAll()

	var errs []error
	for i, sel := range s.selections {
		if ferr := saveCrop(c, img, sel, filepath.Join(dir, names[i]), format); ferr != nil {
			failed = append(failed, names[i])
			errs = append(errs, fmt.Errorf("%s: %w", names[i], ferr))
			continue
		}
		exported = append(exported, names[i])
	}
	return exported, failed, errors.Join(errs...)
}

func saveCrop(c codec.ImageCodec, img image.Image, sel geometry.Selection, path string, format codec.Format) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while exporting: %v", r)
		}
	}()

	cropped, err := c.Crop(img, geometry.ComputeBounds(sel).Rect())
	if err != nil {
		return err
	}
	return c.Save(cropped, path, format)
}

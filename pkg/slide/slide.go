// Package slide implements the Slide aggregate: one source image and the
// ordered list of selections made on it.
//
// Selections have no identity beyond their position. Display indices are
// 1-based positions in the list, so removing a selection renumbers every
// selection after it without any bookkeeping.
package slide

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/geometry"
)

// ErrIndexOutOfRange is returned for a display index outside 1..Len()
var ErrIndexOutOfRange = errors.New("selection index out of range")

// Preview describes a downsampled raster generated for display.
type Preview struct {
	Path   string
	Width  int
	Height int
	// Scale is the integer factor between full-resolution and preview pixels.
	Scale int
}

// Slide is a single image with its selections.
type Slide struct {
	Path       string
	FileName   string
	FolderPath string

	// Full-resolution dimensions. Zero until loaded.
	Width  int
	Height int

	selections []geometry.Selection
	preview    *Preview
}

// New creates a slide for the image at path. The file is not touched.
func New(path string) *Slide {
	s := &Slide{}
	s.setPath(path)
	return s
}

func (s *Slide) setPath(path string) {
	s.Path = path
	s.FileName = filepath.Base(path)
	s.FolderPath = filepath.Dir(path)
}

// HasDimensions reports whether the image size is known
func (s *Slide) HasDimensions() bool {
	return s.Width > 0 && s.Height > 0
}

// LoadDimensions reads the image size through c and re-clamps every selection.
func (s *Slide) LoadDimensions(c codec.ImageCodec) error {
	w, h, err := c.Open(s.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.FileName, err)
	}
	s.Width, s.Height = w, h
	s.clampAll()
	return nil
}

// Missing reports whether the source image no longer exists
func (s *Slide) Missing() bool {
	_, err := os.Stat(s.Path)
	return errors.Is(err, os.ErrNotExist)
}

// Len returns the number of selections
func (s *Slide) Len() int {
	return len(s.selections)
}

// Selections returns a copy of the selections in display order.
func (s *Slide) Selections() []geometry.Selection {
	out := make([]geometry.Selection, len(s.selections))
	copy(out, s.selections)
	return out
}

// Selection returns the selection at the 1-based display index.
func (s *Slide) Selection(index int) (geometry.Selection, error) {
	if err := s.checkIndex(index); err != nil {
		return geometry.Selection{}, err
	}
	return s.selections[index-1], nil
}

// AppendSelection adds a selection as-is, without clamping. It is used when
// rebuilding a slide from a persisted document whose image is not opened yet.
func (s *Slide) AppendSelection(sel geometry.Selection) {
	s.selections = append(s.selections, sel)
}

// AddSelection appends a selection centered at p and returns its display index.
func (s *Slide) AddSelection(p geometry.Point, width, height int) int {
	sel := s.clamp(geometry.Selection{Center: p, Width: width, Height: height})
	s.selections = append(s.selections, sel)
	return len(s.selections)
}

// RemoveSelection deletes the selection at the 1-based display index.
func (s *Slide) RemoveSelection(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.selections = append(s.selections[:index-1], s.selections[index:]...)
	return nil
}

// MoveSelection recenters the selection at index on p, keeping it inside the image.
func (s *Slide) MoveSelection(index int, p geometry.Point) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.selections[index-1] = s.clamp(s.selections[index-1].Move(p))
	return nil
}

// CheckSelectionSizeFits reports whether every selection would stay inside
// the image if resized to width x height. Nothing is modified.
func (s *Slide) CheckSelectionSizeFits(width, height int) bool {
	for _, sel := range s.selections {
		sel.Width, sel.Height = width, height
		if !geometry.Fits(sel, s.Width, s.Height) {
			return false
		}
	}
	return true
}

// SetSelectionSize resizes every selection. Centers move as needed to keep
// the rectangles inside the image.
func (s *Slide) SetSelectionSize(width, height int) {
	for i, sel := range s.selections {
		if s.HasDimensions() {
			s.selections[i] = geometry.Resize(sel, width, height, s.Width, s.Height)
		} else {
			sel.Width, sel.Height = width, height
			s.selections[i] = sel
		}
	}
}

// Relocate points the slide at a different image file. Dimensions are
// reloaded, the old preview is dropped and every selection is clamped to the
// new image.
func (s *Slide) Relocate(path string, c codec.ImageCodec) error {
	w, h, err := c.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	s.setPath(path)
	s.Width, s.Height = w, h
	s.preview = nil
	s.clampAll()
	return nil
}

// BaseName returns the file name without its extension
func (s *Slide) BaseName() string {
	name := s.FileName
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

// ExportNames returns one output file name per selection, in display order:
// {base}_{index}.tif.
func (s *Slide) ExportNames() []string {
	return s.ExportNamesFor(codec.TIFF)
}

// ExportNamesFor is ExportNames with a different output format.
func (s *Slide) ExportNamesFor(format codec.Format) []string {
	base := s.BaseName()
	names := make([]string, len(s.selections))
	for i := range s.selections {
		names[i] = base + "_" + strconv.Itoa(i+1) + format.Extension()
	}
	return names
}

func (s *Slide) checkIndex(index int) error {
	if index < 1 || index > len(s.selections) {
		return fmt.Errorf("%w: %d (slide %s has %d)", ErrIndexOutOfRange, index, s.FileName, len(s.selections))
	}
	return nil
}

func (s *Slide) clamp(sel geometry.Selection) geometry.Selection {
	if !s.HasDimensions() {
		return sel
	}
	return geometry.ClampToImage(sel, s.Width, s.Height)
}

func (s *Slide) clampAll() {
	for i := range s.selections {
		s.selections[i] = s.clamp(s.selections[i])
	}
}

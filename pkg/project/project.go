// Package project implements the Project aggregate: an ordered list of slides,
// the defaults applied to new selections, the current work position and the
// saved/dirty state, plus the .scp file format.
//
// Every mutating method marks the project dirty. Only Load and Save mark it
// saved.
package project

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/menta2k/slides-crop/pkg/geometry"
	"github.com/menta2k/slides-crop/pkg/slide"
)

// Limits accepted for the project defaults
const (
	MinSelectionTarget = 1
	MaxSelectionTarget = 128
	MinSelectionSize   = 2
	MaxSelectionSize   = 100000
)

var (
	ErrEmptyName           = errors.New("project name is empty")
	ErrInvalidTarget       = fmt.Errorf("selection target must be between %d and %d", MinSelectionTarget, MaxSelectionTarget)
	ErrInvalidSize         = fmt.Errorf("selection size must be between %d and %d", MinSelectionSize, MaxSelectionSize)
	ErrSlideOutOfRange     = errors.New("slide index out of range")
	ErrNoSlides            = errors.New("project has no slides")
	ErrSelectionOverflow   = errors.New("selection size does not fit every existing selection")
	ErrWorkIndexOutOfRange = errors.New("work index out of range")
)

// Project owns an ordered list of slides.
type Project struct {
	name  string
	path  string
	saved bool

	slides []*slide.Slide

	workIndex       int
	selectionTarget int
	defaultWidth    int
	defaultHeight   int
}

// New creates an unsaved project.
func New(name string, selectionTarget, width, height int) (*Project, error) {
	p := &Project{workIndex: 1}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateTarget(selectionTarget); err != nil {
		return nil, err
	}
	if err := validateSize(width, height); err != nil {
		return nil, err
	}
	p.name = strings.TrimSpace(name)
	p.selectionTarget = selectionTarget
	p.defaultWidth = width
	p.defaultHeight = height
	return p, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}

func validateTarget(n int) error {
	if n < MinSelectionTarget || n > MaxSelectionTarget {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, n)
	}
	return nil
}

func validateSize(w, h int) error {
	if w < MinSelectionSize || w > MaxSelectionSize || h < MinSelectionSize || h > MaxSelectionSize {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	return nil
}

func (p *Project) Name() string         { return p.name }
func (p *Project) Path() string         { return p.path }
func (p *Project) WorkIndex() int       { return p.workIndex }
func (p *Project) SelectionTarget() int { return p.selectionTarget }

// DefaultSize returns the size given to new selections
func (p *Project) DefaultSize() (int, int) {
	return p.defaultWidth, p.defaultHeight
}

// IsSaved reports whether the project matches the last load or save
func (p *Project) IsSaved() bool { return p.saved }

// IsDirty is the inverse of IsSaved
func (p *Project) IsDirty() bool { return !p.saved }

// MarkDirty flags unsaved changes.
func (p *Project) MarkDirty() { p.saved = false }

// MarkSaved records a successful save or load at path.
func (p *Project) MarkSaved(path string) {
	p.path = path
	p.saved = true
}

// SetName renames the project.
func (p *Project) SetName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	p.name = strings.TrimSpace(name)
	p.MarkDirty()
	return nil
}

// SetSelectionTarget changes the advisory number of selections per slide.
func (p *Project) SetSelectionTarget(n int) error {
	if err := validateTarget(n); err != nil {
		return err
	}
	p.selectionTarget = n
	p.MarkDirty()
	return nil
}

// SetDefaultSize changes the size given to new selections. Existing selections
// are not touched.
func (p *Project) SetDefaultSize(width, height int) error {
	if err := validateSize(width, height); err != nil {
		return err
	}
	p.defaultWidth, p.defaultHeight = width, height
	p.MarkDirty()
	return nil
}

// Len returns the number of slides
func (p *Project) Len() int {
	return len(p.slides)
}

// Slides returns the slides in processing order. The slice is a copy; the
// slides are shared.
func (p *Project) Slides() []*slide.Slide {
	return slices.Clone(p.slides)
}

// Slide returns the slide at the 0-based index i.
func (p *Project) Slide(i int) (*slide.Slide, error) {
	if i < 0 || i >= len(p.slides) {
		return nil, fmt.Errorf("%w: %d of %d", ErrSlideOutOfRange, i, len(p.slides))
	}
	return p.slides[i], nil
}

// Current returns the slide at the work index.
func (p *Project) Current() (*slide.Slide, error) {
	if len(p.slides) == 0 {
		return nil, ErrNoSlides
	}
	return p.slides[p.workIndex-1], nil
}

// AddSlides appends one slide per path, in order.
func (p *Project) AddSlides(paths ...string) []*slide.Slide {
	added := make([]*slide.Slide, 0, len(paths))
	for _, path := range paths {
		s := slide.New(path)
		p.slides = append(p.slides, s)
		added = append(added, s)
	}
	if len(added) > 0 {
		p.MarkDirty()
	}
	return added
}

// RemoveSlide removes the slide at the 0-based index i.
func (p *Project) RemoveSlide(i int) (*slide.Slide, error) {
	s, err := p.Slide(i)
	if err != nil {
		return nil, err
	}
	p.slides = slices.Delete(p.slides, i, i+1)
	p.fixWorkIndex()
	p.MarkDirty()
	return s, nil
}

// RemoveSlides removes several slides by 0-based index. Indices refer to the
// list before any removal; duplicates are ignored.
func (p *Project) RemoveSlides(indices []int) ([]*slide.Slide, error) {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, i := range sorted {
		if i < 0 || i >= len(p.slides) {
			return nil, fmt.Errorf("%w: %d of %d", ErrSlideOutOfRange, i, len(p.slides))
		}
	}

	removed := make([]*slide.Slide, 0, len(sorted))
	for k := len(sorted) - 1; k >= 0; k-- {
		i := sorted[k]
		removed = append(removed, p.slides[i])
		p.slides = slices.Delete(p.slides, i, i+1)
	}
	if len(removed) > 0 {
		p.fixWorkIndex()
		p.MarkDirty()
	}
	slices.Reverse(removed)
	return removed, nil
}

// MoveSlide moves the slide at from so that it ends up at index to.
func (p *Project) MoveSlide(from, to int) error {
	s, err := p.Slide(from)
	if err != nil {
		return err
	}
	if to < 0 || to >= len(p.slides) {
		return fmt.Errorf("%w: %d of %d", ErrSlideOutOfRange, to, len(p.slides))
	}
	if from == to {
		return nil
	}
	p.slides = slices.Delete(p.slides, from, from+1)
	p.slides = slices.Insert(p.slides, to, s)
	p.MarkDirty()
	return nil
}

// SetWorkIndex selects the slide being edited (1-based).
func (p *Project) SetWorkIndex(i int) error {
	if len(p.slides) == 0 {
		if i != 1 {
			return fmt.Errorf("%w: %d (no slides)", ErrWorkIndexOutOfRange, i)
		}
	} else if i < 1 || i > len(p.slides) {
		return fmt.Errorf("%w: %d of %d", ErrWorkIndexOutOfRange, i, len(p.slides))
	}
	if p.workIndex != i {
		p.workIndex = i
		p.MarkDirty()
	}
	return nil
}

// Next advances the work index. It returns false on the last slide.
func (p *Project) Next() bool {
	if p.workIndex >= len(p.slides) {
		return false
	}
	p.workIndex++
	p.MarkDirty()
	return true
}

// Previous moves the work index back. It returns false on the first slide.
func (p *Project) Previous() bool {
	if p.workIndex <= 1 {
		return false
	}
	p.workIndex--
	p.MarkDirty()
	return true
}

func (p *Project) fixWorkIndex() {
	p.workIndex = min(max(p.workIndex, 1), max(len(p.slides), 1))
}

// AddSelection places a selection of the default size on slide i and returns
// its display index.
func (p *Project) AddSelection(i int, at geometry.Point) (int, error) {
	s, err := p.Slide(i)
	if err != nil {
		return 0, err
	}
	index := s.AddSelection(at, p.defaultWidth, p.defaultHeight)
	p.MarkDirty()
	return index, nil
}

// RemoveSelection deletes selection index (1-based) from slide i.
func (p *Project) RemoveSelection(i, index int) error {
	s, err := p.Slide(i)
	if err != nil {
		return err
	}
	if err := s.RemoveSelection(index); err != nil {
		return err
	}
	p.MarkDirty()
	return nil
}

// MoveSelection recenters selection index (1-based) of slide i.
func (p *Project) MoveSelection(i, index int, to geometry.Point) error {
	s, err := p.Slide(i)
	if err != nil {
		return err
	}
	if err := s.MoveSelection(index, to); err != nil {
		return err
	}
	p.MarkDirty()
	return nil
}

// ResizeSelections resizes every selection of slide i. The change is rejected
// if any selection would cross the image boundary.
func (p *Project) ResizeSelections(i, width, height int) error {
	if err := validateSize(width, height); err != nil {
		return err
	}
	s, err := p.Slide(i)
	if err != nil {
		return err
	}
	if s.HasDimensions() && !s.CheckSelectionSizeFits(width, height) {
		return fmt.Errorf("%w: %dx%d on %s", ErrSelectionOverflow, width, height, s.FileName)
	}
	s.SetSelectionSize(width, height)
	p.MarkDirty()
	return nil
}

// ResizeAllSelections resizes every selection of every slide. All slides are
// checked first; nothing changes unless every one of them fits.
func (p *Project) ResizeAllSelections(width, height int) error {
	if err := validateSize(width, height); err != nil {
		return err
	}
	var bad []string
	for _, s := range p.slides {
		if s.HasDimensions() && !s.CheckSelectionSizeFits(width, height) {
			bad = append(bad, s.FileName)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %dx%d on %s", ErrSelectionOverflow, width, height, strings.Join(bad, ", "))
	}
	for _, s := range p.slides {
		s.SetSelectionSize(width, height)
	}
	p.MarkDirty()
	return nil
}

// SelectionCount returns the total number of selections across all slides
func (p *Project) SelectionCount() int {
	n := 0
	for _, s := range p.slides {
		n += s.Len()
	}
	return n
}

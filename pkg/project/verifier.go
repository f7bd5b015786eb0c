package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/menta2k/slides-crop/pkg/codec"
)

// ErrNotMissing is returned when relocating a slide that was not reported
// missing
var ErrNotMissing = errors.New("slide is not missing")

// MissingSlidesError lists slides whose image file could not be found.
type MissingSlidesError struct {
	Indices []int
	Names   []string
}

func (e *MissingSlidesError) Error() string {
	if len(e.Names) == 1 {
		return "missing slide image: " + e.Names[0]
	}
	return fmt.Sprintf("%d missing slide images: %s", len(e.Names), strings.Join(e.Names, ", "))
}

// CheckMissing returns a *MissingSlidesError if any slide path does not exist.
func (p *Project) CheckMissing() error {
	var missing MissingSlidesError
	for i, s := range p.slides {
		if s.Missing() {
			missing.Indices = append(missing.Indices, i)
			missing.Names = append(missing.Names, s.FileName)
		}
	}
	if len(missing.Indices) == 0 {
		return nil
	}
	return &missing
}

// Verifier resolves slides whose image file no longer exists. Each missing
// slide is either relocated or scheduled for removal; Finish applies the
// removals once every slide is resolved.
type Verifier struct {
	project *Project
	codec   codec.ImageCodec

	unresolved []int
	toRemove   []int
	changed    bool
}

// NewVerifier creates a verifier for p. Relocated slides are reloaded with c.
func NewVerifier(p *Project, c codec.ImageCodec) *Verifier {
	return &Verifier{project: p, codec: c}
}

// FindMissing scans the project and returns the 0-based indices of the
// missing slides. It resets any previous resolution state.
func (v *Verifier) FindMissing() []int {
	v.unresolved = v.unresolved[:0]
	v.toRemove = v.toRemove[:0]
	v.changed = false
	for i, s := range v.project.slides {
		if s.Missing() {
			v.unresolved = append(v.unresolved, i)
		}
	}
	return slices.Clone(v.unresolved)
}

// MissingNames returns the file names of the unresolved slides
func (v *Verifier) MissingNames() []string {
	names := make([]string, len(v.unresolved))
	for k, i := range v.unresolved {
		names[k] = v.project.slides[i].FileName
	}
	return names
}

// Unresolved returns the indices still waiting for Relocate or Remove
func (v *Verifier) Unresolved() []int {
	return slices.Clone(v.unresolved)
}

// Relocate points the missing slide i at path. Other unresolved slides whose
// file name exists in the same directory are relocated with it. It returns
// every index resolved by the call.
func (v *Verifier) Relocate(i int, path string) ([]int, error) {
	k := slices.Index(v.unresolved, i)
	if k < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotMissing, i)
	}
	if err := v.project.slides[i].Relocate(path, v.codec); err != nil {
		return nil, err
	}
	v.unresolved = slices.Delete(v.unresolved, k, k+1)
	v.changed = true
	resolved := []int{i}

	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return resolved, nil
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}

	var still []int
	for _, j := range v.unresolved {
		s := v.project.slides[j]
		if present[s.FileName] && s.Relocate(filepath.Join(dir, s.FileName), v.codec) == nil {
			resolved = append(resolved, j)
			continue
		}
		still = append(still, j)
	}
	v.unresolved = still
	return resolved, nil
}

// Remove schedules the missing slide i for removal.
func (v *Verifier) Remove(i int) error {
	k := slices.Index(v.unresolved, i)
	if k < 0 {
		return fmt.Errorf("%w: %d", ErrNotMissing, i)
	}
	v.unresolved = slices.Delete(v.unresolved, k, k+1)
	v.toRemove = append(v.toRemove, i)
	return nil
}

// RemoveMissing schedules every unresolved slide for removal.
func (v *Verifier) RemoveMissing() {
	v.toRemove = append(v.toRemove, v.unresolved...)
	v.unresolved = nil
}

// Finish removes the scheduled slides. If anything changed the work index is
// reset to the first slide and the project is marked dirty. A
// *MissingSlidesError is returned while slides remain unresolved.
func (v *Verifier) Finish() error {
	if len(v.unresolved) > 0 {
		return &MissingSlidesError{Indices: v.Unresolved(), Names: v.MissingNames()}
	}
	if len(v.toRemove) > 0 {
		if _, err := v.project.RemoveSlides(v.toRemove); err != nil {
			return err
		}
		v.toRemove = nil
		v.changed = true
	}
	if v.changed {
		v.project.workIndex = 1
		v.project.MarkDirty()
		v.changed = false
	}
	return nil
}

package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/menta2k/slides-crop/pkg/access"
	"github.com/menta2k/slides-crop/pkg/geometry"
	"github.com/menta2k/slides-crop/pkg/slide"
	"github.com/menta2k/slides-crop/pkg/types"
)

// Extension is the conventional project file extension
const Extension = ".scp"

// ErrMissingKey is returned when a project file lacks a required key
var ErrMissingKey = errors.New("missing required key")

// Document converts the project to its on-disk representation.
func (p *Project) Document() types.ProjectDocument {
	doc := types.ProjectDocument{
		Name:      p.name,
		WorkIndex: p.workIndex,
		Selection: p.selectionTarget,
		Width:     p.defaultWidth,
		Height:    p.defaultHeight,
		Slides:    make([]types.SlideDocument, 0, len(p.slides)),
	}
	for _, s := range p.slides {
		sd := types.SlideDocument{
			Path:       s.Path,
			Selections: make([]types.SelectionDocument, 0, s.Len()),
		}
		for _, sel := range s.Selections() {
			sd.Selections = append(sd.Selections, types.SelectionDocument{
				CenterX: sel.Center.X,
				CenterY: sel.Center.Y,
				Width:   sel.Width,
				Height:  sel.Height,
			})
		}
		doc.Slides = append(doc.Slides, sd)
	}
	return doc
}

// Marshal serializes the project as indented JSON.
func (p *Project) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p.Document()); err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}
	return buf.Bytes(), nil
}

// rawProject mirrors types.ProjectDocument with optional fields so that
// missing keys can be told apart from zero values. Coordinates are read as
// floats because earlier files may contain fractional pixel positions.
type rawProject struct {
	Name      *string     `json:"name"`
	WorkIndex *int        `json:"work_index"`
	Selection *int        `json:"selection"`
	Width     *int        `json:"width"`
	Height    *int        `json:"height"`
	Slides    *[]rawSlide `json:"slides"`
}

type rawSlide struct {
	Path       *string         `json:"path"`
	Selections *[]rawSelection `json:"selections"`
}

type rawSelection struct {
	CenterX *float64 `json:"center_x"`
	CenterY *float64 `json:"center_y"`
	Width   *float64 `json:"width"`
	Height  *float64 `json:"height"`
}

func missing(key string) error {
	return fmt.Errorf("%w %q", ErrMissingKey, key)
}

// Unmarshal rebuilds a project from its JSON representation. Slide paths are
// not checked; see Verifier. The returned project is marked saved.
func Unmarshal(data []byte) (*Project, error) {
	var raw rawProject
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	switch {
	case raw.Name == nil:
		return nil, missing("name")
	case raw.WorkIndex == nil:
		return nil, missing("work_index")
	case raw.Selection == nil:
		return nil, missing("selection")
	case raw.Width == nil:
		return nil, missing("width")
	case raw.Height == nil:
		return nil, missing("height")
	case raw.Slides == nil:
		return nil, missing("slides")
	}

	p := &Project{
		name:            *raw.Name,
		workIndex:       *raw.WorkIndex,
		selectionTarget: *raw.Selection,
		defaultWidth:    *raw.Width,
		defaultHeight:   *raw.Height,
		saved:           true,
	}

	for i, rs := range *raw.Slides {
		if rs.Path == nil {
			return nil, fmt.Errorf("slide %d: %w", i+1, missing("path"))
		}
		if rs.Selections == nil {
			return nil, fmt.Errorf("slide %d: %w", i+1, missing("selections"))
		}
		s := slide.New(*rs.Path)
		for j, sel := range *rs.Selections {
			if err := sel.check(); err != nil {
				return nil, fmt.Errorf("slide %d selection %d: %w", i+1, j+1, err)
			}
			s.AppendSelection(geometry.Selection{
				Center: geometry.Point{X: roundPx(*sel.CenterX), Y: roundPx(*sel.CenterY)},
				Width:  roundPx(*sel.Width),
				Height: roundPx(*sel.Height),
			})
		}
		p.slides = append(p.slides, s)
	}
	p.fixWorkIndex()
	return p, nil
}

func (r rawSelection) check() error {
	switch {
	case r.CenterX == nil:
		return missing("center_x")
	case r.CenterY == nil:
		return missing("center_y")
	case r.Width == nil:
		return missing("width")
	case r.Height == nil:
		return missing("height")
	}
	return nil
}

func roundPx(v float64) int {
	return int(math.Round(v))
}

// Load reads a project file. Any read or parse error aborts the load.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	p.MarkSaved(path)
	return p, nil
}

// Save writes the project to path and marks it saved. The file is written to
// a temporary sibling first and renamed into place, so a failed save leaves
// any previous file intact. A nil checker checks the local filesystem.
func (p *Project) Save(path string, checker access.Checker) error {
	if err := checkWritable(path, checker); err != nil {
		return err
	}

	data, err := p.Marshal()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create project file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(fileMode(path)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to create project file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write project file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write project file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write project file: %w", err)
	}

	p.MarkSaved(path)
	return nil
}

// fileMode keeps the permissions of the file being replaced, 0644 otherwise
func fileMode(path string) os.FileMode {
	if fi, err := os.Stat(path); err == nil {
		return fi.Mode().Perm()
	}
	return 0o644
}

func checkDirWritable(dir string, checker access.Checker) error {
	if checker == nil {
		checker = access.FS{}
	}
	if c, ok := checker.(interface{ CheckDirWrite(string) error }); ok {
		return c.CheckDirWrite(dir)
	}
	if !checker.CanWriteDir(dir) {
		return &access.Error{Op: "write", Path: dir, Err: access.ErrPermission}
	}
	return nil
}

func checkWritable(path string, checker access.Checker) error {
	if checker == nil {
		checker = access.FS{}
	}
	if c, ok := checker.(interface{ CheckNewFileWrite(string) error }); ok {
		return c.CheckNewFileWrite(path)
	}
	if !checker.CanWriteNewFile(path) {
		return &access.Error{Op: "write", Path: path, Err: access.ErrPermission}
	}
	return nil
}

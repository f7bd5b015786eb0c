// Package slidescrop crops many fixed-size regions out of large slide images.
//
// A project is an ordered list of slides. Each slide is one image file with
// any number of rectangular selections, all placed by their center and kept
// inside the image. Projects are saved as JSON (.scp files), previews are
// generated at a reduced resolution for display, and every selection can be
// exported as its own cropped image.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/slides-crop"
//		"github.com/menta2k/slides-crop/pkg/geometry"
//	)
//
//	func main() {
//		ws := slidescrop.New()
//		defer ws.Close()
//
//		p, err := ws.NewProject("Histology week 3")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if _, err := ws.AddSlides("scans/"); err != nil {
//			log.Fatal(err)
//		}
//		p.AddSelection(0, geometry.Point{X: 1200, Y: 800})
//
//		if err := ws.SaveAs("week3.scp"); err != nil {
//			log.Fatal(err)
//		}
//		report, err := ws.ExportAll(context.Background(), "crops/", nil)
//		if err != nil {
//			log.Printf("export finished with errors: %v (failed: %v)", err, report.Failed)
//		}
//	}
//
// The package is a thin layer over its components:
//
// 1. Geometry (pkg/geometry): integer selection math and preview transforms
// 2. Slide and Project (pkg/slide, pkg/project): the editable model and the .scp format
// 3. Processing (pkg/processing): decoding, resizing, cropping and encoding images
// 4. Batch and Preview (pkg/batch, pkg/preview): bounded concurrent work and temporary previews
package slidescrop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/menta2k/slides-crop/internal/config"
	"github.com/menta2k/slides-crop/internal/utils"
	"github.com/menta2k/slides-crop/pkg/batch"
	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/geometry"
	"github.com/menta2k/slides-crop/pkg/preview"
	"github.com/menta2k/slides-crop/pkg/processing"
	"github.com/menta2k/slides-crop/pkg/project"
	"github.com/menta2k/slides-crop/pkg/slide"
	"github.com/menta2k/slides-crop/pkg/types"
)

// Version of the slides-crop library
const Version = "1.0.0"

var (
	ErrNoProject = errors.New("no project is open")
	ErrNoPath    = errors.New("project has never been saved; use SaveAs")
	ErrNotImage  = errors.New("not a supported image file")
)

// Workspace holds the open project together with the codec and preview store
// that operate on it.
type Workspace struct {
	cfg    *config.Config
	logger *slog.Logger

	processor *processing.Processor
	store     *preview.Store
	project   *project.Project

	exportFormat codec.Format
}

// New creates a Workspace with the default configuration
func New() *Workspace {
	ws, err := NewWithConfig(config.Default(), nil)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return ws
}

// NewWithConfig creates a Workspace with custom configuration. A nil logger
// uses slog.Default.
func NewWithConfig(cfg *config.Config, logger *slog.Logger) (*Workspace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	previewFormat, _ := codec.ParseFormat(cfg.Preview.Format)
	exportFormat, _ := codec.ParseFormat(cfg.Export.Format)

	previewCodec := processing.NewProcessorWithOptions(processing.Options{
		Quality:         cfg.Preview.Quality,
		TIFFCompression: "none",
	})
	exportCodec := processing.NewProcessorWithOptions(processing.Options{
		Quality:         cfg.Export.Quality,
		TIFFCompression: cfg.Export.Compression,
	})

	return &Workspace{
		cfg:          cfg,
		logger:       logger,
		processor:    exportCodec,
		store:        preview.NewStore(previewCodec, previewFormat, cfg.Preview.TempDir, logger),
		exportFormat: exportFormat,
	}, nil
}

// Config returns the active configuration
func (ws *Workspace) Config() *config.Config { return ws.cfg }

// Codec returns the image codec used for loading and exporting
func (ws *Workspace) Codec() codec.ImageCodec { return ws.processor }

// Previews returns the temporary preview store
func (ws *Workspace) Previews() *preview.Store { return ws.store }

// Project returns the open project, or nil
func (ws *Workspace) Project() *project.Project { return ws.project }

func (ws *Workspace) current() (*project.Project, error) {
	if ws.project == nil {
		return nil, ErrNoProject
	}
	return ws.project, nil
}

// NewProject discards the open project and starts a new one with the
// selection defaults from the configuration.
func (ws *Workspace) NewProject(name string) (*project.Project, error) {
	sel := ws.cfg.Selection
	return ws.NewProjectWithDefaults(name, sel.Target, sel.Width, sel.Height)
}

// NewProjectWithDefaults is NewProject with explicit selection defaults.
func (ws *Workspace) NewProjectWithDefaults(name string, target, width, height int) (*project.Project, error) {
	p, err := project.New(name, target, width, height)
	if err != nil {
		return nil, err
	}
	if err := ws.CloseProject(); err != nil {
		return nil, err
	}
	ws.project = p
	ws.logger.Info("project created", "name", p.Name(), "target", target, "width", width, "height", height)
	return p, nil
}

// OpenProject loads a project file and makes it the open project. If some
// slide images are missing the project is still opened and a
// *project.MissingSlidesError is returned; resolve it with Verifier or call
// CloseProject to cancel.
func (ws *Workspace) OpenProject(path string) (*project.Project, error) {
	p, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	if err := ws.CloseProject(); err != nil {
		return nil, err
	}
	ws.project = p
	ws.logger.Info("project opened", "path", path, "slides", p.Len())

	if err := p.CheckMissing(); err != nil {
		ws.logger.Warn("project references missing images", "error", err)
		return p, err
	}
	return p, nil
}

// Verifier returns a missing-file verifier bound to the open project.
func (ws *Workspace) Verifier() (*project.Verifier, error) {
	p, err := ws.current()
	if err != nil {
		return nil, err
	}
	return project.NewVerifier(p, ws.processor), nil
}

// CloseProject releases the open project's previews and forgets it. Unsaved
// changes are discarded.
func (ws *Workspace) CloseProject() error {
	if ws.project == nil {
		return nil
	}
	ws.project.ReleasePreviews(nil)
	ws.project = nil
	return ws.store.Reset()
}

// AddSlides appends images to the open project. Directories are expanded to
// the image files they contain, in path order. Dimensions are loaded for
// every new slide; files that are not images are rejected before anything is
// added.
func (ws *Workspace) AddSlides(paths ...string) ([]*slide.Slide, error) {
	p, err := ws.current()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, path := range paths {
		abs, err := utils.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		if utils.DirExists(abs) {
			found, err := utils.ListImageFiles(abs)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", path, err)
			}
			files = append(files, found...)
			continue
		}
		if !utils.IsImageFile(abs) || !utils.IsImageContent(abs) {
			return nil, fmt.Errorf("%w: %s", ErrNotImage, path)
		}
		files = append(files, abs)
	}

	dims := make([][2]int, len(files))
	for i, f := range files {
		w, h, err := ws.processor.Open(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(f), err)
		}
		dims[i] = [2]int{w, h}
	}

	added := p.AddSlides(files...)
	for i, s := range added {
		s.Width, s.Height = dims[i][0], dims[i][1]
		ws.logger.Debug("slide added", "path", s.Path, "width", s.Width, "height", s.Height)
	}
	return added, nil
}

// GeneratePreviews loads every slide of the open project and generates its
// preview at the configured resolution.
func (ws *Workspace) GeneratePreviews(ctx context.Context, progress batch.ProgressFunc) error {
	p, err := ws.current()
	if err != nil {
		return err
	}
	return p.GeneratePreviews(ctx, ws.processor, ws.store, ws.cfg.Preview.Resolution, ws.cfg.Export.Workers, progress)
}

// Save writes the open project back to the file it was loaded from or last
// saved to.
func (ws *Workspace) Save() error {
	p, err := ws.current()
	if err != nil {
		return err
	}
	if p.Path() == "" {
		return ErrNoPath
	}
	return ws.SaveAs(p.Path())
}

// SaveAs writes the open project to path.
func (ws *Workspace) SaveAs(path string) error {
	p, err := ws.current()
	if err != nil {
		return err
	}
	if filepath.Ext(path) == "" {
		path += project.Extension
	}
	if err := p.Save(path, nil); err != nil {
		return err
	}
	ws.logger.Info("project saved", "path", path)
	return nil
}

// Export writes crops according to opts. Empty fields fall back to the
// configuration.
func (ws *Workspace) Export(ctx context.Context, opts types.ExportOptions, progress batch.ProgressFunc) (types.ExportReport, error) {
	p, err := ws.current()
	if err != nil {
		return types.ExportReport{}, err
	}

	format := ws.exportFormat
	if opts.Format != "" {
		if format, err = codec.ParseFormat(opts.Format); err != nil {
			return types.ExportReport{}, err
		}
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = ws.cfg.Export.OutputDir
	}
	if dir == "" {
		return types.ExportReport{}, errors.New("no output directory given")
	}
	if dir, err = utils.ExpandPath(dir); err != nil {
		return types.ExportReport{}, err
	}
	if err := utils.EnsureDir(dir); err != nil {
		return types.ExportReport{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	workers := opts.Workers
	if workers == 0 {
		workers = ws.cfg.Export.Workers
	}

	report, err := p.Export(ctx, dir, ws.processor, format, opts.Slides, workers, nil, progress)
	ws.logger.Info("export finished",
		"dir", dir,
		"exported", len(report.Exported),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped))
	return report, err
}

// ExportCurrent exports the crops of the slide at the work index.
func (ws *Workspace) ExportCurrent(ctx context.Context, dir string, progress batch.ProgressFunc) (types.ExportReport, error) {
	p, err := ws.current()
	if err != nil {
		return types.ExportReport{}, err
	}
	if p.Len() == 0 {
		return types.ExportReport{}, project.ErrNoSlides
	}
	return ws.Export(ctx, types.ExportOptions{OutputDir: dir, Slides: []int{p.WorkIndex() - 1}}, progress)
}

// ExportAll exports the crops of every slide.
func (ws *Workspace) ExportAll(ctx context.Context, dir string, progress batch.ProgressFunc) (types.ExportReport, error) {
	return ws.Export(ctx, types.ExportOptions{OutputDir: dir}, progress)
}

// AnnotatedPreview writes an image of slide i with every selection outlined
// and numbered. The slide's preview is used when one exists, otherwise the
// full image.
func (ws *Workspace) AnnotatedPreview(i int, path string) error {
	p, err := ws.current()
	if err != nil {
		return err
	}
	s, err := p.Slide(i)
	if err != nil {
		return err
	}
	format, err := codec.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}

	src := s.Path
	if pv, ok := s.Preview(); ok {
		src = pv.Path
	}
	img, err := ws.processor.Decode(src)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", s.FileName, err)
	}

	d := s.ScaleDenominator()
	rects := make([]image.Rectangle, 0, s.Len())
	for _, sel := range s.Selections() {
		b := geometry.ComputeBounds(sel)
		rects = append(rects, image.Rect(b.Left/d, b.Top/d, b.Right/d, b.Bottom/d))
	}

	c, err := ws.cfg.SelectionColor()
	if err != nil {
		return err
	}
	return ws.processor.Save(ws.processor.Annotate(img, rects, c), path, format)
}

// Close releases every temporary preview. The Workspace cannot generate
// previews afterwards.
func (ws *Workspace) Close() error {
	if ws.project != nil {
		ws.project.ReleasePreviews(nil)
	}
	return ws.store.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

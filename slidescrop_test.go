package slidescrop

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/slides-crop/internal/config"
	"github.com/menta2k/slides-crop/internal/logging"
	"github.com/menta2k/slides-crop/pkg/geometry"
	"github.com/menta2k/slides-crop/pkg/project"
	"github.com/menta2k/slides-crop/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with a bright square in the center
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.NRGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func writeSlide(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(createTestImage(width, height), path); err != nil {
		t.Fatalf("failed to write slide: %v", err)
	}
	return path
}

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	cfg := config.Default()
	cfg.Preview.TempDir = t.TempDir()
	cfg.Selection.Width = 40
	cfg.Selection.Height = 30
	ws, err := NewWithConfig(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestNew(t *testing.T) {
	ws := New()
	defer ws.Close()

	if ws.processor == nil {
		t.Error("processor component is nil")
	}
	if ws.store == nil {
		t.Error("preview store is nil")
	}
	if ws.Project() != nil {
		t.Error("New workspace should have no project")
	}
}

func TestNewWithConfigInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Preview.Resolution = 0.3
	if _, err := NewWithConfig(cfg, nil); err == nil {
		t.Error("Expected invalid config to be rejected")
	}
}

func TestNoProject(t *testing.T) {
	ws := newWorkspace(t)
	if err := ws.Save(); !errors.Is(err, ErrNoProject) {
		t.Errorf("Expected ErrNoProject, got %v", err)
	}
	if _, err := ws.AddSlides("a.png"); !errors.Is(err, ErrNoProject) {
		t.Errorf("Expected ErrNoProject, got %v", err)
	}
}

func TestNewProjectUsesConfigDefaults(t *testing.T) {
	ws := newWorkspace(t)
	p, err := ws.NewProject("Week 3")
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	w, h := p.DefaultSize()
	if w != 40 || h != 30 || p.SelectionTarget() != 4 {
		t.Errorf("Unexpected defaults %dx%d target %d", w, h, p.SelectionTarget())
	}
	if err := ws.Save(); !errors.Is(err, ErrNoPath) {
		t.Errorf("Expected ErrNoPath, got %v", err)
	}
}

func TestAddSlides(t *testing.T) {
	ws := newWorkspace(t)
	dir := t.TempDir()
	writeSlide(t, dir, "b.png", 200, 100)
	writeSlide(t, dir, "a.png", 120, 90)
	single := writeSlide(t, t.TempDir(), "c.png", 60, 60)

	if _, err := ws.NewProject("x"); err != nil {
		t.Fatal(err)
	}
	added, err := ws.AddSlides(dir, single)
	if err != nil {
		t.Fatalf("AddSlides failed: %v", err)
	}
	if len(added) != 3 {
		t.Fatalf("Expected 3 slides, got %d", len(added))
	}
	if added[0].FileName != "a.png" || added[0].Width != 120 || added[0].Height != 90 {
		t.Errorf("Unexpected first slide %+v", added[0])
	}
	if added[2].FileName != "c.png" {
		t.Errorf("Expected c.png last, got %s", added[2].FileName)
	}

	bad := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(bad, []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.AddSlides(bad); !errors.Is(err, ErrNotImage) {
		t.Errorf("Expected ErrNotImage, got %v", err)
	}
	if ws.Project().Len() != 3 {
		t.Errorf("Rejected file should not be added")
	}
}

func TestSaveAsAndOpen(t *testing.T) {
	ws := newWorkspace(t)
	dir := t.TempDir()
	writeSlide(t, dir, "a.png", 200, 100)

	p, _ := ws.NewProject("Demo")
	if _, err := ws.AddSlides(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddSelection(0, geometry.Point{X: 195, Y: 50}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "demo")
	if err := ws.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	if p.Path() != path+project.Extension || !p.IsSaved() {
		t.Errorf("Expected saved project at %s, got %s", path+project.Extension, p.Path())
	}

	opened, err := ws.OpenProject(p.Path())
	if err != nil {
		t.Fatalf("OpenProject failed: %v", err)
	}
	s, _ := opened.Slide(0)
	sel, _ := s.Selection(1)
	if sel != geometry.NewSelection(180, 50, 40, 30) {
		t.Errorf("Unexpected selection after reload: %+v", sel)
	}

	if err := opened.SetName("Renamed"); err != nil {
		t.Fatal(err)
	}
	if err := ws.Save(); err != nil {
		t.Errorf("Save failed: %v", err)
	}
}

func TestOpenProjectWithMissingSlides(t *testing.T) {
	ws := newWorkspace(t)
	src := t.TempDir()
	writeSlide(t, src, "a.png", 100, 100)

	if _, err := ws.NewProject("Demo"); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.AddSlides(src); err != nil {
		t.Fatal(err)
	}
	projectPath := filepath.Join(t.TempDir(), "demo.scp")
	if err := ws.SaveAs(projectPath); err != nil {
		t.Fatal(err)
	}
	moved := t.TempDir()
	if err := os.Rename(filepath.Join(src, "a.png"), filepath.Join(moved, "a.png")); err != nil {
		t.Fatal(err)
	}

	opened, err := ws.OpenProject(projectPath)
	var missing *project.MissingSlidesError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingSlidesError, got %v", err)
	}
	if len(missing.Names) != 1 || missing.Names[0] != "a.png" {
		t.Errorf("Unexpected missing names %v", missing.Names)
	}

	v, err := ws.Verifier()
	if err != nil {
		t.Fatal(err)
	}
	v.FindMissing()
	if _, err := v.Relocate(0, filepath.Join(moved, "a.png")); err != nil {
		t.Fatalf("Relocate failed: %v", err)
	}
	if err := v.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if !opened.IsDirty() {
		t.Error("Resolved project should be dirty")
	}
	if err := opened.CheckMissing(); err != nil {
		t.Errorf("Expected no missing slides, got %v", err)
	}
}

func TestExportAll(t *testing.T) {
	ws := newWorkspace(t)
	src := t.TempDir()
	writeSlide(t, src, "a.png", 200, 100)
	writeSlide(t, src, "b.png", 200, 100)

	p, _ := ws.NewProject("Demo")
	if _, err := ws.AddSlides(src); err != nil {
		t.Fatal(err)
	}
	p.AddSelection(0, geometry.Point{X: 50, Y: 50})
	p.AddSelection(0, geometry.Point{X: 150, Y: 50})
	p.AddSelection(1, geometry.Point{X: 100, Y: 50})

	out := filepath.Join(t.TempDir(), "crops")
	report, err := ws.ExportAll(context.Background(), out, nil)
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if !report.OK() || len(report.Exported) != 3 {
		t.Errorf("Unexpected report %+v", report)
	}
	for _, name := range []string{"a_1.tif", "a_2.tif", "b_1.tif"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("Expected %s to be exported: %v", name, err)
		}
	}

	crop, err := imaging.Open(filepath.Join(out, "a_2.tif"))
	if err != nil {
		t.Fatalf("failed to read crop: %v", err)
	}
	if crop.Bounds().Dx() != 40 || crop.Bounds().Dy() != 30 {
		t.Errorf("Expected 40x30 crop, got %v", crop.Bounds())
	}
}

func TestExportCurrentWithFormat(t *testing.T) {
	ws := newWorkspace(t)
	src := t.TempDir()
	writeSlide(t, src, "a.png", 100, 100)
	writeSlide(t, src, "b.png", 100, 100)

	p, _ := ws.NewProject("Demo")
	if _, err := ws.AddSlides(src); err != nil {
		t.Fatal(err)
	}
	p.AddSelection(0, geometry.Point{X: 50, Y: 50})
	p.AddSelection(1, geometry.Point{X: 50, Y: 50})
	p.Next()

	out := t.TempDir()
	report, err := ws.ExportCurrent(context.Background(), out, nil)
	if err != nil {
		t.Fatalf("ExportCurrent failed: %v", err)
	}
	if len(report.Exported) != 1 || report.Exported[0] != "b_1.tif" {
		t.Errorf("Unexpected report %+v", report)
	}

	report, err = ws.Export(context.Background(), types.ExportOptions{OutputDir: out, Format: "png", Slides: []int{0}}, nil)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(report.Exported) != 1 || report.Exported[0] != "a_1.png" {
		t.Errorf("Unexpected report %+v", report)
	}
}

func TestPreviewsAreCleanedUp(t *testing.T) {
	ws := newWorkspace(t)
	src := t.TempDir()
	writeSlide(t, src, "a.png", 400, 200)

	p, _ := ws.NewProject("Demo")
	if _, err := ws.AddSlides(src); err != nil {
		t.Fatal(err)
	}
	p.AddSelection(0, geometry.Point{X: 100, Y: 100})

	if err := ws.GeneratePreviews(context.Background(), nil); err != nil {
		t.Fatalf("GeneratePreviews failed: %v", err)
	}
	s, _ := p.Slide(0)
	pv, ok := s.Preview()
	if !ok || pv.Scale != 4 || pv.Width != 100 || pv.Height != 50 {
		t.Fatalf("Unexpected preview %+v (%v)", pv, ok)
	}

	annotated := filepath.Join(t.TempDir(), "annotated.png")
	if err := ws.AnnotatedPreview(0, annotated); err != nil {
		t.Fatalf("AnnotatedPreview failed: %v", err)
	}
	img, err := imaging.Open(annotated)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 100 {
		t.Errorf("Expected annotation drawn on the preview, got %v", img.Bounds())
	}

	dir := ws.Previews().Dir()
	if err := ws.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Preview directory %s should be removed", dir)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected version %s, got %s", Version, GetVersion())
	}
}

func BenchmarkExportAll(b *testing.B) {
	ws := New()
	defer ws.Close()
	src := b.TempDir()
	if err := imaging.Save(createTestImage(800, 600), filepath.Join(src, "a.png")); err != nil {
		b.Fatal(err)
	}
	p, _ := ws.NewProjectWithDefaults("bench", 4, 100, 100)
	if _, err := ws.AddSlides(src); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		p.AddSelection(0, geometry.Point{X: 100 + i*150, Y: 300})
	}
	out := b.TempDir()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ws.ExportAll(context.Background(), out, nil); err != nil {
			b.Fatal(err)
		}
	}
}

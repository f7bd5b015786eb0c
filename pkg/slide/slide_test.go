package slide

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/geometry"
)

type fakeCodec struct {
	mu       sync.Mutex
	sizes    map[string][2]int
	failSave map[string]bool
	saved    map[string]image.Rectangle
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		sizes:    map[string][2]int{},
		failSave: map[string]bool{},
		saved:    map[string]image.Rectangle{},
	}
}

func (f *fakeCodec) Open(path string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sz, ok := f.sizes[path]
	if !ok {
		return 0, 0, errors.New("no such image")
	}
	return sz[0], sz[1], nil
}

func (f *fakeCodec) Decode(path string) (image.Image, error) {
	w, h, err := f.Open(path)
	if err != nil {
		return nil, err
	}
	return image.NewGray(image.Rect(0, 0, w, h)), nil
}

func (f *fakeCodec) Resize(img image.Image, width, height int) image.Image {
	return image.NewGray(image.Rect(0, 0, width, height))
}

func (f *fakeCodec) Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	r := rect.Intersect(img.Bounds())
	if r.Empty() {
		return nil, errors.New("empty crop rectangle")
	}
	return img.(*image.Gray).SubImage(r), nil
}

func (f *fakeCodec) Save(img image.Image, path string, format codec.Format) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave[path] {
		return errors.New("disk full")
	}
	f.saved[path] = img.Bounds()
	return nil
}

var errBusy = errors.New("preview busy")

type fakeStore struct {
	next       int
	live       map[string]bool
	removed    []string
	failRemove bool
}

func (s *fakeStore) Put(img image.Image, name string) (string, error) {
	if s.live == nil {
		s.live = map[string]bool{}
	}
	s.next++
	path := "/tmp/preview-" + name + "-" + string(rune('0'+s.next))
	s.live[path] = true
	return path, nil
}

func (s *fakeStore) Remove(path string) error {
	if s.failRemove {
		return fmt.Errorf("remove %s: %w", path, errBusy)
	}
	delete(s.live, path)
	s.removed = append(s.removed, path)
	return nil
}

func sized(path string, w, h int) (*Slide, *fakeCodec) {
	c := newFakeCodec()
	c.sizes[path] = [2]int{w, h}
	s := New(path)
	s.Width, s.Height = w, h
	return s, c
}

func TestNew(t *testing.T) {
	s := New("/data/slides/tissue.png")
	assert.Equal(t, "tissue.png", s.FileName)
	assert.Equal(t, "/data/slides", s.FolderPath)
	assert.Equal(t, "tissue", s.BaseName())
	assert.False(t, s.HasDimensions())
	assert.Equal(t, 1, s.ScaleDenominator())
}

func TestAddSelectionClamps(t *testing.T) {
	s, _ := sized("a.png", 100, 100)

	assert.Equal(t, 1, s.AddSelection(geometry.Point{X: 5, Y: 95}, 20, 20))
	assert.Equal(t, 2, s.AddSelection(geometry.Point{X: 50, Y: 50}, 20, 20))

	sel, err := s.Selection(1)
	require.NoError(t, err)
	assert.Equal(t, geometry.Point{X: 10, Y: 90}, sel.Center)
	assert.True(t, geometry.Fits(sel, 100, 100))
}

func TestAddSelectionWithoutDimensions(t *testing.T) {
	s := New("a.png")
	s.AddSelection(geometry.Point{X: -5, Y: 3}, 20, 20)
	sel, err := s.Selection(1)
	require.NoError(t, err)
	assert.Equal(t, geometry.Point{X: -5, Y: 3}, sel.Center)
}

func TestRemoveSelectionRenumbers(t *testing.T) {
	s, _ := sized("a.png", 1000, 1000)
	for i := 1; i <= 5; i++ {
		s.AddSelection(geometry.Point{X: i * 100, Y: i * 100}, 10, 10)
	}
	before := s.Selections()

	require.NoError(t, s.RemoveSelection(2))
	assert.Equal(t, 4, s.Len())

	after := s.Selections()
	assert.Equal(t, before[0], after[0])
	for i := 2; i < len(before); i++ {
		// display index i+1 becomes i
		assert.Equal(t, before[i], after[i-1])
	}
}

func TestRemoveSelectionOutOfRange(t *testing.T) {
	s, _ := sized("a.png", 100, 100)
	s.AddSelection(geometry.Point{X: 50, Y: 50}, 10, 10)

	assert.ErrorIs(t, s.RemoveSelection(0), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.RemoveSelection(2), ErrIndexOutOfRange)
	assert.Equal(t, 1, s.Len())
}

func TestMoveSelection(t *testing.T) {
	s, _ := sized("a.png", 100, 100)
	s.AddSelection(geometry.Point{X: 50, Y: 50}, 10, 10)

	require.NoError(t, s.MoveSelection(1, geometry.Point{X: 200, Y: 20}))
	sel, _ := s.Selection(1)
	assert.Equal(t, geometry.Point{X: 95, Y: 20}, sel.Center)
	assert.ErrorIs(t, s.MoveSelection(3, geometry.Point{}), ErrIndexOutOfRange)
}

func TestCheckSelectionSizeFits(t *testing.T) {
	s, _ := sized("a.png", 100, 100)
	s.AddSelection(geometry.Point{X: 10, Y: 10}, 4, 4)

	assert.False(t, s.CheckSelectionSizeFits(40, 40))
	assert.True(t, s.CheckSelectionSizeFits(10, 10))

	sel, _ := s.Selection(1)
	assert.Equal(t, 4, sel.Width, "check must not modify selections")
}

func TestSetSelectionSize(t *testing.T) {
	s, _ := sized("a.png", 100, 100)
	s.AddSelection(geometry.Point{X: 10, Y: 10}, 4, 4)
	s.AddSelection(geometry.Point{X: 90, Y: 50}, 4, 4)

	s.SetSelectionSize(30, 30)
	for _, sel := range s.Selections() {
		assert.Equal(t, 30, sel.Width)
		assert.Equal(t, 30, sel.Height)
		assert.True(t, geometry.Fits(sel, 100, 100))
	}
}

func TestRelocate(t *testing.T) {
	s, c := sized("/old/tissue.png", 1000, 1000)
	s.AddSelection(geometry.Point{X: 900, Y: 900}, 100, 100)
	s.preview = &Preview{Path: "/tmp/p", Scale: 4}
	c.sizes["/new/tissue-v2.png"] = [2]int{500, 400}

	require.NoError(t, s.Relocate("/new/tissue-v2.png", c))
	assert.Equal(t, "/new/tissue-v2.png", s.Path)
	assert.Equal(t, "tissue-v2.png", s.FileName)
	assert.Equal(t, "/new", s.FolderPath)
	assert.Equal(t, 500, s.Width)
	assert.Equal(t, 400, s.Height)
	assert.Equal(t, 1, s.ScaleDenominator())

	sel, _ := s.Selection(1)
	assert.Equal(t, geometry.Point{X: 450, Y: 350}, sel.Center)
}

func TestRelocateMissingImage(t *testing.T) {
	s, c := sized("/old/tissue.png", 1000, 1000)
	assert.Error(t, s.Relocate("/nowhere.png", c))
	assert.Equal(t, "/old/tissue.png", s.Path)
}

func TestExportNames(t *testing.T) {
	s := New("tissue.png")
	for i := 0; i < 3; i++ {
		s.AppendSelection(geometry.NewSelection(10, 10, 4, 4))
	}
	assert.Equal(t, []string{"tissue_1.tif", "tissue_2.tif", "tissue_3.tif"}, s.ExportNames())
	assert.Equal(t, []string{"tissue_1.png", "tissue_2.png", "tissue_3.png"}, s.ExportNamesFor(codec.PNG))
}

func TestExportCrops(t *testing.T) {
	s, c := sized("tissue.png", 100, 100)
	s.AddSelection(geometry.Point{X: 20, Y: 20}, 10, 11)
	s.AddSelection(geometry.Point{X: 50, Y: 50}, 10, 10)
	s.AddSelection(geometry.Point{X: 80, Y: 80}, 10, 10)
	c.failSave["/out/tissue_2.tif"] = true

	exported, failed, err := s.ExportCrops("/out", c, codec.TIFF)
	assert.Error(t, err)
	assert.Equal(t, []string{"tissue_1.tif", "tissue_3.tif"}, exported)
	assert.Equal(t, []string{"tissue_2.tif"}, failed)
	assert.Equal(t, image.Rect(15, 15, 25, 26), c.saved["/out/tissue_1.tif"])
}

func TestExportCropsClampsToDecodedImage(t *testing.T) {
	s, c := sized("tissue.png", 100, 80)
	s.Width, s.Height = 0, 0
	s.AppendSelection(geometry.NewSelection(95, 40, 20, 20))

	exported, failed, err := s.ExportCrops("/out", c, codec.TIFF)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, []string{"tissue_1.tif"}, exported)
	assert.Equal(t, image.Rect(80, 30, 100, 50), c.saved["/out/tissue_1.tif"])
	assert.Equal(t, 100, s.Width)
	assert.Equal(t, 80, s.Height)
}

func TestExportCropsUnreadableSource(t *testing.T) {
	s := New("gone.png")
	s.AppendSelection(geometry.NewSelection(10, 10, 4, 4))
	s.AppendSelection(geometry.NewSelection(20, 20, 4, 4))

	exported, failed, err := s.ExportCrops("/out", newFakeCodec(), codec.TIFF)
	assert.Error(t, err)
	assert.Empty(t, exported)
	assert.Equal(t, []string{"gone_1.tif", "gone_2.tif"}, failed)
}

func TestGeneratePreviewRollbackReportsRemoveError(t *testing.T) {
	s, c := sized("tissue.png", 1000, 800)
	store := &fakeStore{}
	require.NoError(t, s.GeneratePreview(c, store, 0.25))

	store.failRemove = true
	err := s.GeneratePreview(c, store, 0.25)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBusy)
	assert.Contains(t, err.Error(), "/tmp/preview-tissue.png-1")
	assert.Contains(t, err.Error(), "/tmp/preview-tissue.png-2")
}

func TestGeneratePreview(t *testing.T) {
	s, c := sized("tissue.png", 1000, 800)
	s.Width, s.Height = 0, 0
	s.AppendSelection(geometry.NewSelection(980, 400, 100, 100))
	store := &fakeStore{}

	require.NoError(t, s.GeneratePreview(c, store, 0.25))
	p, ok := s.Preview()
	require.True(t, ok)
	assert.Equal(t, 250, p.Width)
	assert.Equal(t, 200, p.Height)
	assert.Equal(t, 4, s.ScaleDenominator())
	assert.Equal(t, 1000, s.Width)

	// dimensions are now known, so the selection was clamped
	sel, _ := s.Selection(1)
	assert.Equal(t, 950, sel.Center.X)

	ps := s.PreviewSelections()
	assert.InDelta(t, 237.5, ps[0].Center.X, 1e-9)
	assert.InDelta(t, 25, ps[0].Width, 1e-9)
	assert.Equal(t, geometry.Point{X: 400, Y: 40}, s.PreviewPoint(100, 10))

	// regenerating replaces the old artifact
	old := p.Path
	require.NoError(t, s.GeneratePreview(c, store, 0.5))
	assert.Contains(t, store.removed, old)
	assert.Len(t, store.live, 1)

	// full resolution drops the preview entirely
	require.NoError(t, s.GeneratePreview(c, store, 1))
	_, ok = s.Preview()
	assert.False(t, ok)
	assert.Empty(t, store.live)
	assert.Equal(t, 1, s.ScaleDenominator())
}

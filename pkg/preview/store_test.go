package preview

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/slides-crop/pkg/codec"
	"github.com/menta2k/slides-crop/pkg/processing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStore(processing.NewProcessor(), codec.PNG, t.TempDir(), logger)
	t.Cleanup(func() { s.Close() })
	return s
}

func testImage() image.Image {
	return imaging.New(16, 12, color.NRGBA{10, 20, 30, 255})
}

func TestPutCreatesDirectoryLazily(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.Dir())

	path, err := s.Put(testImage(), "a.tif")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Dir())
	assert.Equal(t, s.Dir(), filepath.Dir(path))
	assert.Equal(t, ".png", filepath.Ext(path))
	assert.FileExists(t, path)
	assert.Equal(t, 1, s.Len())

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 12), img.Bounds())
}

func TestPutUniqueNames(t *testing.T) {
	s := newTestStore(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = map[string]bool{}
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, err := s.Put(testImage(), "same.tif")
			assert.NoError(t, err)
			mu.Lock()
			paths[path] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, paths, 8)
	assert.Equal(t, 8, s.Len())
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Put(testImage(), "a.tif")
	require.NoError(t, err)

	require.NoError(t, s.Remove(path))
	assert.NoFileExists(t, path)
	assert.Equal(t, 0, s.Len())

	// unknown paths are ignored
	require.NoError(t, s.Remove(path))
	require.NoError(t, s.Remove("/not/a/preview.png"))
}

func TestCloseRemovesEverything(t *testing.T) {
	s := newTestStore(t)
	for range 3 {
		_, err := s.Put(testImage(), "a.tif")
		require.NoError(t, err)
	}
	dir := s.Dir()

	require.NoError(t, s.Close())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Close())
	_, err = s.Put(testImage(), "a.tif")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWithoutPut(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Close())
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	first, err := s.Put(testImage(), "a.tif")
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	assert.NoFileExists(t, first)

	second, err := s.Put(testImage(), "a.tif")
	require.NoError(t, err)
	assert.FileExists(t, second)
	assert.NotEqual(t, filepath.Dir(first), filepath.Dir(second))
}

func TestPutFailureIsNotTracked(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewStore(processing.NewProcessor(), codec.Format("gif"), t.TempDir(), logger)
	defer s.Close()

	_, err := s.Put(testImage(), "a.tif")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "a.tif")
	assert.Equal(t, 0, s.Len())
}

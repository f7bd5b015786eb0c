package processing

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/slides-crop/pkg/codec"
)

// Options configures encoding and caching
type Options struct {
	Quality         int
	Lossless        bool
	TIFFCompression string
	CacheSize       int
}

// DefaultOptions returns the encoder settings used by NewProcessor
func DefaultOptions() Options {
	return Options{
		Quality:         90,
		Lossless:        false,
		TIFFCompression: "deflate",
		CacheSize:       256,
	}
}

type dimensions struct {
	width   int
	height  int
	size    int64
	modTime int64
}

// Processor handles image processing operations. It implements codec.ImageCodec.
type Processor struct {
	opts Options
	dims *lru.Cache[string, dimensions]
}

var _ codec.ImageCodec = (*Processor)(nil)

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return NewProcessorWithOptions(DefaultOptions())
}

// NewProcessorWithOptions creates a processor with custom encoder settings
func NewProcessorWithOptions(opts Options) *Processor {
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = 90
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	cache, _ := lru.New[string, dimensions](opts.CacheSize)
	return &Processor{opts: opts, dims: cache}
}

// Open returns the dimensions of an image without decoding its pixels.
// Results are cached per path until the file changes.
func (p *Processor) Open(path string) (int, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	if info.IsDir() {
		return 0, 0, fmt.Errorf("%s is a directory", path)
	}
	if d, ok := p.dims.Get(path); ok && d.size == info.Size() && d.modTime == info.ModTime().UnixNano() {
		return d.width, d.height, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return 0, 0, serr
		}
		// Fallback: explicit WebP header parse
		cfg, err = webp.DecodeConfig(f)
		if err != nil {
			return 0, 0, fmt.Errorf("image: unknown format for %s", path)
		}
	}

	p.dims.Add(path, dimensions{
		width:   cfg.Width,
		height:  cfg.Height,
		size:    info.Size(),
		modTime: info.ModTime().UnixNano(),
	})
	return cfg.Width, cfg.Height, nil
}

// Decode loads an image from a file path with WebP support
func (p *Processor) Decode(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// Resize scales img to exactly width x height
func (p *Processor) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Crop extracts rect from img. The rectangle is intersected with the image
// bounds first; an empty intersection is an error.
func (p *Processor) Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	bounds := img.Bounds()
	rect = rect.Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}
	return imaging.Crop(img, rect), nil
}

// Save encodes img into a temporary file next to path and renames it into
// place, replacing any existing file.
func (p *Processor) Save(img image.Image, path string, format codec.Format) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if err := p.encode(tmp, img, format); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (p *Processor) encode(w io.Writer, img image.Image, format codec.Format) error {
	switch format {
	case codec.TIFF:
		compression := p.tiffCompression()
		return tiff.Encode(w, img, &tiff.Options{
			Compression: compression,
			Predictor:   compression != tiff.Uncompressed,
		})
	case codec.WebP:
		return webp.Encode(w, img, &webp.Options{Lossless: p.opts.Lossless, Quality: float32(p.opts.Quality)})
	case codec.PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case codec.JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.opts.Quality))
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func (p *Processor) tiffCompression() tiff.CompressionType {
	switch strings.ToLower(p.opts.TIFFCompression) {
	case "none", "":
		return tiff.Uncompressed
	default:
		return tiff.Deflate
	}
}

// Helper functions
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

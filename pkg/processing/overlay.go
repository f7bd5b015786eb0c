package processing

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultSelectionColor matches the outline color used by the selection view
var DefaultSelectionColor = color.NRGBA{255, 0, 0, 255}

// Annotate returns a copy of img with every rectangle outlined and labeled
// with its 1-based index, in list order.
func (p *Processor) Annotate(img image.Image, rects []image.Rectangle, c color.NRGBA) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	stroke := int(math.Max(1, 0.002*float64(min(w, h))))
	for i, r := range rects {
		drawBox(nrgba, r, c, stroke)
		drawLabel(nrgba, r, strconv.Itoa(i+1), c)
	}
	return nrgba
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawLabel(img *image.NRGBA, r image.Rectangle, text string, c color.NRGBA) {
	face := basicfont.Face7x13
	bounds := img.Bounds()
	x := clamp(r.Min.X+3, 0, max(bounds.Dx()-7*len(text), 0))
	y := clamp(r.Min.Y+face.Ascent+2, face.Ascent, bounds.Dy())
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = clamp(x0, 0, img.Bounds().Dx())
	x1 = clamp(x1, 0, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = clamp(y0, 0, img.Bounds().Dy())
	y1 = clamp(y1, 0, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

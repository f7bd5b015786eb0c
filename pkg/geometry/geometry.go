// Package geometry implements the selection rectangle model used for cropping
// slides. All coordinates are integer pixels in full-resolution image space.
//
// A selection is described by its center and size. The half before the center
// is floor(size/2) and the half after it is ceil(size/2), so odd sizes always
// extend one pixel further to the right and bottom. Every crop and bounds check
// in the module goes through ComputeBounds so the split stays consistent.
package geometry

import (
	"image"
	"math"
)

// Point is a pixel coordinate.
type Point struct {
	X int
	Y int
}

// Selection is a rectangular region identified by its center.
type Selection struct {
	Center Point
	Width  int
	Height int
}

// NewSelection creates a selection centered at (x, y)
func NewSelection(x, y, width, height int) Selection {
	return Selection{Center: Point{X: x, Y: y}, Width: width, Height: height}
}

// Bounds is the edge representation of a selection. Right and Bottom are
// exclusive, matching image.Rectangle.
type Bounds struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Rect converts the bounds to an image.Rectangle
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Width returns the horizontal extent
func (b Bounds) Width() int {
	return b.Right - b.Left
}

// Height returns the vertical extent
func (b Bounds) Height() int {
	return b.Bottom - b.Top
}

// ComputeBounds returns the edges of a selection.
func ComputeBounds(s Selection) Bounds {
	return Bounds{
		Left:   s.Center.X - floorHalf(s.Width),
		Top:    s.Center.Y - floorHalf(s.Height),
		Right:  s.Center.X + ceilHalf(s.Width),
		Bottom: s.Center.Y + ceilHalf(s.Height),
	}
}

// Bounds is shorthand for ComputeBounds(s)
func (s Selection) Bounds() Bounds {
	return ComputeBounds(s)
}

// Fits reports whether the selection lies entirely inside a width x height image.
func Fits(s Selection, width, height int) bool {
	b := ComputeBounds(s)
	return b.Left >= 0 && b.Top >= 0 && b.Right <= width && b.Bottom <= height
}

// ClampToImage moves the selection center so the rectangle stays inside the
// image while keeping its size. The right/bottom edge is corrected first and the
// left/top edge second, so a selection larger than the image ends up flush with
// the left/top edge.
func ClampToImage(s Selection, imageWidth, imageHeight int) Selection {
	s.Center.X = clampAxis(s.Center.X, s.Width, imageWidth)
	s.Center.Y = clampAxis(s.Center.Y, s.Height, imageHeight)
	return s
}

func clampAxis(center, size, limit int) int {
	if center+ceilHalf(size) > limit {
		center = limit - ceilHalf(size)
	}
	if center-floorHalf(size) < 0 {
		center = floorHalf(size)
	}
	return center
}

// Resize replaces the selection size and re-centers it so the new rectangle
// still fits the image.
func Resize(s Selection, newWidth, newHeight, imageWidth, imageHeight int) Selection {
	s.Width = newWidth
	s.Height = newHeight

	s.Center.X = max(s.Center.X, ceilHalf(newWidth))
	s.Center.Y = max(s.Center.Y, ceilHalf(newHeight))
	s.Center.X = min(s.Center.X, imageWidth-ceilHalf(newWidth))
	s.Center.Y = min(s.Center.Y, imageHeight-ceilHalf(newHeight))

	// oversize selections fall back to the flush placement
	return ClampToImage(s, imageWidth, imageHeight)
}

// Move returns the selection centered at p.
func (s Selection) Move(p Point) Selection {
	s.Center = p
	return s
}

func floorHalf(v int) int {
	return int(math.Floor(float64(v) / 2))
}

func ceilHalf(v int) int {
	return int(math.Ceil(float64(v) / 2))
}

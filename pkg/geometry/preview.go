package geometry

import "math"

// Supported preview resolutions
var PreviewResolutions = []float64{1, 0.5, 0.25, 0.1}

// PointF is a coordinate in preview space.
type PointF struct {
	X float64
	Y float64
}

// PreviewSelection is a selection expressed in the coordinates of a
// downsampled preview.
type PreviewSelection struct {
	Center PointF
	Width  float64
	Height float64
}

// ScaleDenominator converts a preview resolution (1, 0.5, 0.25, 0.1) into the
// integer factor between full-resolution and preview coordinates.
func ScaleDenominator(resolution float64) int {
	if resolution <= 0 || resolution >= 1 {
		return 1
	}
	d := int(math.Round(1 / resolution))
	if d < 1 {
		return 1
	}
	return d
}

// PreviewSize returns the dimensions of a preview generated at resolution.
func PreviewSize(width, height int, resolution float64) (int, int) {
	if resolution <= 0 || resolution >= 1 {
		return width, height
	}
	return int(math.Ceil(float64(width) * resolution)), int(math.Ceil(float64(height) * resolution))
}

// TransformForPreview divides center and size by scaleDenominator.
func TransformForPreview(s Selection, scaleDenominator int) PreviewSelection {
	d := float64(max(scaleDenominator, 1))
	return PreviewSelection{
		Center: PointF{X: float64(s.Center.X) / d, Y: float64(s.Center.Y) / d},
		Width:  float64(s.Width) / d,
		Height: float64(s.Height) / d,
	}
}

// ToFullResolution is the inverse of TransformForPreview. Values are rounded
// to the nearest pixel, which is exact whenever the original coordinates were
// multiples of scaleDenominator.
func (p PreviewSelection) ToFullResolution(scaleDenominator int) Selection {
	d := float64(max(scaleDenominator, 1))
	return Selection{
		Center: Point{X: round(p.Center.X * d), Y: round(p.Center.Y * d)},
		Width:  round(p.Width * d),
		Height: round(p.Height * d),
	}
}

// PreviewPointToFull maps a point picked on a preview to full-resolution pixels.
func PreviewPointToFull(x, y float64, scaleDenominator int) Point {
	d := float64(max(scaleDenominator, 1))
	return Point{X: round(x * d), Y: round(y * d)}
}

func round(v float64) int {
	return int(math.Round(v))
}

package render

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Display percentiles for cutout scaling. Clipping at 1/99 keeps hot pixels
// and difference-imaging artifacts from washing out the stretch.
const (
	lowerPercentile = 0.01
	upperPercentile = 0.99
)

// DisplayBounds computes the grayscale stretch for a set of pixels as the
// 1st and 99th percentiles of the finite values. ok is false when the frame
// has no finite pixels at all, in which case callers fall back to a flat
// rendering rather than failing.
func DisplayBounds(pixels []float64) (vmin, vmax float64, ok bool) {
	finite := make([]float64, 0, len(pixels))
	for _, v := range pixels {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, false
	}

	sort.Float64s(finite)
	vmin = stat.Quantile(lowerPercentile, stat.LinInterp, finite, nil)
	vmax = stat.Quantile(upperPercentile, stat.LinInterp, finite, nil)
	return vmin, vmax, true
}

// Rasterize maps a frame onto an 8-bit grayscale raster using the percentile
// stretch. The FITS origin is lower-left, so rows are flipped into raster
// order. Non-finite pixels render black; a frame whose finite values are all
// equal renders mid-gray.
func Rasterize(frame *Frame) *image.Gray {
	vmin, vmax, ok := DisplayBounds(frame.Pixels)
	span := vmax - vmin

	img := image.NewGray(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		row := img.Pix[(frame.Height-1-y)*img.Stride:]
		for x := 0; x < frame.Width; x++ {
			row[x] = grayValue(frame.At(x, y), vmin, span, ok)
		}
	}
	return img
}

func grayValue(v, vmin, span float64, scaled bool) uint8 {
	switch {
	case !scaled, !isFinite(v):
		return 0
	case span <= 0:
		return 128
	}
	t := (v - vmin) / span
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 255
	}
	return uint8(t*255 + 0.5)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

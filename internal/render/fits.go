package render

import (
	"bytes"
	"fmt"

	"github.com/astrogo/fitsio"
)

// Frame is a decoded 2-D FITS image. Pixels are row-major with the x axis
// fastest, in FITS orientation: row 0 is the bottom of the image.
type Frame struct {
	Width  int
	Height int
	Pixels []float64
}

// At returns the pixel at (x, y) in FITS coordinates.
func (f *Frame) At(x, y int) float64 {
	return f.Pixels[y*f.Width+x]
}

// DecodeFrame extracts the first 2-D image from a FITS file: the first HDU
// whose axes, after dropping singleton dimensions, are exactly 2-D. The label
// names the cutout in the returned error when no such HDU exists.
func DecodeFrame(data []byte, label string) (*Frame, error) {
	f, err := fitsio.Open(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open FITS for %q: %w", label, err)
	}
	defer f.Close()

	for _, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}

		width, height, ok := squeezeAxes(img.Header().Axes())
		if !ok {
			continue
		}

		pixels, err := readPixels(img)
		if err != nil {
			return nil, fmt.Errorf("read FITS pixels for %q: %w", label, err)
		}
		if len(pixels) != width*height {
			return nil, fmt.Errorf("FITS data for %q has %d pixels, axes say %dx%d",
				label, len(pixels), width, height)
		}

		return &Frame{Width: width, Height: height, Pixels: pixels}, nil
	}

	return nil, &NoImageDataError{Label: label}
}

// squeezeAxes drops singleton axes and reports the surviving (width, height).
// Axes are FITS-ordered: NAXIS1 (fastest-varying, x) first. Singleton axes
// carry no stride, so the flat pixel order is unaffected by dropping them.
func squeezeAxes(axes []int) (width, height int, ok bool) {
	var kept []int
	for _, n := range axes {
		if n > 1 {
			kept = append(kept, n)
		}
	}
	if len(kept) != 2 {
		return 0, 0, false
	}
	return kept[0], kept[1], true
}

// readPixels reads the HDU's data as float64 regardless of BITPIX.
func readPixels(img fitsio.Image) ([]float64, error) {
	// fitsio's Read requires a slice with capacity for every element; it
	// sets the length but never grows the slice.
	n := 0
	if axes := img.Header().Axes(); len(axes) > 0 {
		n = 1
		for _, dim := range axes {
			n *= dim
		}
	}

	switch bitpix := img.Header().Bitpix(); bitpix {
	case 8:
		raw := make([]int8, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat64(raw), nil
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat64(raw), nil
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat64(raw), nil
	case 64:
		raw := make([]int64, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat64(raw), nil
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat64(raw), nil
	case -64:
		raw := make([]float64, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
}

func toFloat64[T int8 | int16 | int32 | int64 | float32](raw []T) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out
}

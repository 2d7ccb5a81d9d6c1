package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
)

// makeFITS builds an in-memory FITS file with a single float64 image HDU.
func makeFITS(t *testing.T, axes []int, pixels []float64) []byte {
	t.Helper()

	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		t.Fatalf("create FITS: %v", err)
	}

	img := fitsio.NewImage(-64, axes)
	defer img.Close()
	if err := img.Write(&pixels); err != nil {
		t.Fatalf("write FITS data: %v", err)
	}
	if err := f.Write(img); err != nil {
		t.Fatalf("write FITS HDU: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close FITS: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeFrame(t *testing.T) {
	pixels := []float64{1, 2, 3, 4, 5, 6}
	data := makeFITS(t, []int{3, 2}, pixels)

	frame, err := DecodeFrame(data, "Science")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Width != 3 || frame.Height != 2 {
		t.Fatalf("expected 3x2 frame, got %dx%d", frame.Width, frame.Height)
	}
	if frame.At(0, 0) != 1 || frame.At(2, 1) != 6 {
		t.Errorf("pixel order wrong: %v", frame.Pixels)
	}
}

func TestDecodeFrameSqueezesSingletonAxes(t *testing.T) {
	pixels := []float64{1, 2, 3, 4}
	data := makeFITS(t, []int{2, 2, 1}, pixels)

	frame, err := DecodeFrame(data, "Science")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Width != 2 || frame.Height != 2 {
		t.Fatalf("expected squeezed 2x2 frame, got %dx%d", frame.Width, frame.Height)
	}
}

func TestDecodeFrameNoTwoDimensionalData(t *testing.T) {
	// a 1-D HDU only: no 2-D frame to extract
	pixels := []float64{1, 2, 3, 4}
	data := makeFITS(t, []int{4}, pixels)

	_, err := DecodeFrame(data, "Template")
	if err == nil {
		t.Fatal("expected an error for 1-D data")
	}

	var noImage *NoImageDataError
	if !errors.As(err, &noImage) {
		t.Fatalf("expected NoImageDataError, got %T: %v", err, err)
	}
	if noImage.Label != "Template" {
		t.Errorf("error should name the label, got %q", noImage.Label)
	}
	if !strings.Contains(err.Error(), "Template") {
		t.Errorf("error message should mention the label: %v", err)
	}
}

func TestDecodeFrameGarbage(t *testing.T) {
	if _, err := DecodeFrame([]byte("not a fits file"), "Science"); err == nil {
		t.Fatal("expected an error for malformed input")
	}
}

func TestSqueezeAxes(t *testing.T) {
	tests := []struct {
		axes   []int
		width  int
		height int
		ok     bool
	}{
		{[]int{10, 20}, 10, 20, true},
		{[]int{1, 10, 20}, 10, 20, true},
		{[]int{10, 1, 20, 1}, 10, 20, true},
		{[]int{10}, 0, 0, false},
		{[]int{10, 20, 30}, 0, 0, false},
		{[]int{1, 1}, 0, 0, false},
		{nil, 0, 0, false},
	}

	for _, tt := range tests {
		w, h, ok := squeezeAxes(tt.axes)
		if w != tt.width || h != tt.height || ok != tt.ok {
			t.Errorf("squeezeAxes(%v) = (%d, %d, %v), want (%d, %d, %v)",
				tt.axes, w, h, ok, tt.width, tt.height, tt.ok)
		}
	}
}

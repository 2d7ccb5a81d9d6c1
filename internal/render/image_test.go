package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"testing"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
)

// stubFetcher serves cutouts from memory, keyed by URL.
type stubFetcher struct {
	cutouts map[string][]byte
	err     error
}

func (s *stubFetcher) FetchCutout(_ context.Context, url string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.cutouts[url]
	if !ok {
		return nil, fmt.Errorf("no cutout at %s", url)
	}
	return data, nil
}

func testGroup(t *testing.T) (lasair.ImageURLGroup, *stubFetcher) {
	t.Helper()
	pixels := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	fits := makeFITS(t, []int{3, 3}, pixels)

	group := lasair.ImageURLGroup{
		DiaSourceID: 42,
		URLs: map[string]string{
			lasair.LabelScience:    "https://broker.test/sci.fits",
			lasair.LabelTemplate:   "https://broker.test/tmpl.fits",
			lasair.LabelDifference: "https://broker.test/diff.fits",
		},
	}
	fetcher := &stubFetcher{cutouts: map[string][]byte{
		"https://broker.test/sci.fits":  fits,
		"https://broker.test/tmpl.fits": fits,
		"https://broker.test/diff.fits": fits,
	}}
	return group, fetcher
}

func TestImageRendererProducesPNG(t *testing.T) {
	group, fetcher := testGroup(t)
	r := NewScienceRenderer(fetcher)

	media, err := r.Render(context.Background(), group, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if media.MIMEType != MIMETypePNG {
		t.Errorf("expected %s, got %s", MIMETypePNG, media.MIMEType)
	}

	img, err := png.Decode(bytes.NewReader(media.Data))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 3 {
		t.Errorf("expected 3x3 PNG, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestMissingLabelFailsIndependently(t *testing.T) {
	group, fetcher := testGroup(t)
	delete(group.URLs, lasair.LabelTemplate)

	_, err := NewTemplateRenderer(fetcher).Render(context.Background(), group, nil)
	if err == nil {
		t.Fatal("expected template renderer to fail")
	}
	var noImage *NoImageDataError
	if !errors.As(err, &noImage) {
		t.Fatalf("expected NoImageDataError, got %T: %v", err, err)
	}
	if noImage.Label != lasair.LabelTemplate {
		t.Errorf("error should name %q, got %q", lasair.LabelTemplate, noImage.Label)
	}

	// the sibling renderers on the same group still succeed
	if _, err := NewScienceRenderer(fetcher).Render(context.Background(), group, nil); err != nil {
		t.Errorf("science renderer failed: %v", err)
	}
	if _, err := NewDifferenceRenderer(fetcher).Render(context.Background(), group, nil); err != nil {
		t.Errorf("difference renderer failed: %v", err)
	}
}

func TestImageRendererFetchError(t *testing.T) {
	group, _ := testGroup(t)
	fetchErr := errors.New("broker unreachable")

	_, err := NewScienceRenderer(&stubFetcher{err: fetchErr}).Render(context.Background(), group, nil)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected the fetch error to propagate, got %v", err)
	}
}

func TestRendererNames(t *testing.T) {
	fetcher := &stubFetcher{}
	names := map[string]Renderer{
		"science":    NewScienceRenderer(fetcher),
		"template":   NewTemplateRenderer(fetcher),
		"difference": NewDifferenceRenderer(fetcher),
		"triplet":    NewTripletRenderer(fetcher),
		"lightcurve": NewLightCurveRenderer(),
	}
	for want, r := range names {
		if got := r.Name(); got != want {
			t.Errorf("expected name %q, got %q", want, got)
		}
	}
}

package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
)

// ImageRenderer renders one labeled cutout from an image URL group as a
// grayscale PNG.
type ImageRenderer struct {
	label   string
	fetcher CutoutFetcher
}

// NewImageRenderer creates a renderer for an arbitrary cutout label.
func NewImageRenderer(label string, fetcher CutoutFetcher) *ImageRenderer {
	return &ImageRenderer{label: label, fetcher: fetcher}
}

// NewScienceRenderer renders the science cutout.
func NewScienceRenderer(fetcher CutoutFetcher) *ImageRenderer {
	return NewImageRenderer(lasair.LabelScience, fetcher)
}

// NewTemplateRenderer renders the template (reference) cutout.
func NewTemplateRenderer(fetcher CutoutFetcher) *ImageRenderer {
	return NewImageRenderer(lasair.LabelTemplate, fetcher)
}

// NewDifferenceRenderer renders the difference cutout.
func NewDifferenceRenderer(fetcher CutoutFetcher) *ImageRenderer {
	return NewImageRenderer(lasair.LabelDifference, fetcher)
}

// Name returns the lowercase cutout label.
func (r *ImageRenderer) Name() string {
	return strings.ToLower(r.label)
}

// Render fetches and decodes the labeled cutout and encodes it as PNG.
func (r *ImageRenderer) Render(ctx context.Context, group lasair.ImageURLGroup, _ []lasair.DiaSource) (Media, error) {
	frame, err := r.frame(ctx, group)
	if err != nil {
		return Media{}, err
	}

	data, err := encodePNG(Rasterize(frame))
	if err != nil {
		return Media{}, fmt.Errorf("encode %s cutout: %w", r.Name(), err)
	}

	log.Debug().
		Str("renderer", r.Name()).
		Int64("diaSourceId", group.DiaSourceID).
		Int("width", frame.Width).
		Int("height", frame.Height).
		Msg("Cutout rendered")

	return Media{Data: data, MIMEType: MIMETypePNG}, nil
}

// frame fetches and decodes the 2-D image for this renderer's label.
func (r *ImageRenderer) frame(ctx context.Context, group lasair.ImageURLGroup) (*Frame, error) {
	url, ok := group.URLs[r.label]
	if !ok {
		return nil, &NoImageDataError{Label: r.label}
	}

	data, err := r.fetcher.FetchCutout(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s cutout: %w", r.Name(), err)
	}

	return DecodeFrame(data, r.label)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

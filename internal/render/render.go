// Package render turns one detection epoch's data into uploadable media:
// FITS cutouts become grayscale PNGs scaled to the 1st/99th percentile of
// their finite pixels, and photometry becomes a light-curve JSON document.
package render

import (
	"context"
	"fmt"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
)

// MIME types produced by the renderers.
const (
	MIMETypePNG  = "image/png"
	MIMETypeJSON = "application/json"
)

// Media is one rendered payload ready for upload.
type Media struct {
	Data     []byte
	MIMEType string
}

// Renderer produces one media payload from a detection epoch's image URL
// group and its photometry subset.
type Renderer interface {
	// Name identifies the renderer in logs and configuration.
	Name() string

	// Render produces the payload. Image renderers ignore the photometry;
	// the light-curve renderer ignores the URL group.
	Render(ctx context.Context, group lasair.ImageURLGroup, phot []lasair.DiaSource) (Media, error)
}

// CutoutFetcher downloads a FITS cutout by URL. *lasair.Client implements it.
type CutoutFetcher interface {
	FetchCutout(ctx context.Context, url string) ([]byte, error)
}

// NoImageDataError indicates that no 2-D image could be produced for a
// cutout label, either because the group lacks the label or because the
// FITS file contains no 2-D HDU.
type NoImageDataError struct {
	Label string
}

func (e *NoImageDataError) Error() string {
	return fmt.Sprintf("no 2-D image data found for cutout %q", e.Label)
}

package render

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
)

// TripletRenderer lays the science, template, and difference cutouts side by
// side in a single PNG. Each panel keeps its own percentile stretch.
type TripletRenderer struct {
	panels []*ImageRenderer
}

// NewTripletRenderer creates a renderer composing the three standard cutouts.
func NewTripletRenderer(fetcher CutoutFetcher) *TripletRenderer {
	return &TripletRenderer{
		panels: []*ImageRenderer{
			NewScienceRenderer(fetcher),
			NewTemplateRenderer(fetcher),
			NewDifferenceRenderer(fetcher),
		},
	}
}

// Name identifies the renderer.
func (r *TripletRenderer) Name() string {
	return "triplet"
}

// Render fetches all three cutouts, rasterizes each with its own stretch,
// and composes them left to right at a common panel height.
func (r *TripletRenderer) Render(ctx context.Context, group lasair.ImageURLGroup, _ []lasair.DiaSource) (Media, error) {
	rasters := make([]*image.Gray, 0, len(r.panels))
	for _, panel := range r.panels {
		frame, err := panel.frame(ctx, group)
		if err != nil {
			return Media{}, err
		}
		rasters = append(rasters, Rasterize(frame))
	}

	data, err := encodePNG(composeRow(rasters))
	if err != nil {
		return Media{}, fmt.Errorf("encode triplet: %w", err)
	}
	return Media{Data: data, MIMEType: MIMETypePNG}, nil
}

// composeRow joins panels left to right. Panels shorter than the tallest one
// are scaled up to the common height, preserving aspect ratio.
func composeRow(panels []*image.Gray) *image.Gray {
	height := 0
	for _, p := range panels {
		if h := p.Bounds().Dy(); h > height {
			height = h
		}
	}

	widths := make([]int, len(panels))
	total := 0
	for i, p := range panels {
		b := p.Bounds()
		if b.Dy() == height {
			widths[i] = b.Dx()
		} else {
			widths[i] = b.Dx() * height / b.Dy()
		}
		total += widths[i]
	}

	row := image.NewGray(image.Rect(0, 0, total, height))
	x := 0
	for i, p := range panels {
		dst := image.Rect(x, 0, x+widths[i], height)
		draw.ApproxBiLinear.Scale(row, dst, p, p.Bounds(), draw.Src, nil)
		x += widths[i]
	}
	return row
}

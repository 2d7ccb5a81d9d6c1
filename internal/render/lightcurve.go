package render

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
	"github.com/skysurvey-tools/subjectgen/internal/photometry"
)

// SeriesStyle is the plot styling the annotation platform applies to one
// light-curve series.
type SeriesStyle struct {
	Color string `json:"color"`
	Glyph string `json:"glyph"`
}

// defaultStyles are assigned to series cyclically, so every band gets a
// style even when there are more bands than styles.
func defaultStyles() []SeriesStyle {
	return []SeriesStyle{
		{Color: "white", Glyph: "circle"},
		{Color: "red", Glyph: "square"},
	}
}

// DefaultSeriesLabel is applied to every series unless per-series labels are set.
const DefaultSeriesLabel = "Lightcurve"

// LightCurveRenderer serializes the detection's photometry as a light-curve
// JSON document, one series per band.
type LightCurveRenderer struct {
	styles []SeriesStyle
	labels []string
	label  string
}

// LightCurveOption configures a LightCurveRenderer.
type LightCurveOption func(*LightCurveRenderer)

// WithStyles overrides the cyclic style table.
func WithStyles(styles ...SeriesStyle) LightCurveOption {
	return func(r *LightCurveRenderer) {
		r.styles = append([]SeriesStyle(nil), styles...)
	}
}

// WithSeriesLabel sets one label applied to every series.
func WithSeriesLabel(label string) LightCurveOption {
	return func(r *LightCurveRenderer) {
		r.label = label
		r.labels = nil
	}
}

// WithSeriesLabels sets per-series labels, matched to series by index.
// Series beyond the list keep an empty label.
func WithSeriesLabels(labels ...string) LightCurveOption {
	return func(r *LightCurveRenderer) {
		r.labels = append([]string(nil), labels...)
	}
}

// NewLightCurveRenderer creates a light-curve renderer. Defaults are built
// fresh per call so configured instances never share style slices.
func NewLightCurveRenderer(opts ...LightCurveOption) *LightCurveRenderer {
	r := &LightCurveRenderer{
		styles: defaultStyles(),
		label:  DefaultSeriesLabel,
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.styles) == 0 {
		r.styles = defaultStyles()
	}
	return r
}

// Name identifies the renderer.
func (r *LightCurveRenderer) Name() string {
	return "lightcurve"
}

type seriesPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type seriesOptions struct {
	Color string `json:"color"`
	Glyph string `json:"glyph"`
	Label string `json:"label"`
}

type lightCurveSeries struct {
	SeriesData    []seriesPoint `json:"seriesData"`
	SeriesOptions seriesOptions `json:"seriesOptions"`
}

type lightCurveDocument struct {
	Data []lightCurveSeries `json:"data"`
}

// Render groups the photometry by band and serializes {x: mjd, y: flux}
// pairs per band, pairing each series with a cyclically assigned style.
func (r *LightCurveRenderer) Render(_ context.Context, group lasair.ImageURLGroup, phot []lasair.DiaSource) (Media, error) {
	bands := photometry.BandSeries(phot)

	doc := lightCurveDocument{Data: make([]lightCurveSeries, 0, len(bands))}
	for i, band := range bands {
		points := make([]seriesPoint, band.Len())
		for j := range points {
			points[j] = seriesPoint{X: band.MJD[j], Y: band.Flux[j]}
		}
		doc.Data = append(doc.Data, lightCurveSeries{
			SeriesData: points,
			SeriesOptions: seriesOptions{
				Color: r.styles[i%len(r.styles)].Color,
				Glyph: r.styles[i%len(r.styles)].Glyph,
				Label: r.seriesLabel(i),
			},
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return Media{}, fmt.Errorf("serialize light curve: %w", err)
	}

	log.Debug().
		Int64("diaSourceId", group.DiaSourceID).
		Int("bands", len(bands)).
		Int("points", len(phot)).
		Msg("Light curve rendered")

	return Media{Data: data, MIMEType: MIMETypeJSON}, nil
}

func (r *LightCurveRenderer) seriesLabel(i int) string {
	if r.labels != nil {
		if i < len(r.labels) {
			return r.labels[i]
		}
		return ""
	}
	return r.label
}

// Package subject drives subject generation: a lazy iterator that walks the
// supplied object IDs, fetches each object's image URL groups and photometry
// from the broker, and assembles one media bundle per detection epoch by
// running the configured renderers in order.
package subject

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
	"github.com/skysurvey-tools/subjectgen/internal/photometry"
	"github.com/skysurvey-tools/subjectgen/internal/render"
)

// ErrDone signals normal exhaustion of the object ID sequence.
var ErrDone = errors.New("subject: no more detections")

// Source fetches one object's payload from the broker. *lasair.Client
// implements it.
type Source interface {
	Object(ctx context.Context, objectID string) (*lasair.ObjectPayload, error)
}

// MediaBundle is the upload unit for one detection epoch: the rendered media
// in renderer-configured order plus correlation metadata.
type MediaBundle struct {
	ObjectID    string
	DiaSourceID int64
	Media       []render.Media
	Metadata    map[string]string
}

// Generator iterates media bundles across the supplied object IDs, one per
// image URL group, in (object order, within-object order). It is not safe
// for concurrent use.
type Generator struct {
	source    Source
	renderers []render.Renderer
	batchID   string

	objectIDs []string
	outer     int

	currentID string
	groups    []lasair.ImageURLGroup
	inner     int
	phot      map[int64][]lasair.DiaSource
}

// Option configures a Generator.
type Option func(*Generator)

// WithRenderers overrides the renderer list run per detection epoch.
func WithRenderers(renderers ...render.Renderer) Option {
	return func(g *Generator) {
		g.renderers = append([]render.Renderer(nil), renderers...)
	}
}

// NewGenerator creates a generator over objectIDs. The default renderer list
// is the three single-cutout renderers, built fresh per generator; fetcher is
// only consulted when that default applies.
func NewGenerator(source Source, fetcher render.CutoutFetcher, objectIDs []string, opts ...Option) *Generator {
	g := &Generator{
		source:    source,
		objectIDs: append([]string(nil), objectIDs...),
		batchID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.renderers) == 0 {
		g.renderers = []render.Renderer{
			render.NewScienceRenderer(fetcher),
			render.NewTemplateRenderer(fetcher),
			render.NewDifferenceRenderer(fetcher),
		}
	}

	log.Debug().
		Str("batchId", g.batchID).
		Int("objects", len(g.objectIDs)).
		Int("renderers", len(g.renderers)).
		Msg("Generator initialized")

	return g
}

// BatchID returns the correlation ID stamped into every bundle's metadata.
func (g *Generator) BatchID() string {
	return g.batchID
}

// Next returns the next media bundle, or ErrDone when both the current
// object's groups and the object ID sequence are exhausted.
//
// The cursor advances past a group before rendering it, so a render failure
// is fatal for that detection only: the caller can keep calling Next and
// resume with the following group. Fetch failures propagate untouched; retry
// belongs to the broker client, not here.
func (g *Generator) Next(ctx context.Context) (*MediaBundle, error) {
	group, ok := g.draw()
	if !ok {
		// One re-fetch per call: advance to the next object and try again.
		// A freshly fetched object with zero groups ends the sequence
		// rather than silently looping across empty objects.
		if err := g.advance(ctx); err != nil {
			return nil, err
		}
		group, ok = g.draw()
		if !ok {
			return nil, ErrDone
		}
	}

	return g.assemble(ctx, group)
}

// draw takes the next unconsumed group of the current object.
func (g *Generator) draw() (lasair.ImageURLGroup, bool) {
	if g.inner >= len(g.groups) {
		return lasair.ImageURLGroup{}, false
	}
	group := g.groups[g.inner]
	g.inner++
	return group, true
}

// advance fetches the next object ID's payload and resets the inner cursor.
// The previous object's groups and photometry are released here; nothing is
// retained across objects.
func (g *Generator) advance(ctx context.Context) error {
	if g.outer >= len(g.objectIDs) {
		return ErrDone
	}
	objectID := g.objectIDs[g.outer]
	g.outer++

	payload, err := g.source.Object(ctx, objectID)
	if err != nil {
		return fmt.Errorf("fetch object %s: %w", objectID, err)
	}

	g.currentID = objectID
	g.groups = payload.LasairData.ImageURLs
	g.inner = 0
	g.phot = photometry.GroupByDiaSource(payload.DiaSourcesList)

	log.Debug().
		Str("objectId", objectID).
		Int("imageUrlGroups", len(g.groups)).
		Int("diaSources", len(payload.DiaSourcesList)).
		Msg("Advanced to next object")

	return nil
}

// assemble runs every configured renderer in order over one detection epoch.
// Any renderer failure aborts the bundle; partial bundles are never returned.
func (g *Generator) assemble(ctx context.Context, group lasair.ImageURLGroup) (*MediaBundle, error) {
	phot := g.phot[group.DiaSourceID]

	media := make([]render.Media, 0, len(g.renderers))
	for _, r := range g.renderers {
		m, err := r.Render(ctx, group, phot)
		if err != nil {
			return nil, fmt.Errorf("render %s for diaSource %d: %w", r.Name(), group.DiaSourceID, err)
		}
		media = append(media, m)
	}

	return &MediaBundle{
		ObjectID:    g.currentID,
		DiaSourceID: group.DiaSourceID,
		Media:       media,
		Metadata: map[string]string{
			"objectId":    g.currentID,
			"diaSourceId": strconv.FormatInt(group.DiaSourceID, 10),
			"batchId":     g.batchID,
		},
	}, nil
}

package lasair

import (
	"encoding/json"
	"fmt"
)

// Cutout labels used by the broker's image URL groups.
const (
	LabelScience    = "Science"
	LabelTemplate   = "Template"
	LabelDifference = "Difference"
)

// ImageURLGroup maps cutout labels to FITS URLs for one detection epoch.
// On the wire the group is a flat object mixing the diaSourceId key with
// label keys: {"diaSourceId": 123, "Science": url, "Template": url, ...}.
type ImageURLGroup struct {
	DiaSourceID int64
	URLs        map[string]string
}

// UnmarshalJSON splits the diaSourceId key out of the flat label->URL object.
func (g *ImageURLGroup) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	g.URLs = make(map[string]string, len(raw))
	for key, value := range raw {
		if key == "diaSourceId" {
			if err := json.Unmarshal(value, &g.DiaSourceID); err != nil {
				return fmt.Errorf("parse diaSourceId: %w", err)
			}
			continue
		}
		var url string
		if err := json.Unmarshal(value, &url); err != nil {
			return fmt.Errorf("parse image url for %q: %w", key, err)
		}
		g.URLs[key] = url
	}
	return nil
}

// MarshalJSON restores the flat wire shape.
func (g ImageURLGroup) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(g.URLs)+1)
	flat["diaSourceId"] = g.DiaSourceID
	for label, url := range g.URLs {
		flat[label] = url
	}
	return json.Marshal(flat)
}

// DiaSource is one photometry row for one detection epoch of an object.
type DiaSource struct {
	DiaSourceID int64   `json:"diaSourceId"`
	Band        string  `json:"band"`
	MidpointMJD float64 `json:"midpointMjdTai"`
	PSFFlux     float64 `json:"psfFlux"`
	PSFFluxErr  float64 `json:"psfFluxErr"`
}

// LasairData holds the broker-added extras on an object payload.
type LasairData struct {
	ImageURLs []ImageURLGroup `json:"imageUrls"`
}

// ObjectPayload is the broker response for one object: the image URL groups
// (one per detection epoch) plus the full photometry history.
type ObjectPayload struct {
	ObjectID       string      `json:"objectId"`
	LasairData     LasairData  `json:"lasairData"`
	DiaSourcesList []DiaSource `json:"diaSourcesList"`
}

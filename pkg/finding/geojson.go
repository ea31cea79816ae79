package finding

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSONSink collects findings and writes them as a GeoJSON
// FeatureCollection on Close. Located findings carry their anchor
// geometry when one exists, else the resolved point; unlocated findings
// are emitted with a null geometry so no record is silently dropped.
type GeoJSONSink struct {
	mu       sync.Mutex
	w        io.WriteCloser
	findings []Finding
}

func NewGeoJSONSink(w io.WriteCloser) *GeoJSONSink {
	return &GeoJSONSink{w: w}
}

func (s *GeoJSONSink) Append(f Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, f)
	return nil
}

func (s *GeoJSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc := featureCollection{Type: "FeatureCollection"}
	fc.Features = make([]featureJSON, 0, len(s.findings))
	for _, f := range s.findings {
		feat, err := toFeature(f)
		if err != nil {
			s.w.Close()
			return err
		}
		fc.Features = append(fc.Features, feat)
	}
	enc := json.NewEncoder(s.w)
	if err := enc.Encode(&fc); err != nil {
		s.w.Close()
		return fmt.Errorf("writing geojson: %w", err)
	}
	return s.w.Close()
}

type featureCollection struct {
	Type     string        `json:"type"`
	Features []featureJSON `json:"features"`
}

type featureJSON struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

func toFeature(f Finding) (featureJSON, error) {
	props := map[string]any{
		"code":     string(f.Code),
		"severity": string(f.Severity),
		"table":    f.Ref.Table,
		"id":       f.Ref.ID,
		"message":  f.Message,
		"located":  f.Located(),
	}
	if f.Target != nil {
		props["target_table"] = f.Target.Table
		props["target_id"] = f.Target.ID
	}
	if f.Kind != "" {
		props["kind"] = string(f.Kind)
	}
	raw := json.RawMessage("null")
	var shape geom.T
	switch {
	case f.Anchor != nil:
		shape = f.Anchor
	case f.Location != nil:
		shape = geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{f.Location.X, f.Location.Y})
	}
	if shape != nil {
		b, err := geojson.Marshal(shape)
		if err != nil {
			return featureJSON{}, fmt.Errorf("encoding %s anchor: %w", f.Code, err)
		}
		raw = b
	}
	return featureJSON{Type: "Feature", Geometry: raw, Properties: props}, nil
}

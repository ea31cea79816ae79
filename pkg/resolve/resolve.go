// Package resolve drives every finding to exactly one of the two
// terminal location states. Strategies are tried in order: anchor
// geometry, serialized anchor, explicit coordinates, then a source
// lookup. A failed strategy falls through to the next; a finding no
// strategy can place is marked unlocated rather than given a made-up
// position.
package resolve

import (
	"github.com/hashicorp/go-hclog"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
)

// Fetcher is the slice of the geometry source the resolver needs for
// its last-resort lookup. A missing feature is (nil, nil).
type Fetcher interface {
	Fetch(table, id string) (geom.T, error)
}

type Resolver struct {
	src Fetcher
	log hclog.Logger
}

// New builds a resolver. src may be nil, in which case the source
// lookup tier is skipped.
func New(src Fetcher, log hclog.Logger) *Resolver {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Resolver{src: src, log: log.Named("resolve")}
}

// Resolve finalizes one finding.
func (r *Resolver) Resolve(f finding.Finding) finding.Finding {
	if f.Anchor != nil {
		if c, ok := geometry.Centroid(f.Anchor); ok {
			return r.located(f, c, f.Anchor)
		}
		r.log.Debug("anchor geometry yields no coordinate",
			"code", f.Code, "feature", f.Ref.String())
	}
	if f.AnchorWKT != "" {
		g, err := wkt.Unmarshal(f.AnchorWKT)
		if err != nil {
			r.log.Debug("anchor text does not parse",
				"feature", f.Ref.String(), "error", err)
		} else if c, ok := geometry.Centroid(g); ok {
			f.Anchor = g
			return r.located(f, c, g)
		}
	}
	if f.Location != nil {
		f.Unlocated = false
		return f
	}
	if r.src != nil {
		g, err := r.src.Fetch(f.Ref.Table, f.Ref.ID)
		if err != nil {
			r.log.Debug("feature lookup failed",
				"feature", f.Ref.String(), "error", err)
		} else if c, ok := geometry.RepresentativeCoord(g); ok {
			return r.located(f, c, g)
		}
	}
	f.Unlocated = true
	f.Location = nil
	f.Kind = ""
	return f
}

// ResolveAll finalizes a batch in place and reports how many findings
// ended up located.
func (r *Resolver) ResolveAll(fs []finding.Finding) int {
	located := 0
	for i := range fs {
		fs[i] = r.Resolve(fs[i])
		if fs[i].Located() {
			located++
		}
	}
	return located
}

func (r *Resolver) located(f finding.Finding, c geom.Coord, g geom.T) finding.Finding {
	f.Location = &finding.Location{X: c.X(), Y: c.Y()}
	f.Unlocated = false
	if f.Kind == "" {
		f.Kind = geometry.KindOf(g)
	}
	return f
}

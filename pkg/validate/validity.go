package validate

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// Diagnoser is the exact-engine capability the validity check consumes.
type Diagnoser interface {
	Diagnose(g geom.T) (geometry.Diagnosis, error)
}

// ValidityCheck reports invalid and non-simple geometries. The defect is
// located at the diagnostic's own coordinate when the engine supplies
// one, at the envelope centre otherwise.
type ValidityCheck struct {
	diag       Diagnoser
	validity   bool
	simplicity bool
	log        hclog.Logger
}

// NewValidityCheck builds the check. The two flags select which of the
// validity and simplicity predicates are applied.
func NewValidityCheck(diag Diagnoser, validity, simplicity bool, log hclog.Logger) *ValidityCheck {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &ValidityCheck{diag: diag, validity: validity, simplicity: simplicity, log: log}
}

func (c *ValidityCheck) Name() string { return "validity" }

func (c *ValidityCheck) Check(ref source.Ref, g geom.T) []finding.Finding {
	if (!c.validity && !c.simplicity) || geometry.IsEmpty(g) {
		return nil
	}
	d, err := c.diag.Diagnose(g)
	if err != nil {
		c.log.Warn("geometry diagnosis failed", "feature", ref.String(), "error", err)
		return nil
	}
	var out []finding.Finding
	if c.validity && !d.Valid {
		loc := d.Location
		if !geometry.FiniteCoord(loc) {
			loc = envelopeCenter(g)
		}
		msg := "invalid geometry"
		if d.Reason != "" {
			msg = fmt.Sprintf("invalid geometry (%s): %s", classifyReason(d.Reason), d.Reason)
		}
		out = append(out, newFinding(finding.CodeInvalidGeometry, ref, msg, g, loc))
	}
	// A geometry already reported invalid is not additionally reported
	// non-simple.
	if c.simplicity && d.Valid && !d.Simple {
		out = append(out, newFinding(finding.CodeNonSimpleGeometry, ref,
			"geometry is not simple", g, envelopeCenter(g)))
	}
	return out
}

func envelopeCenter(g geom.T) geom.Coord {
	if env := geometry.EnvelopeOf(g); env.Valid() {
		return env.Center()
	}
	return nil
}

// classifyReason maps a raw validity diagnostic onto a stable violation
// class usable in reports.
func classifyReason(reason string) string {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "ring self-intersection"):
		return "ring-self-intersection"
	case strings.Contains(r, "self-intersection"):
		return "self-intersection"
	case strings.Contains(r, "hole lies outside shell"):
		return "hole-outside-shell"
	case strings.Contains(r, "holes are nested"):
		return "nested-holes"
	case strings.Contains(r, "nested shells"):
		return "nested-shells"
	case strings.Contains(r, "interior is disconnected"):
		return "interior-disconnected"
	case strings.Contains(r, "duplicate rings"):
		return "duplicate-rings"
	case strings.Contains(r, "too few points"):
		return "too-few-points"
	case strings.Contains(r, "invalid coordinate"):
		return "invalid-coordinate"
	case strings.Contains(r, "not closed"):
		return "ring-not-closed"
	default:
		return "invalid"
	}
}

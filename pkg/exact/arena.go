// Package exact runs the precise geometric tests behind the cheap
// envelope phase: distance, intersection and validity diagnosis. It is
// the only package that talks to libgeos; consumers depend on narrow
// interfaces of their own so they can substitute pure-Go fakes in tests.
package exact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
)

// ErrClosed is returned by arena operations after Close.
var ErrClosed = errors.New("exact: arena closed")

// An Arena owns every native geometry handle created during one
// validation pass. Handles are cached per input geometry so repeated
// pair tests against the same feature reuse one native copy, and all of
// them are destroyed together exactly once when the pass ends.
type Arena struct {
	mu      sync.Mutex
	ctx     *geos.Context
	handles map[geom.T]*geos.Geom
	closed  bool
}

// NewArena creates an arena with its own engine context. Contexts
// serialize internally, so concurrent passes should each use their own
// arena.
func NewArena() *Arena {
	return &Arena{
		ctx:     geos.NewContext(),
		handles: make(map[geom.T]*geos.Geom),
	}
}

// handleFor bridges a geometry into the engine via WKB, caching by
// identity. Callers must hold the mutex.
func (a *Arena) handleFor(g geom.T) (*geos.Geom, error) {
	if h, ok := a.handles[g]; ok {
		return h, nil
	}
	data, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("encoding geometry: %w", err)
	}
	h, err := a.ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("importing geometry: %w", err)
	}
	a.handles[g] = h
	return h, nil
}

// catch converts the engine's panic-based error reporting into an
// ordinary error. Deferred by every method that calls into the native
// library, so a geometry the engine cannot handle fails that one
// operation instead of the process.
func catch(err *error) {
	switch r := recover().(type) {
	case nil:
	case error:
		*err = fmt.Errorf("geos: %w", r)
	default:
		*err = fmt.Errorf("geos: %v", r)
	}
}

// Distance returns the exact planar distance between two non-empty
// geometries.
func (a *Arena) Distance(x, y geom.T) (d float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer catch(&err)
	if a.closed {
		return 0, ErrClosed
	}
	hx, err := a.handleFor(x)
	if err != nil {
		return 0, err
	}
	hy, err := a.handleFor(y)
	if err != nil {
		return 0, err
	}
	return hx.Distance(hy), nil
}

// Intersection computes the shared geometry of x and y. A disjoint or
// touching-in-nothing pair yields (nil, nil). The native result handle
// is destroyed before returning; only the converted value escapes.
func (a *Arena) Intersection(x, y geom.T) (out geom.T, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer catch(&err)
	if a.closed {
		return nil, ErrClosed
	}
	hx, err := a.handleFor(x)
	if err != nil {
		return nil, err
	}
	hy, err := a.handleFor(y)
	if err != nil {
		return nil, err
	}
	res := hx.Intersection(hy)
	if res == nil {
		return nil, nil
	}
	defer res.Destroy()
	if res.IsEmpty() {
		return nil, nil
	}
	out, err = wkb.Unmarshal(res.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("decoding intersection: %w", err)
	}
	return out, nil
}

// Diagnose runs the validity and simplicity tests. Simplicity is only
// tested on valid geometries; an invalid one is reported through its
// validity reason alone.
func (a *Arena) Diagnose(g geom.T) (d geometry.Diagnosis, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer catch(&err)
	if a.closed {
		return geometry.Diagnosis{}, ErrClosed
	}
	h, err := a.handleFor(g)
	if err != nil {
		return geometry.Diagnosis{}, err
	}
	d = geometry.Diagnosis{Valid: true, Simple: true}
	if !h.IsValid() {
		d.Valid = false
		d.Reason, d.Location = ParseReason(h.IsValidReason())
		return d, nil
	}
	d.Simple = h.IsSimple()
	return d, nil
}

// Close destroys every handle the arena owns. It is idempotent; using
// the arena afterwards returns ErrClosed.
func (a *Arena) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	for _, h := range a.handles {
		h.Destroy()
	}
	a.handles = nil
}

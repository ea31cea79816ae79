package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// DirSource reads a dataset laid out as a directory of shapefiles: each
// *.shp file is one table named after its base name, feature IDs are the
// decimal record ordinals, and attributes come from the sidecar DBF.
// A filesystem watcher bumps the generation whenever a component file
// changes on disk.
type DirSource struct {
	dir     string
	logger  hclog.Logger
	watcher *fsnotify.Watcher
	gen     atomic.Uint64

	mu     sync.RWMutex
	tables map[string]string

	done     chan struct{}
	stopOnce sync.Once
}

// OpenDir opens a shapefile directory dataset. The watcher is best
// effort: when it cannot be established the source still works, with a
// static generation.
func OpenDir(dir string, logger hclog.Logger) (*DirSource, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening dataset %q: not a directory", dir)
	}
	s := &DirSource{
		dir:    dir,
		logger: logger.Named("shapefile"),
		done:   make(chan struct{}),
	}
	if err := s.rescan(); err != nil {
		return nil, err
	}
	if w, err := fsnotify.NewWatcher(); err != nil {
		s.logger.Warn("filesystem watcher unavailable, change detection disabled", "error", err)
	} else if err := w.Add(dir); err != nil {
		s.logger.Warn("cannot watch dataset directory, change detection disabled", "error", err)
		w.Close()
	} else {
		s.watcher = w
		go s.watch()
	}
	return s, nil
}

func (s *DirSource) rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scanning dataset %q: %w", s.dir, err)
	}
	tables := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.EqualFold(filepath.Ext(name), ".shp") {
			table := strings.TrimSuffix(name, filepath.Ext(name))
			tables[table] = filepath.Join(s.dir, name)
		}
	}
	s.mu.Lock()
	s.tables = tables
	s.mu.Unlock()
	return nil
}

func (s *DirSource) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			switch strings.ToLower(filepath.Ext(ev.Name)) {
			case ".shp", ".shx", ".dbf":
				s.logger.Debug("dataset changed on disk", "file", ev.Name, "op", ev.Op.String())
				if err := s.rescan(); err != nil {
					s.logger.Warn("rescan after change failed", "error", err)
				}
				s.gen.Add(1)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (s *DirSource) path(table string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.tables[table]
	return p, ok
}

func (s *DirSource) ListTables() ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}

func (s *DirSource) Stream(ctx context.Context, table string) (Cursor, error) {
	path, ok := s.path(table)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrUnknownTable)
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	return &shpCursor{ctx: ctx, r: r}, nil
}

func (s *DirSource) Fetch(table, id string) (geom.T, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return nil, nil
	}
	path, ok := s.path(table)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrUnknownTable)
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer r.Close()
	for r.Next() {
		i, shape := r.Shape()
		if i == n {
			return shapeToGeom(shape), nil
		}
		if i > n {
			break
		}
	}
	return nil, nil
}

func (s *DirSource) Generation() uint64 { return s.gen.Load() }

func (s *DirSource) Close() error {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
	return nil
}

// Fields implements AttributeReader from the table's DBF header.
func (s *DirSource) Fields(table string) ([]FieldInfo, error) {
	path, ok := s.path(table)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrUnknownTable)
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer r.Close()
	fields := r.Fields()
	out := make([]FieldInfo, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldInfo{Name: dbfFieldName(f), Type: dbfFieldType(f)})
	}
	return out, nil
}

// StreamAttributes implements AttributeReader.
func (s *DirSource) StreamAttributes(ctx context.Context, table string) (AttributeCursor, error) {
	path, ok := s.path(table)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrUnknownTable)
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	return &shpAttrCursor{ctx: ctx, r: r, fields: r.Fields()}, nil
}

// Attributes implements AttributeReader.
func (s *DirSource) Attributes(table, id string) (map[string]string, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return nil, nil
	}
	path, ok := s.path(table)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrUnknownTable)
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer r.Close()
	fields := r.Fields()
	for r.Next() {
		i, _ := r.Shape()
		if i == n {
			return readAttrRow(r, i, fields), nil
		}
		if i > n {
			break
		}
	}
	return nil, nil
}

func dbfFieldName(f shp.Field) string {
	return strings.TrimRight(string(f.Name[:]), "\x00")
}

func dbfFieldType(f shp.Field) FieldType {
	switch f.Fieldtype {
	case 'C':
		return FieldString
	case 'N':
		if f.Precision > 0 {
			return FieldFloat
		}
		return FieldInteger
	case 'F':
		return FieldFloat
	case 'L':
		return FieldLogical
	case 'D':
		return FieldDate
	}
	return FieldString
}

func readAttrRow(r *shp.Reader, row int, fields []shp.Field) map[string]string {
	values := make(map[string]string, len(fields))
	for k, f := range fields {
		values[dbfFieldName(f)] = strings.TrimSpace(r.ReadAttribute(row, k))
	}
	return values
}

type shpCursor struct {
	ctx context.Context
	r   *shp.Reader
	cur Feature
	err error
}

func (c *shpCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if !c.r.Next() {
		c.err = c.r.Err()
		return false
	}
	n, shape := c.r.Shape()
	c.cur = Feature{ID: strconv.Itoa(n), Geometry: shapeToGeom(shape)}
	return true
}

func (c *shpCursor) Feature() Feature { return c.cur }
func (c *shpCursor) Err() error       { return c.err }

func (c *shpCursor) Close() error {
	c.r.Close()
	return nil
}

type shpAttrCursor struct {
	ctx    context.Context
	r      *shp.Reader
	fields []shp.Field
	id     string
	values map[string]string
	err    error
}

func (c *shpAttrCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if !c.r.Next() {
		c.err = c.r.Err()
		return false
	}
	n, _ := c.r.Shape()
	c.id = strconv.Itoa(n)
	c.values = readAttrRow(c.r, n, c.fields)
	return true
}

func (c *shpAttrCursor) Row() (string, map[string]string) { return c.id, c.values }
func (c *shpAttrCursor) Err() error                       { return c.err }

func (c *shpAttrCursor) Close() error {
	c.r.Close()
	return nil
}

// shapeToGeom converts a shapefile record to a planar geometry, dropping
// Z levels. Unsupported shape classes and null shapes map to nil.
func shapeToGeom(s shp.Shape) geom.T {
	switch t := s.(type) {
	case *shp.Point:
		return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{t.X, t.Y})
	case *shp.PointZ:
		return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{t.X, t.Y})
	case *shp.MultiPoint:
		return multiPointGeom(t.Points)
	case *shp.PolyLine:
		return lineGeom(t.Points, t.Parts)
	case *shp.PolyLineZ:
		return lineGeom(t.Points, t.Parts)
	case *shp.Polygon:
		return polygonGeom(t.Points, t.Parts)
	case *shp.PolygonZ:
		return polygonGeom(t.Points, t.Parts)
	}
	return nil
}

func toCoords(points []shp.Point) []geom.Coord {
	coords := make([]geom.Coord, 0, len(points))
	for _, p := range points {
		coords = append(coords, geom.Coord{p.X, p.Y})
	}
	return coords
}

// splitParts cuts the flat point list at the part offsets.
func splitParts(points []shp.Point, parts []int32) [][]shp.Point {
	if len(parts) <= 1 {
		return [][]shp.Point{points}
	}
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || int(start) > len(points) || end < start {
			continue
		}
		out = append(out, points[start:end])
	}
	return out
}

func multiPointGeom(points []shp.Point) geom.T {
	return geom.NewMultiPoint(geom.XY).MustSetCoords(toCoords(points))
}

func lineGeom(points []shp.Point, parts []int32) geom.T {
	runs := splitParts(points, parts)
	if len(runs) == 1 {
		return geom.NewLineString(geom.XY).MustSetCoords(toCoords(runs[0]))
	}
	coords := make([][]geom.Coord, 0, len(runs))
	for _, run := range runs {
		coords = append(coords, toCoords(run))
	}
	return geom.NewMultiLineString(geom.XY).MustSetCoords(coords)
}

// polygonGeom reassembles rings by winding order: shapefiles store outer
// rings clockwise and holes counter-clockwise, holes following their
// outer ring.
func polygonGeom(points []shp.Point, parts []int32) geom.T {
	runs := splitParts(points, parts)
	var polys [][][]geom.Coord
	for _, run := range runs {
		coords := toCoords(run)
		if ringSignedArea(run) <= 0 || len(polys) == 0 {
			polys = append(polys, [][]geom.Coord{coords})
		} else {
			polys[len(polys)-1] = append(polys[len(polys)-1], coords)
		}
	}
	switch len(polys) {
	case 0:
		return geom.NewPolygon(geom.XY)
	case 1:
		return geom.NewPolygon(geom.XY).MustSetCoords(polys[0])
	}
	return geom.NewMultiPolygon(geom.XY).MustSetCoords(polys)
}

// ringSignedArea is the shoelace sum: negative for clockwise rings.
func ringSignedArea(points []shp.Point) float64 {
	var sum float64
	n := len(points)
	for i := 1; i < n; i++ {
		sum += points[i-1].X*points[i].Y - points[i].X*points[i-1].Y
	}
	if n > 1 {
		sum += points[n-1].X*points[0].Y - points[0].X*points[n-1].Y
	}
	return sum / 2
}

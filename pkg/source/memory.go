package source

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/twpayne/go-geom"
)

// MemorySource is an in-memory dataset. It is the backend for
// programmatically assembled data and for tests.
type MemorySource struct {
	mu     sync.RWMutex
	order  []string
	tables map[string][]Feature
	byID   map[string]map[string]int
	fields map[string][]FieldInfo
	attrs  map[string]map[string]map[string]string
	gen    atomic.Uint64
}

// NewMemorySource returns an empty dataset.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		tables: make(map[string][]Feature),
		byID:   make(map[string]map[string]int),
		fields: make(map[string][]FieldInfo),
		attrs:  make(map[string]map[string]map[string]string),
	}
}

// AddTable registers a table, optionally with its attribute columns.
// Adding an existing table replaces its field list only.
func (s *MemorySource) AddTable(name string, fields ...FieldInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = nil
		s.byID[name] = make(map[string]int)
		s.order = append(s.order, name)
	}
	s.fields[name] = fields
	s.gen.Add(1)
}

// AddFeature appends a feature to a table, creating the table on first
// use. A feature with a known ID replaces the stored one.
func (s *MemorySource) AddFeature(table string, f Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = nil
		s.byID[table] = make(map[string]int)
		s.order = append(s.order, table)
	}
	if i, ok := s.byID[table][f.ID]; ok {
		s.tables[table][i] = f
	} else {
		s.byID[table][f.ID] = len(s.tables[table])
		s.tables[table] = append(s.tables[table], f)
	}
	s.gen.Add(1)
}

// SetAttributes stores the attribute values of one feature.
func (s *MemorySource) SetAttributes(table, id string, values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs[table] == nil {
		s.attrs[table] = make(map[string]map[string]string)
	}
	s.attrs[table][id] = values
	s.gen.Add(1)
}

func (s *MemorySource) ListTables() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *MemorySource) Stream(ctx context.Context, table string) (Cursor, error) {
	s.mu.RLock()
	features, ok := s.tables[table]
	if ok {
		features = append([]Feature(nil), features...)
	}
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownTable
	}
	return &memCursor{ctx: ctx, features: features, pos: -1}, nil
}

func (s *MemorySource) Fetch(table, id string) (geom.T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.byID[table]
	if !ok {
		return nil, ErrUnknownTable
	}
	i, ok := ids[id]
	if !ok {
		return nil, nil
	}
	return s.tables[table][i].Geometry, nil
}

func (s *MemorySource) Generation() uint64 { return s.gen.Load() }

func (s *MemorySource) Close() error { return nil }

// Fields implements AttributeReader.
func (s *MemorySource) Fields(table string) ([]FieldInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tables[table]; !ok {
		return nil, ErrUnknownTable
	}
	return append([]FieldInfo(nil), s.fields[table]...), nil
}

// StreamAttributes implements AttributeReader.
func (s *MemorySource) StreamAttributes(ctx context.Context, table string) (AttributeCursor, error) {
	s.mu.RLock()
	features, ok := s.tables[table]
	if ok {
		features = append([]Feature(nil), features...)
	}
	values := s.attrs[table]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownTable
	}
	rows := make([]attrRow, 0, len(features))
	for _, f := range features {
		rows = append(rows, attrRow{id: f.ID, values: values[f.ID]})
	}
	return &memAttrCursor{ctx: ctx, rows: rows, pos: -1}, nil
}

// Attributes implements AttributeReader.
func (s *MemorySource) Attributes(table, id string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tables[table]; !ok {
		return nil, ErrUnknownTable
	}
	return s.attrs[table][id], nil
}

type memCursor struct {
	ctx      context.Context
	features []Feature
	pos      int
	err      error
}

func (c *memCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	return c.pos < len(c.features)
}

func (c *memCursor) Feature() Feature { return c.features[c.pos] }
func (c *memCursor) Err() error       { return c.err }
func (c *memCursor) Close() error     { return nil }

type attrRow struct {
	id     string
	values map[string]string
}

type memAttrCursor struct {
	ctx  context.Context
	rows []attrRow
	pos  int
	err  error
}

func (c *memAttrCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	return c.pos < len(c.rows)
}

func (c *memAttrCursor) Row() (string, map[string]string) {
	r := c.rows[c.pos]
	return r.id, r.values
}

func (c *memAttrCursor) Err() error   { return c.err }
func (c *memAttrCursor) Close() error { return nil }

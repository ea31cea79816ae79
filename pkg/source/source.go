// Package source abstracts read access to a dataset: enumerating tables,
// streaming features and fetching single geometries on demand. A dataset
// is a set of named tables, each a finite sequence of features with
// stable string identifiers.
package source

import (
	"context"
	"errors"

	"github.com/twpayne/go-geom"
)

// Ref identifies one feature within a dataset.
type Ref struct {
	Table string
	ID    string
}

func (r Ref) String() string { return r.Table + "/" + r.ID }

// Feature is one streamed record. Geometry is nil when the record
// carries no shape at all.
type Feature struct {
	ID       string
	Geometry geom.T
}

// FieldType is the attribute column type as reported by the backing store.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldFloat   FieldType = "float"
	FieldLogical FieldType = "logical"
	FieldDate    FieldType = "date"
)

// FieldInfo describes one attribute column of a table.
type FieldInfo struct {
	Name string
	Type FieldType
}

var (
	// ErrUnknownTable is returned for a table name the source does not have.
	ErrUnknownTable = errors.New("unknown table")
	// ErrNoAttributes is returned by sources that cannot serve attribute data.
	ErrNoAttributes = errors.New("source has no attribute data")
)

// A Cursor is a lazy, finite, single-pass iterator over a table.
type Cursor interface {
	// Next advances to the next feature. It returns false at the end of
	// the table or once iteration has failed.
	Next() bool
	// Feature returns the current record. Valid only after a true Next.
	Feature() Feature
	// Err reports the error that terminated iteration, if any.
	Err() error
	Close() error
}

// Source is a readable dataset.
type Source interface {
	// ListTables enumerates table names in a stable order.
	ListTables() ([]string, error)
	// Stream opens a cursor over one table. The context bounds the whole
	// iteration.
	Stream(ctx context.Context, table string) (Cursor, error)
	// Fetch loads a single feature's geometry. A missing feature yields
	// (nil, nil); errors are reserved for I/O failures and unknown tables.
	Fetch(table, id string) (geom.T, error)
	// Generation increases whenever the underlying data changes. Callers
	// may cache structures derived from a table for as long as the
	// generation holds.
	Generation() uint64
	Close() error
}

// AttributeReader is an optional capability of sources that carry
// attribute columns alongside geometries. Callers type-assert for it and
// degrade gracefully when it is absent.
type AttributeReader interface {
	// Fields describes the columns of a table.
	Fields(table string) ([]FieldInfo, error)
	// StreamAttributes iterates the attribute values of every feature.
	StreamAttributes(ctx context.Context, table string) (AttributeCursor, error)
	// Attributes fetches one feature's values keyed by field name. A
	// missing feature yields (nil, nil).
	Attributes(table, id string) (map[string]string, error)
}

// An AttributeCursor iterates per-feature attribute rows.
type AttributeCursor interface {
	Next() bool
	// Row returns the current feature's identifier and column values.
	Row() (string, map[string]string)
	Err() error
	Close() error
}

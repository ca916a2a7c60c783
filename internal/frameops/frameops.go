// Package frameops is the concrete realization of the external "FrameOps"
// capability that spec.md treats as a collaborator owned by the columnar
// engine: frame construction, schema introspection, and the plan
// primitives (project, filter, join, aggregate) dispatched by the
// composite-plan evaluator. The core (registry, codec, evaluator) never
// inspects cell values directly — it only calls through this package.
package frameops

import (
	"fmt"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
)

// ColumnType is the wire name of a column's scalar type, matching what the
// header JSON (spec.md §4.G) reports to clients.
type ColumnType string

const (
	TypeInt64   ColumnType = "Int64"
	TypeFloat64 ColumnType = "Float64"
	TypeUtf8    ColumnType = "Utf8"
	TypeBool    ColumnType = "Boolean"
)

// SchemaField is one (name, type) pair in a Frame's schema.
type SchemaField struct {
	Name string     `json:"name"`
	Type ColumnType `json:"dtype"`
}

// Schema is the ordered sequence of (column-name, column-type) pairs
// spec.md §3 attributes to every Frame.
type Schema []SchemaField

// Frame is the opaque columnar table value owned by the registry after
// insertion (spec.md §3). The core treats it as a black box beyond its
// schema; Frame wraps a single Arrow record batch.
type Frame struct {
	schema Schema
	record arrow.Record
}

// Allocator is shared by every Arrow array built in this process.
var Allocator = memory.NewGoAllocator()

// NewFrame wraps an Arrow record together with the schema the core has
// already computed for it (kept alongside the record so Schema() never
// needs to re-derive types from Arrow's own DataType machinery).
func NewFrame(schema Schema, record arrow.Record) *Frame {
	record.Retain()
	return &Frame{schema: schema, record: record}
}

// Schema returns the Frame's (name, type) pairs in column order.
func (f *Frame) Schema() Schema {
	out := make(Schema, len(f.schema))
	copy(out, f.schema)
	return out
}

// NumRows reports the row count, equal across every column in a Frame.
func (f *Frame) NumRows() int64 {
	return f.record.NumRows()
}

// Column returns the Arrow array backing the column at position i.
func (f *Frame) Column(i int) arrow.Array {
	return f.record.Column(i)
}

// Columns returns every column array in schema order, the "get-columns"
// half of the FrameOps capability.
func (f *Frame) Columns() []arrow.Array {
	cols := make([]arrow.Array, f.record.NumCols())
	for i := range cols {
		cols[i] = f.record.Column(i)
	}
	return cols
}

// indexOf resolves a column by its schema name. Returns -1 when
// absent — callers surface this as an InvalidPlan schema mismatch.
func (f *Frame) indexOf(name string) int {
	for i, field := range f.schema {
		if field.Name == name {
			return i
		}
	}
	return -1
}

// Release drops the Frame's hold on the underlying Arrow allocation. The
// registry never calls this on stored artifacts (frames live until
// process end per spec.md §3), but derived intermediates created and
// discarded mid-evaluation can release early.
func (f *Frame) Release() {
	f.record.Release()
}

func arrowType(t ColumnType) (arrow.DataType, error) {
	switch t {
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case TypeUtf8:
		return arrow.BinaryTypes.String, nil
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	default:
		return nil, fmt.Errorf("frameops: unknown column type %q", t)
	}
}

// FromColumns is the "construct-from-columns" half of FrameOps: build a
// Frame from a schema plus already-decoded Arrow column arrays. Lengths
// must agree across columns; a mismatch is the schema-mismatch case
// spec.md §4.F maps to InvalidPlan.
func FromColumns(schema Schema, columns []arrow.Array) (*Frame, error) {
	if len(schema) != len(columns) {
		return nil, fmt.Errorf("frameops: schema has %d fields but %d columns given", len(schema), len(columns))
	}
	fields := make([]arrow.Field, len(schema))
	var numRows int64 = -1
	for i, sf := range schema {
		dt, err := arrowType(sf.Type)
		if err != nil {
			return nil, err
		}
		if columns[i].DataType().ID() != dt.ID() {
			return nil, fmt.Errorf("frameops: column %q expected %s, got Arrow type %s", sf.Name, sf.Type, columns[i].DataType())
		}
		fields[i] = arrow.Field{Name: sf.Name, Type: dt, Nullable: true}
		n := int64(columns[i].Len())
		if numRows == -1 {
			numRows = n
		} else if n != numRows {
			return nil, fmt.Errorf("frameops: column %q has %d rows, expected %d", sf.Name, n, numRows)
		}
	}
	if numRows == -1 {
		numRows = 0
	}
	arrSchema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(arrSchema, columns, numRows)
	f := &Frame{schema: schema, record: rec}
	return f, nil
}

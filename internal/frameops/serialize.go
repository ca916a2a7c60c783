package frameops

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/ipc"
)

// SerializeColumn is the externally-defined serialization of a single
// column spec.md §4.A refers to as colK_bytes: a self-contained Arrow IPC
// stream carrying one field, so the decoder on the far end never needs
// the rest of the frame's schema to reconstruct it.
func SerializeColumn(name string, col arrow.Array) ([]byte, error) {
	schema := arrow.NewSchema([]arrow.Field{{Name: name, Type: col.DataType(), Nullable: true}}, nil)
	rec := array.NewRecord(schema, []arrow.Array{col}, int64(col.Len()))
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(Allocator))
	if err := w.Write(rec); err != nil {
		return nil, fmt.Errorf("frameops: serialize column %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("frameops: close column writer %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// DeserializeColumn reverses SerializeColumn, recovering the field name
// and the Arrow array it carried. Any malformed IPC stream is the column
// deserialization failure spec.md §4.A maps to InvalidPayload.
func DeserializeColumn(data []byte) (name string, col arrow.Array, err error) {
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(Allocator))
	if err != nil {
		return "", nil, fmt.Errorf("frameops: open column reader: %w", err)
	}
	defer r.Release()

	if !r.Next() {
		return "", nil, fmt.Errorf("frameops: column stream carries no record batch")
	}
	rec := r.Record()
	if rec.NumCols() != 1 {
		return "", nil, fmt.Errorf("frameops: column stream carries %d fields, want 1", rec.NumCols())
	}
	field := rec.Schema().Field(0)
	col = rec.Column(0)
	col.Retain()
	return field.Name, col, nil
}

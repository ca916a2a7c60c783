package frameops

import (
	"fmt"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
)

// CompareOp is a Filter predicate's comparison operator.
type CompareOp string

const (
	OpEqual        CompareOp = "eq"
	OpNotEqual     CompareOp = "ne"
	OpGreaterThan  CompareOp = "gt"
	OpGreaterEqual CompareOp = "ge"
	OpLessThan     CompareOp = "lt"
	OpLessEqual    CompareOp = "le"
)

// AggFunc is an Aggregate segment's reduction function.
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggMean  AggFunc = "mean"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggCount AggFunc = "count"
)

// Project keeps only the named columns, in the order requested. Any name
// absent from the input schema is a schema mismatch (InvalidPlan).
func Project(in *Frame, columns []string) (*Frame, error) {
	schema := make(Schema, len(columns))
	arrays := make([]arrow.Array, len(columns))
	for i, name := range columns {
		idx := in.indexOf(name)
		if idx < 0 {
			return nil, fmt.Errorf("frameops: project: column %q not in schema", name)
		}
		schema[i] = in.schema[idx]
		arrays[i] = in.Column(idx)
	}
	return FromColumns(schema, arrays)
}

// Filter keeps the rows of in where the named column satisfies op against
// value, producing a new Frame with the same schema.
func Filter(in *Frame, column string, op CompareOp, value float64) (*Frame, error) {
	idx := in.indexOf(column)
	if idx < 0 {
		return nil, fmt.Errorf("frameops: filter: column %q not in schema", column)
	}
	keep := make([]bool, in.NumRows())
	pivot := in.Column(idx)
	for row := range keep {
		v, ok := numericAt(pivot, row)
		if !ok {
			return nil, fmt.Errorf("frameops: filter: column %q is not numeric", column)
		}
		keep[row] = satisfies(v, op, value)
	}
	out := make([]arrow.Array, len(in.schema))
	for i := range in.schema {
		sel, err := selectRows(in.Column(i), keep)
		if err != nil {
			return nil, err
		}
		out[i] = sel
	}
	return FromColumns(in.schema, out)
}

func satisfies(v float64, op CompareOp, pivot float64) bool {
	switch op {
	case OpEqual:
		return v == pivot
	case OpNotEqual:
		return v != pivot
	case OpGreaterThan:
		return v > pivot
	case OpGreaterEqual:
		return v >= pivot
	case OpLessThan:
		return v < pivot
	case OpLessEqual:
		return v <= pivot
	default:
		return false
	}
}

// Join is an inner equi-join of left and right on the named key columns,
// producing left's columns followed by right's non-key columns.
func Join(left, right *Frame, leftKey, rightKey string) (*Frame, error) {
	li := left.indexOf(leftKey)
	ri := right.indexOf(rightKey)
	if li < 0 {
		return nil, fmt.Errorf("frameops: join: left key %q not in schema", leftKey)
	}
	if ri < 0 {
		return nil, fmt.Errorf("frameops: join: right key %q not in schema", rightKey)
	}

	index := make(map[string][]int, right.NumRows())
	rk := right.Column(ri)
	for row := 0; row < int(right.NumRows()); row++ {
		k, ok := stringKeyAt(rk, row)
		if !ok {
			continue
		}
		index[k] = append(index[k], row)
	}

	var leftRows, rightRows []int
	lk := left.Column(li)
	for row := 0; row < int(left.NumRows()); row++ {
		k, ok := stringKeyAt(lk, row)
		if !ok {
			continue
		}
		for _, rr := range index[k] {
			leftRows = append(leftRows, row)
			rightRows = append(rightRows, rr)
		}
	}

	schema := append(Schema{}, left.schema...)
	arrays := make([]arrow.Array, 0, len(left.schema)+len(right.schema))
	for i := range left.schema {
		sel, err := selectIndices(left.Column(i), leftRows)
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, sel)
	}
	for i, f := range right.schema {
		if i == ri {
			continue
		}
		sel, err := selectIndices(right.Column(i), rightRows)
		if err != nil {
			return nil, err
		}
		schema = append(schema, f)
		arrays = append(arrays, sel)
	}
	return FromColumns(schema, arrays)
}

// Aggregate groups in by groupBy and reduces column with fn,
// producing a Frame whose schema is groupBy followed by the reduced
// column under its original name.
func Aggregate(in *Frame, groupBy []string, column string, fn AggFunc) (*Frame, error) {
	groupIdx := make([]int, len(groupBy))
	for i, name := range groupBy {
		idx := in.indexOf(name)
		if idx < 0 {
			return nil, fmt.Errorf("frameops: aggregate: group column %q not in schema", name)
		}
		groupIdx[i] = idx
	}
	colIdx := in.indexOf(column)
	if colIdx < 0 {
		return nil, fmt.Errorf("frameops: aggregate: column %q not in schema", column)
	}

	type acc struct {
		sum   float64
		count int
		min   float64
		max   float64
		first bool
	}
	order := make([]string, 0)
	groups := make(map[string]*acc)
	keyRows := make(map[string][]int)
	src := in.Column(colIdx)
	for row := 0; row < int(in.NumRows()); row++ {
		key, err := compositeKey(in, groupIdx, row)
		if err != nil {
			return nil, err
		}
		a, ok := groups[key]
		if !ok {
			a = &acc{first: true}
			groups[key] = a
			order = append(order, key)
			keyRows[key] = []int{row}
		}
		v, ok := numericAt(src, row)
		if !ok {
			return nil, fmt.Errorf("frameops: aggregate: column %q is not numeric", column)
		}
		a.sum += v
		a.count++
		if a.first || v < a.min {
			a.min = v
		}
		if a.first || v > a.max {
			a.max = v
		}
		a.first = false
	}

	repRows := make([]int, len(order))
	values := make([]float64, len(order))
	for i, key := range order {
		repRows[i] = keyRows[key][0]
		a := groups[key]
		switch fn {
		case AggSum:
			values[i] = a.sum
		case AggMean:
			values[i] = a.sum / float64(a.count)
		case AggMin:
			values[i] = a.min
		case AggMax:
			values[i] = a.max
		case AggCount:
			values[i] = float64(a.count)
		default:
			return nil, fmt.Errorf("frameops: aggregate: unknown function %q", fn)
		}
	}

	schema := make(Schema, 0, len(groupBy)+1)
	arrays := make([]arrow.Array, 0, len(groupBy)+1)
	for _, idx := range groupIdx {
		sel, err := selectIndices(in.Column(idx), repRows)
		if err != nil {
			return nil, err
		}
		schema = append(schema, in.schema[idx])
		arrays = append(arrays, sel)
	}
	b := array.NewFloat64Builder(Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	schema = append(schema, SchemaField{Name: column, Type: TypeFloat64})
	arrays = append(arrays, b.NewArray())

	return FromColumns(schema, arrays)
}

func compositeKey(f *Frame, idx []int, row int) (string, error) {
	key := ""
	for _, i := range idx {
		s, ok := stringKeyAt(f.Column(i), row)
		if !ok {
			return "", fmt.Errorf("frameops: aggregate: unsupported group column type at index %d", i)
		}
		key += "\x00" + s
	}
	return key, nil
}

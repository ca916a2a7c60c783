package frameops

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
)

// numericAt reads row i of col as a float64, for the Int64, Float64 and
// Boolean column types (Boolean reads as 1 or 0). Returns ok=false for any
// other type, Utf8 included, or a null value.
func numericAt(col arrow.Array, i int) (float64, bool) {
	if col.IsNull(i) {
		return 0, false
	}
	switch c := col.(type) {
	case *array.Int64:
		return float64(c.Value(i)), true
	case *array.Float64:
		return c.Value(i), true
	case *array.Boolean:
		if c.Value(i) {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// stringKeyAt renders row i of col as a comparable string key, used for
// join and group-by keys regardless of the column's underlying type.
func stringKeyAt(col arrow.Array, i int) (string, bool) {
	if col.IsNull(i) {
		return "", false
	}
	switch c := col.(type) {
	case *array.Int64:
		return strconv.FormatInt(c.Value(i), 10), true
	case *array.Float64:
		return strconv.FormatFloat(c.Value(i), 'g', -1, 64), true
	case *array.String:
		return c.Value(i), true
	case *array.Boolean:
		return strconv.FormatBool(c.Value(i)), true
	default:
		return "", false
	}
}

// selectRows builds a new array containing the rows of col where keep is
// true, preserving order.
func selectRows(col arrow.Array, keep []bool) (arrow.Array, error) {
	idx := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			idx = append(idx, i)
		}
	}
	return selectIndices(col, idx)
}

// selectIndices builds a new array gathering col at the given row
// indices, in the order given (duplicates and reordering both allowed,
// as join output requires).
func selectIndices(col arrow.Array, idx []int) (arrow.Array, error) {
	switch c := col.(type) {
	case *array.Int64:
		b := array.NewInt64Builder(Allocator)
		defer b.Release()
		for _, i := range idx {
			if c.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(c.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.Float64:
		b := array.NewFloat64Builder(Allocator)
		defer b.Release()
		for _, i := range idx {
			if c.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(c.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.String:
		b := array.NewStringBuilder(Allocator)
		defer b.Release()
		for _, i := range idx {
			if c.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(c.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.Boolean:
		b := array.NewBooleanBuilder(Allocator)
		defer b.Release()
		for _, i := range idx {
			if c.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(c.Value(i))
			}
		}
		return b.NewArray(), nil
	default:
		return nil, fmt.Errorf("frameops: unsupported column type %s", col.DataType())
	}
}

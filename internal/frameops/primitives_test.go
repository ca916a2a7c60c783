package frameops

import (
	"testing"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
)

func int64Column(values []int64) arrow.Array {
	b := array.NewInt64Builder(Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

func stringColumn(values []string) arrow.Array {
	b := array.NewStringBuilder(Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

func TestProjectKeepsOnlyNamedColumnsInOrder(t *testing.T) {
	schema := Schema{
		{Name: "a", Type: TypeInt64},
		{Name: "b", Type: TypeInt64},
	}
	frame, err := FromColumns(schema, []arrow.Array{int64Column([]int64{1, 2}), int64Column([]int64{10, 20})})
	if err != nil {
		t.Fatalf("FromColumns failed: %v", err)
	}

	out, err := Project(frame, []string{"b"})
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(out.Schema()) != 1 || out.Schema()[0].Name != "b" {
		t.Fatalf("Project schema = %+v, want just [b]", out.Schema())
	}
	if out.NumRows() != 2 {
		t.Errorf("NumRows() = %d, want 2", out.NumRows())
	}
}

func TestProjectUnknownColumnFails(t *testing.T) {
	schema := Schema{{Name: "a", Type: TypeInt64}}
	frame, err := FromColumns(schema, []arrow.Array{int64Column([]int64{1})})
	if err != nil {
		t.Fatalf("FromColumns failed: %v", err)
	}

	if _, err := Project(frame, []string{"missing"}); err == nil {
		t.Fatal("expected an error projecting an unknown column")
	}
}

func TestFilterKeepsMatchingRows(t *testing.T) {
	schema := Schema{{Name: "n", Type: TypeInt64}}
	frame, err := FromColumns(schema, []arrow.Array{int64Column([]int64{1, 5, 10, 2})})
	if err != nil {
		t.Fatalf("FromColumns failed: %v", err)
	}

	out, err := Filter(frame, "n", OpGreaterEqual, 5)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if out.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", out.NumRows())
	}
	col := out.Column(0).(*array.Int64)
	if col.Value(0) != 5 || col.Value(1) != 10 {
		t.Errorf("filtered values = [%d, %d], want [5, 10]", col.Value(0), col.Value(1))
	}
}

func TestJoinMatchesOnKeyColumns(t *testing.T) {
	leftSchema := Schema{
		{Name: "id", Type: TypeUtf8},
		{Name: "left_val", Type: TypeInt64},
	}
	left, err := FromColumns(leftSchema, []arrow.Array{stringColumn([]string{"x", "y"}), int64Column([]int64{1, 2})})
	if err != nil {
		t.Fatalf("FromColumns (left) failed: %v", err)
	}

	rightSchema := Schema{
		{Name: "id", Type: TypeUtf8},
		{Name: "right_val", Type: TypeInt64},
	}
	right, err := FromColumns(rightSchema, []arrow.Array{stringColumn([]string{"y", "z"}), int64Column([]int64{20, 30})})
	if err != nil {
		t.Fatalf("FromColumns (right) failed: %v", err)
	}

	out, err := Join(left, right, "id", "id")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if out.NumRows() != 1 {
		t.Fatalf("NumRows() = %d, want 1 matching row", out.NumRows())
	}
	if len(out.Schema()) != 3 {
		t.Fatalf("len(Schema()) = %d, want 3 (left's 2 + right's non-key 1)", len(out.Schema()))
	}
}

func TestAggregateSumByGroup(t *testing.T) {
	schema := Schema{
		{Name: "group", Type: TypeInt64},
		{Name: "value", Type: TypeInt64},
	}
	frame, err := FromColumns(schema, []arrow.Array{
		int64Column([]int64{0, 0, 1}),
		int64Column([]int64{1, 2, 3}),
	})
	if err != nil {
		t.Fatalf("FromColumns failed: %v", err)
	}

	out, err := Aggregate(frame, []string{"group"}, "value", AggSum)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if out.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2 groups", out.NumRows())
	}
}

func TestFromColumnsSchemaColumnCountMismatch(t *testing.T) {
	schema := Schema{{Name: "a", Type: TypeInt64}, {Name: "b", Type: TypeInt64}}
	_, err := FromColumns(schema, []arrow.Array{int64Column([]int64{1})})
	if err == nil {
		t.Fatal("expected an error when schema and column count disagree")
	}
}

func TestFromColumnsRowCountMismatch(t *testing.T) {
	schema := Schema{{Name: "a", Type: TypeInt64}, {Name: "b", Type: TypeInt64}}
	_, err := FromColumns(schema, []arrow.Array{int64Column([]int64{1, 2}), int64Column([]int64{1})})
	if err == nil {
		t.Fatal("expected an error when columns have mismatched row counts")
	}
}

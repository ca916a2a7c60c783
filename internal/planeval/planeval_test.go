package planeval

import (
	"encoding/json"
	"testing"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"

	"github.com/yutiansut/bastionlab/internal/errs"
	"github.com/yutiansut/bastionlab/internal/frameops"
	"github.com/yutiansut/bastionlab/internal/registry"
)

func int64Frame(t *testing.T, name string, values []int64) *frameops.Frame {
	t.Helper()
	b := array.NewInt64Builder(frameops.Allocator)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewArray()
	defer arr.Release()

	schema := frameops.Schema{{Name: name, Type: frameops.TypeInt64}}
	f, err := frameops.FromColumns(schema, []arrow.Array{arr})
	if err != nil {
		t.Fatalf("FromColumns failed: %v", err)
	}
	return f
}

func segment(t *testing.T, variant string, payload any) json.RawMessage {
	t.Helper()
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env := map[string]json.RawMessage{variant: p}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal segment: %v", err)
	}
	return raw
}

func marshalPlan(t *testing.T, segments ...json.RawMessage) []byte {
	t.Helper()
	plan := CompositePlan(segments)
	b, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}
	return b
}

func entryPoint(t *testing.T, identifier string) json.RawMessage {
	t.Helper()
	return segment(t, "EntryPoint", identifier)
}

func TestEvaluateSingleEntryPointPassthrough(t *testing.T) {
	reg := registry.New()
	id := reg.Insert(int64Frame(t, "n", []int64{1, 2, 3}), registry.Policy(`{}`), "", false)

	eval := New(reg)
	plan := marshalPlan(t, entryPoint(t, id))

	result, err := eval.Evaluate(plan)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Frame.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", result.Frame.NumRows())
	}
}

func TestEvaluateProjectFilterAggregate(t *testing.T) {
	reg := registry.New()
	b := array.NewInt64Builder(frameops.Allocator)
	b.AppendValues([]int64{1, 2, 3, 4}, nil)
	vals := b.NewArray()
	b.Release()

	gb := array.NewInt64Builder(frameops.Allocator)
	gb.AppendValues([]int64{0, 0, 1, 1}, nil)
	groups := gb.NewArray()
	gb.Release()

	schema := frameops.Schema{
		{Name: "group", Type: frameops.TypeInt64},
		{Name: "value", Type: frameops.TypeInt64},
	}
	frame, err := frameops.FromColumns(schema, []arrow.Array{groups, vals})
	if err != nil {
		t.Fatalf("FromColumns failed: %v", err)
	}
	id := reg.Insert(frame, nil, "", false)

	eval := New(reg)
	plan := marshalPlan(t,
		entryPoint(t, id),
		segment(t, "Project", map[string]any{"columns": []string{"group", "value"}}),
		segment(t, "Filter", map[string]any{"column": "value", "op": "ge", "value": 2}),
		segment(t, "Aggregate", map[string]any{"group_by": []string{"group"}, "column": "value", "func": "sum"}),
	)

	result, err := eval.Evaluate(plan)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Frame.NumRows() != 2 {
		t.Errorf("NumRows() = %d, want 2 groups", result.Frame.NumRows())
	}
}

func TestEvaluateStackUnderflowIsInvalidArgument(t *testing.T) {
	reg := registry.New()
	eval := New(reg)
	plan := marshalPlan(t, segment(t, "Project", map[string]any{"columns": []string{"n"}}))

	_, err := eval.Evaluate(plan)
	if err == nil {
		t.Fatal("expected an error for a Project segment with an empty stack")
	}
	if errs.KindOf(err) != errs.InvalidArgument {
		t.Errorf("KindOf(err) = %v, want InvalidArgument", errs.KindOf(err))
	}
}

func TestEvaluateLeftoverStackIsInvalidArgument(t *testing.T) {
	reg := registry.New()
	idA := reg.Insert(int64Frame(t, "n", []int64{1}), nil, "", false)
	idB := reg.Insert(int64Frame(t, "n", []int64{2}), nil, "", false)

	eval := New(reg)
	plan := marshalPlan(t,
		entryPoint(t, idA),
		entryPoint(t, idB),
	)

	_, err := eval.Evaluate(plan)
	if err == nil {
		t.Fatal("expected an error when the plan leaves two frames on the stack")
	}
	if errs.KindOf(err) != errs.InvalidArgument {
		t.Errorf("KindOf(err) = %v, want InvalidArgument", errs.KindOf(err))
	}
}

func TestEvaluateEntryPointMissingIdentifierFails(t *testing.T) {
	reg := registry.New()
	eval := New(reg)
	plan := marshalPlan(t, entryPoint(t, "missing"))

	_, err := eval.Evaluate(plan)
	if err == nil {
		t.Fatal("expected an error for a missing EntryPoint identifier")
	}
	// Evaluate wraps every segment failure as InvalidArgument, so the
	// registry's NotFound is not visible at this layer.
	if errs.KindOf(err) != errs.InvalidArgument {
		t.Errorf("KindOf(err) = %v, want InvalidArgument", errs.KindOf(err))
	}
}

func TestEvaluateBareArrayAndEntryPointAlias(t *testing.T) {
	reg := registry.New()
	id := reg.Insert(int64Frame(t, "n", []int64{7}), nil, "", false)

	eval := New(reg)
	planJSON := []byte(`[{"EntryPointPlanSegment":"` + id + `"}]`)

	result, err := eval.Evaluate(planJSON)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Frame.NumRows() != 1 {
		t.Errorf("NumRows() = %d, want 1", result.Frame.NumRows())
	}
}

func TestEvaluateEmptyPlanIsInvalidArgument(t *testing.T) {
	reg := registry.New()
	eval := New(reg)
	plan := marshalPlan(t)

	_, err := eval.Evaluate(plan)
	if err == nil {
		t.Fatal("expected an error for a plan with no segments")
	}
	if errs.KindOf(err) != errs.InvalidArgument {
		t.Errorf("KindOf(err) = %v, want InvalidArgument", errs.KindOf(err))
	}
}

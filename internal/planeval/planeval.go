// Package planeval implements the composite-plan evaluator of spec.md
// §4.F: a JSON-encoded CompositePlan of PlanSegments, each naming either
// an EntryPoint (push a registered frame) or a FrameOps primitive (pop N
// frames, push the result), evaluated LIFO-stack-machine style. Grounded
// on original_source/server/src/main.rs's run_query, which decodes the
// plan as a bare top-level JSON array of single-key segment objects, with
// EntryPoint's payload a bare identifier string rather than an object.
package planeval

import (
	"encoding/json"

	"github.com/yutiansut/bastionlab/internal/errs"
	"github.com/yutiansut/bastionlab/internal/frameops"
	"github.com/yutiansut/bastionlab/internal/policy"
	"github.com/yutiansut/bastionlab/internal/registry"
)

// CompositePlan is the top-level JSON document RunQuery receives: a bare
// array of segments evaluated left to right against a stack.
type CompositePlan []json.RawMessage

// segmentEnvelope matches each segment's single-key shape,
// {"<Variant>": <payload>}, the same encoding original_source's Rust
// serde-tagged enum produces.
type segmentEnvelope map[string]json.RawMessage

// entryPointVariant is the canonical EntryPoint segment key. The original
// also emits EntryPointPlanSegment for the same segment; both are
// accepted.
const entryPointVariant = "EntryPoint"
const entryPointVariantAlias = "EntryPointPlanSegment"

type projectArgs struct {
	Columns []string `json:"columns"`
}

type filterArgs struct {
	Column string             `json:"column"`
	Op     frameops.CompareOp `json:"op"`
	Value  float64            `json:"value"`
}

type joinArgs struct {
	LeftKey  string `json:"left_key"`
	RightKey string `json:"right_key"`
}

type aggregateArgs struct {
	GroupBy []string          `json:"group_by"`
	Column  string            `json:"column"`
	Func    frameops.AggFunc `json:"func"`
}

// stackEntry pairs a Frame with the policy it carries through evaluation,
// so a primitive reading from two frames can join their policies.
type stackEntry struct {
	frame  *frameops.Frame
	policy registry.Policy
}

// Result is the output of evaluating a plan to completion: the single
// remaining frame and the policy accumulated for it.
type Result struct {
	Frame  *frameops.Frame
	Policy registry.Policy
}

// Evaluator ties the plan language to the frame registry it reads
// EntryPoint segments from.
type Evaluator struct {
	registry *registry.Registry
}

// New constructs an Evaluator reading frames from reg.
func New(reg *registry.Registry) *Evaluator {
	return &Evaluator{registry: reg}
}

// Evaluate decodes and runs planJSON to completion. A plan that leaves
// the stack with anything other than exactly one frame is InvalidPlan,
// surfaced here as errs.InvalidArgument since spec.md §7 has no distinct
// InvalidPlan kind of its own (callers map it alongside plan-shape
// errors to InvalidArgument).
func (e *Evaluator) Evaluate(planJSON []byte) (*Result, error) {
	var plan CompositePlan
	if err := json.Unmarshal(planJSON, &plan); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "malformed composite plan")
	}
	if len(plan) == 0 {
		return nil, errs.New(errs.InvalidArgument, "composite plan has no segments")
	}

	var stack []stackEntry
	for i, raw := range plan {
		var env segmentEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || len(env) != 1 {
			return nil, errs.New(errs.InvalidArgument, "segment %d is not a single-key variant object", i)
		}
		var variant string
		var payload json.RawMessage
		for k, v := range env {
			variant, payload = k, v
		}

		var err error
		stack, err = e.apply(variant, payload, stack)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, err, "segment %d (%s) failed", i, variant)
		}
	}

	if len(stack) != 1 {
		return nil, errs.New(errs.InvalidArgument, "plan left %d frames on the stack, want exactly 1", len(stack))
	}
	return &Result{Frame: stack[0].frame, Policy: stack[0].policy}, nil
}

func (e *Evaluator) apply(variant string, payload json.RawMessage, stack []stackEntry) ([]stackEntry, error) {
	switch variant {
	case entryPointVariant, entryPointVariantAlias:
		var identifier string
		if err := json.Unmarshal(payload, &identifier); err != nil {
			return nil, err
		}
		artifact, err := e.registry.Get(identifier)
		if err != nil {
			return nil, err
		}
		return append(stack, stackEntry{frame: artifact.Frame, policy: artifact.Policy}), nil

	case "Project":
		var args projectArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		top, rest, err := pop(stack, 1)
		if err != nil {
			return nil, err
		}
		out, err := frameops.Project(top[0].frame, args.Columns)
		if err != nil {
			return nil, err
		}
		return append(rest, stackEntry{frame: out, policy: top[0].policy}), nil

	case "Filter":
		var args filterArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		top, rest, err := pop(stack, 1)
		if err != nil {
			return nil, err
		}
		out, err := frameops.Filter(top[0].frame, args.Column, args.Op, args.Value)
		if err != nil {
			return nil, err
		}
		return append(rest, stackEntry{frame: out, policy: top[0].policy}), nil

	case "Join":
		var args joinArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		top, rest, err := pop(stack, 2)
		if err != nil {
			return nil, err
		}
		left, right := top[0], top[1]
		out, err := frameops.Join(left.frame, right.frame, args.LeftKey, args.RightKey)
		if err != nil {
			return nil, err
		}
		return append(rest, stackEntry{frame: out, policy: policy.Join(left.policy, right.policy)}), nil

	case "Aggregate":
		var args aggregateArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		top, rest, err := pop(stack, 1)
		if err != nil {
			return nil, err
		}
		out, err := frameops.Aggregate(top[0].frame, args.GroupBy, args.Column, args.Func)
		if err != nil {
			return nil, err
		}
		return append(rest, stackEntry{frame: out, policy: top[0].policy}), nil

	default:
		return nil, errs.New(errs.InvalidArgument, "unknown plan segment variant %q", variant)
	}
}

// pop splits the top n entries (in original order) off the stack,
// returning an error if fewer than n are available — the stack-underflow
// edge case spec.md §4.F calls out explicitly.
func pop(stack []stackEntry, n int) (top []stackEntry, rest []stackEntry, err error) {
	if len(stack) < n {
		return nil, nil, errs.New(errs.InvalidArgument, "segment needs %d frames on the stack, found %d", n, len(stack))
	}
	split := len(stack) - n
	return stack[split:], stack[:split], nil
}

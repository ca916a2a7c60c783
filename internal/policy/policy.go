// Package policy provides the minimal access-control policy join spec.md
// §4.F's plan evaluator needs when a primitive combines frames carrying
// different policies (e.g. Join). The shape of an individual policy
// document is externally defined (spec.md §3); this package only knows
// how to combine opaque policy blobs, not interpret them.
package policy

import (
	"encoding/json"

	"github.com/yutiansut/bastionlab/internal/registry"
)

// Join combines the policies of every frame contributing to a plan
// segment's output into the policy attached to that output, as a JSON
// array preserving each input's original document. Evaluating whether a
// caller satisfies the combined policy is out of scope here, same as
// interpreting a single policy is out of scope for the registry.
func Join(policies ...registry.Policy) registry.Policy {
	if len(policies) == 1 {
		return policies[0]
	}
	docs := make([]json.RawMessage, len(policies))
	for i, p := range policies {
		docs[i] = json.RawMessage(p)
	}
	out, err := json.Marshal(docs)
	if err != nil {
		return policies[0]
	}
	return registry.Policy(out)
}

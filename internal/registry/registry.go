// Package registry holds every FrameArtifact the process has accepted,
// keyed by its opaque identifier, for the lifetime of the process
// (spec.md §4.B, §3 — no persistence beyond that is in scope). It is
// modeled directly on the teacher's daemon/manager.SessionStore: a single
// RWMutex guarding a plain map, many readers (RunQuery, FetchDataFrame)
// against one writer at a time (SendDataFrame, and RunQuery when it
// registers its result).
package registry

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/yutiansut/bastionlab/internal/errs"
	"github.com/yutiansut/bastionlab/internal/frameops"
)

// Policy is the access-control policy a client attaches to a frame at
// upload time, carried opaquely by the registry (spec.md §3's "core does
// not interpret policy beyond plan evaluation's use of it").
type Policy json.RawMessage

// FrameArtifact is a stored Frame together with its access-control policy
// and the bookkeeping metadata spec.md §3 attributes to it.
type FrameArtifact struct {
	Identifier string
	Frame      *frameops.Frame
	Policy     Policy
	Metadata   string
	Savable    bool
}

// Registry is the identifier -> FrameArtifact map spec.md §4.B describes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*FrameArtifact
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*FrameArtifact)}
}

// Insert assigns a fresh UUID identifier to the artifact and stores it,
// retrying on the astronomically unlikely event of a collision with an
// existing identifier. Returns the assigned identifier.
func (r *Registry) Insert(frame *frameops.Frame, policy Policy, metadata string, savable bool) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for {
		id = uuid.NewString()
		if _, exists := r.entries[id]; !exists {
			break
		}
	}
	r.entries[id] = &FrameArtifact{
		Identifier: id,
		Frame:      frame,
		Policy:     policy,
		Metadata:   metadata,
		Savable:    savable,
	}
	return id
}

// Get resolves an identifier to its stored artifact, or NotFound if no
// frame was ever inserted under it.
func (r *Registry) Get(identifier string) (*FrameArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.entries[identifier]
	if !ok {
		return nil, errs.New(errs.NotFound, "no frame registered under identifier %q", identifier)
	}
	return a, nil
}

// Count reports the number of frames currently registered, used by the
// registry's health check and the frames-resident gauge.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Package agent implements the heap-traversal engine: per-object tagging,
// the reference-graph walk, root-path reconstruction, and retained-size
// accumulation. The engine operates over the narrow host.Host primitive and
// stores all per-object state in Tag records addressed through the host's
// single integer tag slot.
package agent

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jheapagent/internal/host"
	apperrors "github.com/jheapagent/pkg/errors"
)

// Handle is the encoded identity of a Tag, suitable for storage in the
// host's per-object tag slot. Zero is never a valid handle, so an unset
// slot is distinguishable from any allocated tag.
type Handle int64

// NoHandle marks the absence of a referrer: the tagged object is a
// traversal seed, reached by no other object.
const NoHandle Handle = 0

// Tag is the per-object metadata record for one traversal. A Tag lives from
// the moment its object is first discovered until the traversal that
// created it completes; tags never survive across traversals.
type Tag struct {
	// Object is the tagged object.
	Object host.ObjectRef
	// Visited is set once the object has been dequeued and its edges
	// enumerated.
	Visited bool
	// Kind is the reference kind by which the object was first reached.
	Kind host.ReferenceKind
	// Detail is the edge detail (field name, element index) of that first
	// reference.
	Detail string
	// Referrer is the handle of the tag of the object that discovered this
	// one, or NoHandle for seeds.
	Referrer Handle
	// RootEdges collects GC-root edges observed on this object during a
	// backward walk.
	RootEdges []host.Edge
	// ShallowSize is the object's own byte size, filled during size
	// estimation.
	ShallowSize int64
}

// liveTags counts allocated-but-unreleased tags process-wide. Tests use it
// to verify that no traversal leaks records.
var liveTags atomic.Int64

// LiveTags returns the number of outstanding Tag records across all stores.
func LiveTags() int64 { return liveTags.Load() }

// generations hands out a distinct generation per store so handles from a
// finished traversal can never decode against a newer one.
var generations atomic.Int64

// TagStore is an arena of Tag records scoped to a single traversal. Handles
// encode the arena index together with the store's generation; decoding
// validates both, so a stale or foreign handle is always rejected.
type TagStore struct {
	entries    []*Tag
	generation int64
	live       int
}

// NewTagStore creates an empty store with a fresh generation.
func NewTagStore() *TagStore {
	return &TagStore{
		generation: generations.Add(1) & 0x7FFFFFFF,
	}
}

// Allocate creates a zero-valued Tag and returns its handle.
func (s *TagStore) Allocate() (Handle, *Tag) {
	t := &Tag{}
	s.entries = append(s.entries, t)
	s.live++
	liveTags.Add(1)
	return s.encode(len(s.entries) - 1), t
}

// Decode recovers the Tag behind a handle. It fails with an invalid-handle
// error if the handle is zero, from another store, or already released.
func (s *TagStore) Decode(h Handle) (*Tag, error) {
	if h == NoHandle {
		return nil, apperrors.New(apperrors.CodeInvalidHandle, "handle is zero")
	}
	gen := int64(h) >> 32
	idx := int(int64(h)&0xFFFFFFFF) - 1
	if gen != s.generation {
		return nil, apperrors.New(apperrors.CodeInvalidHandle,
			fmt.Sprintf("handle generation %d does not match store generation %d", gen, s.generation))
	}
	if idx < 0 || idx >= len(s.entries) {
		return nil, apperrors.New(apperrors.CodeInvalidHandle,
			fmt.Sprintf("handle index %d out of range", idx))
	}
	t := s.entries[idx]
	if t == nil {
		return nil, apperrors.New(apperrors.CodeInvalidHandle,
			fmt.Sprintf("handle index %d already released", idx))
	}
	return t, nil
}

// Release frees the Tag behind a handle. Each handle must be released
// exactly once.
func (s *TagStore) Release(h Handle) error {
	if _, err := s.Decode(h); err != nil {
		return err
	}
	idx := int(int64(h)&0xFFFFFFFF) - 1
	s.entries[idx] = nil
	s.live--
	liveTags.Add(-1)
	return nil
}

// ReleaseAll frees every live Tag in the store and returns how many were
// released. Called by the walker on every traversal exit path.
func (s *TagStore) ReleaseAll() int {
	released := 0
	for i, t := range s.entries {
		if t != nil {
			s.entries[i] = nil
			released++
		}
	}
	s.live -= released
	liveTags.Add(int64(-released))
	return released
}

// Live returns the number of unreleased tags in this store.
func (s *TagStore) Live() int { return s.live }

// Each invokes fn for every live Tag in allocation order.
func (s *TagStore) Each(fn func(Handle, *Tag)) {
	for i, t := range s.entries {
		if t != nil {
			fn(s.encode(i), t)
		}
	}
}

func (s *TagStore) encode(idx int) Handle {
	return Handle(s.generation<<32 | int64(idx+1))
}

// Describe produces a diagnostic string for a Tag. Pure; used for debug
// logging only.
func Describe(t *Tag) string {
	if t == nil {
		return "<nil tag>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "object 0x%x reached via %s", uint64(t.Object), t.Kind)
	if t.Detail != "" {
		fmt.Fprintf(&b, " (%s)", t.Detail)
	}
	if t.Referrer == NoHandle {
		b.WriteString(", seed")
	} else {
		b.WriteString(", has referrer")
	}
	if len(t.RootEdges) > 0 {
		fmt.Fprintf(&b, ", %d root edge(s)", len(t.RootEdges))
	}
	if t.Visited {
		b.WriteString(", visited")
	}
	return b.String()
}

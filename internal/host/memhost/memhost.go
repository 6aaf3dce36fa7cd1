// Package memhost provides an in-memory host.Host implementation backed by
// a scriptable object graph. It exists for engine tests and demos: tests
// build a heap shape object by object, then point the engine at it. Fault
// injection lets tests exercise the engine's host-failure paths.
package memhost

import (
	"errors"
	"fmt"

	"github.com/jheapagent/internal/host"
)

type object struct {
	size int64
	desc string
}

// Heap is an in-memory object graph implementing host.Host. It is not safe
// for concurrent use; the engine serializes traversals, and tests are
// single-threaded.
type Heap struct {
	objects  map[host.ObjectRef]*object
	outgoing map[host.ObjectRef][]host.Edge
	incoming map[host.ObjectRef][]host.Edge
	tags     map[host.ObjectRef]int64

	failOp    string
	failAfter int
	failCode  int
	calls     map[string]int
}

// NewHeap creates an empty in-memory heap.
func NewHeap() *Heap {
	return &Heap{
		objects:  make(map[host.ObjectRef]*object),
		outgoing: make(map[host.ObjectRef][]host.Edge),
		incoming: make(map[host.ObjectRef][]host.Edge),
		tags:     make(map[host.ObjectRef]int64),
		calls:    make(map[string]int),
	}
}

// AddObject registers an object with its shallow size and description.
func (h *Heap) AddObject(ref host.ObjectRef, size int64, desc string) {
	h.objects[ref] = &object{size: size, desc: desc}
}

// AddReference adds a heap-to-heap reference edge.
func (h *Heap) AddReference(from, to host.ObjectRef, kind host.ReferenceKind, detail string) {
	e := host.Edge{Kind: kind, Referrer: from, Referee: to, Detail: detail}
	h.outgoing[from] = append(h.outgoing[from], e)
	h.incoming[to] = append(h.incoming[to], e)
}

// AddRoot marks an object as held directly by a GC root of the given kind.
func (h *Heap) AddRoot(to host.ObjectRef, kind host.ReferenceKind, detail string) {
	e := host.Edge{Kind: kind, Referrer: host.NullRef, Referee: to, Detail: detail}
	h.incoming[to] = append(h.incoming[to], e)
}

// ClearIncoming severs every holder of the object, roots included. After
// this the object is unreachable, as if its last reference were cleared and
// a collection cycle ran.
func (h *Heap) ClearIncoming(to host.ObjectRef) {
	for _, e := range h.incoming[to] {
		if e.Referrer.IsNull() {
			continue
		}
		out := h.outgoing[e.Referrer][:0]
		for _, oe := range h.outgoing[e.Referrer] {
			if oe.Referee != to {
				out = append(out, oe)
			}
		}
		h.outgoing[e.Referrer] = out
	}
	delete(h.incoming, to)
}

// FailOn arms fault injection: the n-th subsequent call of the named host
// operation (1-based) fails with the given status code. Operation names
// match the host.Host method names.
func (h *Heap) FailOn(op string, nthCall, status int) {
	h.failOp = op
	h.failAfter = nthCall
	h.failCode = status
	h.calls[op] = 0
}

// TaggedCount returns how many tag slots currently hold a non-zero value.
// The engine must leave this at zero after every traversal.
func (h *Heap) TaggedCount() int {
	n := 0
	for _, v := range h.tags {
		if v != 0 {
			n++
		}
	}
	return n
}

func (h *Heap) checkFault(op string) error {
	if h.failOp != op {
		return nil
	}
	h.calls[op]++
	if h.calls[op] >= h.failAfter {
		return &host.StatusError{Op: op, Status: h.failCode}
	}
	return nil
}

// References implements host.Host.
func (h *Heap) References(obj host.ObjectRef, dir host.Direction, fn func(host.Edge) error) error {
	if err := h.checkFault("References"); err != nil {
		return err
	}
	if _, ok := h.objects[obj]; !ok {
		return &host.StatusError{Op: "References", Status: statusInvalidObject}
	}
	edges := h.outgoing[obj]
	if dir == host.ToRoots {
		edges = h.incoming[obj]
	}
	for _, e := range edges {
		if err := fn(e); err != nil {
			if errors.Is(err, host.ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

// TagOf implements host.Host.
func (h *Heap) TagOf(obj host.ObjectRef) (int64, error) {
	if err := h.checkFault("TagOf"); err != nil {
		return 0, err
	}
	if _, ok := h.objects[obj]; !ok {
		return 0, &host.StatusError{Op: "TagOf", Status: statusInvalidObject}
	}
	return h.tags[obj], nil
}

// SetTagOf implements host.Host.
func (h *Heap) SetTagOf(obj host.ObjectRef, tag int64) error {
	if err := h.checkFault("SetTagOf"); err != nil {
		return err
	}
	if _, ok := h.objects[obj]; !ok {
		return &host.StatusError{Op: "SetTagOf", Status: statusInvalidObject}
	}
	if tag == 0 {
		delete(h.tags, obj)
		return nil
	}
	h.tags[obj] = tag
	return nil
}

// ShallowSize implements host.Host.
func (h *Heap) ShallowSize(obj host.ObjectRef) (int64, error) {
	if err := h.checkFault("ShallowSize"); err != nil {
		return 0, err
	}
	o, ok := h.objects[obj]
	if !ok {
		return 0, &host.StatusError{Op: "ShallowSize", Status: statusInvalidObject}
	}
	return o.size, nil
}

// DescribeObject implements host.Host.
func (h *Heap) DescribeObject(obj host.ObjectRef) string {
	if o, ok := h.objects[obj]; ok && o.desc != "" {
		return o.desc
	}
	return fmt.Sprintf("object 0x%x", uint64(obj))
}

// statusInvalidObject mirrors the JVMTI_ERROR_INVALID_OBJECT status code.
const statusInvalidObject = 20

// Package host defines the boundary between the diagnostic engine and the
// runtime that owns the managed heap. The engine never touches heap memory
// directly: everything it learns about objects flows through the Host
// interface, which mirrors the reference-enumeration and tagging primitives
// a JVMTI-style runtime exposes to an in-process agent.
package host

import (
	"errors"
	"fmt"
)

// ObjectRef is an opaque identifier for a managed heap object. The zero
// value means "null reference".
type ObjectRef uint64

// NullRef is the null object reference.
const NullRef ObjectRef = 0

// IsNull reports whether the reference is null.
func (r ObjectRef) IsNull() bool { return r == NullRef }

// Direction selects which side of the reference graph an enumeration follows.
type Direction int

const (
	// FromObject follows outgoing references: what this object points to.
	FromObject Direction = iota
	// ToRoots follows incoming references: who points at this object,
	// including GC roots holding it directly.
	ToRoots
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case FromObject:
		return "from-object"
	case ToRoots:
		return "to-roots"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ReferenceKind categorizes a reference edge as reported by the host.
// Heap kinds connect two objects; root kinds connect a GC root to an object
// and carry a zero Referrer.
type ReferenceKind int

const (
	KindUnknown ReferenceKind = iota
	// Heap-to-heap reference kinds.
	KindField
	KindArrayElement
	KindStaticField
	KindConstantPool
	KindInterface
	KindSigners
	KindProtectionDomain
	// GC root kinds.
	KindRootJNIGlobal
	KindRootJNILocal
	KindRootJavaFrame
	KindRootNativeStack
	KindRootStickyClass
	KindRootThreadBlock
	KindRootMonitor
	KindRootThread
	KindRootOther
)

// IsRoot reports whether the kind denotes a GC-root edge rather than a
// heap-to-heap reference.
func (k ReferenceKind) IsRoot() bool {
	return k >= KindRootJNIGlobal && k <= KindRootOther
}

// String returns a human-readable description of the reference kind.
func (k ReferenceKind) String() string {
	switch k {
	case KindField:
		return "instance field"
	case KindArrayElement:
		return "array element"
	case KindStaticField:
		return "static field"
	case KindConstantPool:
		return "constant pool entry"
	case KindInterface:
		return "interface"
	case KindSigners:
		return "signers"
	case KindProtectionDomain:
		return "protection domain"
	case KindRootJNIGlobal:
		return "JNI global root"
	case KindRootJNILocal:
		return "JNI local root"
	case KindRootJavaFrame:
		return "stack local root"
	case KindRootNativeStack:
		return "native stack root"
	case KindRootStickyClass:
		return "system class root"
	case KindRootThreadBlock:
		return "thread block root"
	case KindRootMonitor:
		return "monitor root"
	case KindRootThread:
		return "thread root"
	case KindRootOther:
		return "other root"
	default:
		return "unknown reference"
	}
}

// Edge is one reference reported during enumeration. For root edges,
// Referrer is NullRef and Kind.IsRoot() is true. Detail carries whatever
// the host knows about the holder (field name, frame info, thread name).
// An Edge is only valid for the duration of the callback that delivers it.
type Edge struct {
	Kind     ReferenceKind
	Referrer ObjectRef
	Referee  ObjectRef
	Detail   string
}

// ErrStopIteration can be returned from an enumeration callback to end the
// enumeration early without error.
var ErrStopIteration = errors.New("stop iteration")

// StatusError reports a non-success status from a host heap primitive.
// The status code is host-specific and surfaced verbatim to callers.
type StatusError struct {
	Op     string
	Status int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("host %s failed with status %d", e.Op, e.Status)
}

// Host is the narrow view of the managed runtime the engine operates
// through. Implementations guarantee that the object graph observed within
// a single top-level traversal is consistent (the runtime pins or snapshots
// the heap for the duration of the call); the engine relies on that
// guarantee and adds none of its own.
//
// The per-object tag slot is a single integer-sized value. A tag of zero
// means "unset". The engine is the only writer and always restores slots to
// zero before a traversal returns.
type Host interface {
	// References enumerates the immediate edges of obj in the given
	// direction, invoking fn once per edge. Enumeration stops early if fn
	// returns an error; ErrStopIteration is swallowed, anything else is
	// propagated. In the ToRoots direction, GC roots holding obj directly
	// are reported as root-kind edges with a null Referrer.
	References(obj ObjectRef, dir Direction, fn func(Edge) error) error

	// TagOf returns the current value of the object's tag slot.
	TagOf(obj ObjectRef) (int64, error)

	// SetTagOf stores a value in the object's tag slot.
	SetTagOf(obj ObjectRef, tag int64) error

	// ShallowSize returns the object's own size in bytes, excluding
	// anything it references.
	ShallowSize(obj ObjectRef) (int64, error)

	// DescribeObject returns a human-readable description of the object
	// (class name, array type) for use in path steps and diagnostics.
	DescribeObject(obj ObjectRef) string
}

package hprofhost

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/jheapagent/internal/host"
	"github.com/jheapagent/pkg/compression"
)

type objectKind int

const (
	instanceObject objectKind = iota
	classObject
	objectArray
	primitiveArray
)

type objectInfo struct {
	classID  uint64
	shallow  int64
	kind     objectKind
	length   int
	elemType basicType
	desc     string
}

// Snapshot is a parsed heap dump implementing host.Host. Tag slots live
// in the snapshot, not the dump: they start zero and behave exactly like
// a live runtime's per-object tag.
//
// A Snapshot is not safe for concurrent use; the engine serializes
// traversals against a single host.
type Snapshot struct {
	header     *Header
	objects    map[host.ObjectRef]*objectInfo
	outgoing   map[host.ObjectRef][]host.Edge
	incoming   map[host.ObjectRef][]host.Edge
	classNames map[uint64]string
	tags       map[host.ObjectRef]int64
	rootCount  int
}

// Open parses the heap dump file at path. Gzip- or zstd-compressed dumps
// are decompressed transparently.
func Open(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open heap dump: %w", err)
	}
	if compression.IsCompressed(data) {
		if data, err = compression.AutoDecompress(data); err != nil {
			return nil, fmt.Errorf("failed to decompress heap dump: %w", err)
		}
	}
	return Parse(bytes.NewReader(data))
}

// Header returns the dump file header.
func (s *Snapshot) Header() *Header { return s.header }

// NumObjects returns how many objects the dump contains.
func (s *Snapshot) NumObjects() int { return len(s.objects) }

// NumRoots returns how many GC root entries the dump contains.
func (s *Snapshot) NumRoots() int { return s.rootCount }

// Contains reports whether the dump has an object with the given ref.
func (s *Snapshot) Contains(obj host.ObjectRef) bool {
	_, ok := s.objects[obj]
	return ok
}

// InstancesOf returns the refs of all instances of the named class, in
// ascending ref order. The name uses source form ("java.lang.String").
func (s *Snapshot) InstancesOf(className string) []host.ObjectRef {
	var refs []host.ObjectRef
	for ref, info := range s.objects {
		if info.kind != instanceObject {
			continue
		}
		if s.classNames[info.classID] == className {
			refs = append(refs, ref)
		}
	}
	return sortedRefs(refs)
}

// References implements host.Host.
func (s *Snapshot) References(obj host.ObjectRef, dir host.Direction, fn func(host.Edge) error) error {
	if _, ok := s.objects[obj]; !ok {
		return &host.StatusError{Op: "References", Status: statusInvalidObject}
	}
	edges := s.outgoing[obj]
	if dir == host.ToRoots {
		edges = s.incoming[obj]
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
func (s *Snapshot) TagOf(obj host.ObjectRef) (int64, error) {
	if _, ok := s.objects[obj]; !ok {
		return 0, &host.StatusError{Op: "TagOf", Status: statusInvalidObject}
	}
	return s.tags[obj], nil
}

// SetTagOf implements host.Host.
func (s *Snapshot) SetTagOf(obj host.ObjectRef, tag int64) error {
	if _, ok := s.objects[obj]; !ok {
		return &host.StatusError{Op: "SetTagOf", Status: statusInvalidObject}
	}
	if tag == 0 {
		delete(s.tags, obj)
		return nil
	}
	s.tags[obj] = tag
	return nil
}

// ShallowSize implements host.Host.
func (s *Snapshot) ShallowSize(obj host.ObjectRef) (int64, error) {
	info, ok := s.objects[obj]
	if !ok {
		return 0, &host.StatusError{Op: "ShallowSize", Status: statusInvalidObject}
	}
	return info.shallow, nil
}

// DescribeObject implements host.Host.
func (s *Snapshot) DescribeObject(obj host.ObjectRef) string {
	if info, ok := s.objects[obj]; ok {
		return info.desc
	}
	return fmt.Sprintf("object 0x%x", uint64(obj))
}

// describe builds the display name for an object from its kind and class.
func (s *Snapshot) describe(ref host.ObjectRef, info *objectInfo) string {
	switch info.kind {
	case classObject:
		if name := s.classNames[info.classID]; name != "" {
			return "class " + name
		}
		return fmt.Sprintf("class 0x%x", info.classID)
	case objectArray:
		name := s.classNames[info.classID]
		if name == "" {
			name = "java.lang.Object[]"
		}
		return fmt.Sprintf("%s{%d}", name, info.length)
	case primitiveArray:
		return fmt.Sprintf("%s[]{%d}", info.elemType.name(), info.length)
	default:
		if name := s.classNames[info.classID]; name != "" {
			return name
		}
		return fmt.Sprintf("object 0x%x", uint64(ref))
	}
}

// statusInvalidObject mirrors the JVMTI_ERROR_INVALID_OBJECT status code.
const statusInvalidObject = 20

package hprofhost

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jheapagent/internal/host"
)

// dumpBuilder assembles a minimal HPROF byte stream for tests, with
// 8-byte identifiers.
type dumpBuilder struct {
	buf  bytes.Buffer
	heap bytes.Buffer
}

func newDumpBuilder() *dumpBuilder {
	b := &dumpBuilder{}
	b.buf.WriteString("JAVA PROFILE 1.0.2")
	b.buf.WriteByte(0)
	writeU32(&b.buf, 8)             // ID size
	writeU64(&b.buf, 1700000000000) // timestamp
	return b
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func (b *dumpBuilder) record(tag recordTag, body []byte) {
	b.buf.WriteByte(byte(tag))
	writeU32(&b.buf, 0) // time delta
	writeU32(&b.buf, uint32(len(body)))
	b.buf.Write(body)
}

func (b *dumpBuilder) utf8(id uint64, s string) {
	var body bytes.Buffer
	writeU64(&body, id)
	body.WriteString(s)
	b.record(tagString, body.Bytes())
}

func (b *dumpBuilder) loadClass(classID, nameID uint64) {
	var body bytes.Buffer
	writeU32(&body, 1) // class serial
	writeU64(&body, classID)
	writeU32(&body, 0) // stack trace serial
	writeU64(&body, nameID)
	b.record(tagLoadClass, body.Bytes())
}

type staticField struct {
	nameID uint64
	target uint64
}

type instanceField struct {
	nameID uint64
	typ    basicType
}

func (b *dumpBuilder) classDump(classID, superID uint64, instanceSize uint32, statics []staticField, fields []instanceField) {
	h := &b.heap
	h.WriteByte(byte(heapTagClassDump))
	writeU64(h, classID)
	writeU32(h, 0)       // stack trace serial
	writeU64(h, superID) // superclass
	writeU64(h, 0)       // class loader
	writeU64(h, 0)       // signers
	writeU64(h, 0)       // protection domain
	writeU64(h, 0)       // reserved1
	writeU64(h, 0)       // reserved2
	writeU32(h, instanceSize)
	writeU16(h, 0) // constant pool
	writeU16(h, uint16(len(statics)))
	for _, sf := range statics {
		writeU64(h, sf.nameID)
		h.WriteByte(byte(typeObject))
		writeU64(h, sf.target)
	}
	writeU16(h, uint16(len(fields)))
	for _, f := range fields {
		writeU64(h, f.nameID)
		h.WriteByte(byte(f.typ))
	}
}

func (b *dumpBuilder) instanceDump(objectID, classID uint64, data []byte) {
	h := &b.heap
	h.WriteByte(byte(heapTagInstanceDump))
	writeU64(h, objectID)
	writeU32(h, 0)
	writeU64(h, classID)
	writeU32(h, uint32(len(data)))
	h.Write(data)
}

func (b *dumpBuilder) objectArrayDump(objectID, classID uint64, elements []uint64) {
	h := &b.heap
	h.WriteByte(byte(heapTagObjectArrayDump))
	writeU64(h, objectID)
	writeU32(h, 0)
	writeU32(h, uint32(len(elements)))
	writeU64(h, classID)
	for _, e := range elements {
		writeU64(h, e)
	}
}

func (b *dumpBuilder) primitiveArrayDump(objectID uint64, typ basicType, count int) {
	h := &b.heap
	h.WriteByte(byte(heapTagPrimitiveArrayDump))
	writeU64(h, objectID)
	writeU32(h, 0)
	writeU32(h, uint32(count))
	h.WriteByte(byte(typ))
	h.Write(make([]byte, count*typ.size(8)))
}

func (b *dumpBuilder) rootJavaFrame(objectID uint64, thread, frame uint32) {
	h := &b.heap
	h.WriteByte(byte(heapTagRootJavaFrame))
	writeU64(h, objectID)
	writeU32(h, thread)
	writeU32(h, frame)
}

func (b *dumpBuilder) rootJNIGlobal(objectID uint64) {
	h := &b.heap
	h.WriteByte(byte(heapTagRootJNIGlobal))
	writeU64(h, objectID)
	writeU64(h, 0) // JNI ref ID
}

func (b *dumpBuilder) bytes() []byte {
	b.record(tagHeapDumpSegment, b.heap.Bytes())
	b.record(tagHeapDumpEnd, nil)
	return b.buf.Bytes()
}

// idRef encodes an 8-byte object reference as instance field data.
func idRef(id uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], id)
	return tmp[:]
}

const (
	strHolder      = 100
	strTarget      = 101
	strObjectArray = 103
	strCache       = 104

	classHolder = 0x1000
	classArray  = 0x1001

	objHolder   = 0x2000
	objTarget   = 0x2001
	objArray    = 0x4000
	objIntArray = 0x3000
)

// buildFixtureDump synthesizes a small heap:
//
//	stack frame ---> objHolder --target--> objTarget
//	objArray[0] ---> objTarget
//	class Holder --static cache--> objArray (class is a JNI global root)
//	objIntArray is an untouched int[4]
func buildFixtureDump(t *testing.T) *Snapshot {
	t.Helper()

	b := newDumpBuilder()
	b.utf8(strHolder, "com/example/Holder")
	b.utf8(strTarget, "target")
	b.utf8(strObjectArray, "[Ljava/lang/Object;")
	b.utf8(strCache, "cache")
	b.loadClass(classHolder, strHolder)
	b.loadClass(classArray, strObjectArray)

	// Instances appear before their CLASS_DUMP to exercise deferred
	// field resolution.
	b.instanceDump(objHolder, classHolder, idRef(objTarget))
	b.instanceDump(objTarget, classHolder, idRef(0))
	b.classDump(classHolder, 0, 8,
		[]staticField{{nameID: strCache, target: objArray}},
		[]instanceField{{nameID: strTarget, typ: typeObject}})
	b.objectArrayDump(objArray, classArray, []uint64{objTarget, 0})
	b.primitiveArrayDump(objIntArray, typeInt, 4)
	b.rootJavaFrame(objHolder, 1, 0)
	b.rootJNIGlobal(classHolder)

	snap, err := Parse(bytes.NewReader(b.bytes()))
	require.NoError(t, err)
	return snap
}

func TestParse_Header(t *testing.T) {
	snap := buildFixtureDump(t)
	assert.Equal(t, "JAVA PROFILE 1.0.2", snap.Header().Format)
	assert.Equal(t, 8, snap.Header().IDSize)
}

func TestParse_Objects(t *testing.T) {
	snap := buildFixtureDump(t)

	// Two instances, one object array, one primitive array, one class.
	assert.Equal(t, 5, snap.NumObjects())
	assert.Equal(t, 2, snap.NumRoots())
	assert.True(t, snap.Contains(objHolder))
	assert.False(t, snap.Contains(0xDEAD))
}

func TestParse_ShallowSizes(t *testing.T) {
	snap := buildFixtureDump(t)

	// Instance: 16-byte header + 8 bytes of fields, 8-aligned.
	size, err := snap.ShallowSize(objHolder)
	require.NoError(t, err)
	assert.Equal(t, int64(24), size)

	// int[4]: 16-byte header + 16 bytes of elements.
	size, err = snap.ShallowSize(objIntArray)
	require.NoError(t, err)
	assert.Equal(t, int64(32), size)

	// Object[2]: 16-byte header + 2 refs of 8 bytes.
	size, err = snap.ShallowSize(objArray)
	require.NoError(t, err)
	assert.Equal(t, int64(32), size)
}

func TestParse_Descriptions(t *testing.T) {
	snap := buildFixtureDump(t)

	assert.Equal(t, "com.example.Holder", snap.DescribeObject(objHolder))
	assert.Equal(t, "class com.example.Holder", snap.DescribeObject(classHolder))
	assert.Equal(t, "java.lang.Object[]{2}", snap.DescribeObject(objArray))
	assert.Equal(t, "int[]{4}", snap.DescribeObject(objIntArray))
}

func TestReferences_FromObject(t *testing.T) {
	snap := buildFixtureDump(t)

	var edges []host.Edge
	err := snap.References(objHolder, host.FromObject, func(e host.Edge) error {
		edges = append(edges, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, edges, 1)
	assert.Equal(t, host.KindField, edges[0].Kind)
	assert.Equal(t, "target", edges[0].Detail)
	assert.Equal(t, host.ObjectRef(objTarget), edges[0].Referee)
	assert.Equal(t, host.ObjectRef(objHolder), edges[0].Referrer)
}

func TestReferences_ClassEdges(t *testing.T) {
	snap := buildFixtureDump(t)

	var static []host.Edge
	err := snap.References(classHolder, host.FromObject, func(e host.Edge) error {
		if e.Kind == host.KindStaticField {
			static = append(static, e)
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, static, 1)
	assert.Equal(t, "cache", static[0].Detail)
	assert.Equal(t, host.ObjectRef(objArray), static[0].Referee)
}

func TestReferences_ArrayElements(t *testing.T) {
	snap := buildFixtureDump(t)

	var edges []host.Edge
	err := snap.References(objArray, host.FromObject, func(e host.Edge) error {
		edges = append(edges, e)
		return nil
	})
	require.NoError(t, err)

	// Null element emits no edge.
	require.Len(t, edges, 1)
	assert.Equal(t, host.KindArrayElement, edges[0].Kind)
	assert.Equal(t, "0", edges[0].Detail)
	assert.Equal(t, host.ObjectRef(objTarget), edges[0].Referee)
}

func TestReferences_ToRoots(t *testing.T) {
	snap := buildFixtureDump(t)

	var edges []host.Edge
	err := snap.References(objHolder, host.ToRoots, func(e host.Edge) error {
		edges = append(edges, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, edges, 1)
	assert.Equal(t, host.KindRootJavaFrame, edges[0].Kind)
	assert.True(t, edges[0].Referrer.IsNull())
	assert.Equal(t, "thread 1, frame 0", edges[0].Detail)
}

func TestReferences_ToRoots_MixedHolders(t *testing.T) {
	snap := buildFixtureDump(t)

	var kinds []host.ReferenceKind
	err := snap.References(objTarget, host.ToRoots, func(e host.Edge) error {
		kinds = append(kinds, e.Kind)
		return nil
	})
	require.NoError(t, err)

	// Held by objHolder.target and objArray[0].
	assert.ElementsMatch(t, []host.ReferenceKind{host.KindField, host.KindArrayElement}, kinds)
}

func TestReferences_StopIteration(t *testing.T) {
	snap := buildFixtureDump(t)

	calls := 0
	err := snap.References(objTarget, host.ToRoots, func(e host.Edge) error {
		calls++
		return host.ErrStopIteration
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestReferences_UnknownObject(t *testing.T) {
	snap := buildFixtureDump(t)

	err := snap.References(0xDEAD, host.FromObject, func(host.Edge) error { return nil })
	var statusErr *host.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, statusInvalidObject, statusErr.Status)
}

func TestTagSlots(t *testing.T) {
	snap := buildFixtureDump(t)

	tag, err := snap.TagOf(objHolder)
	require.NoError(t, err)
	assert.Zero(t, tag)

	require.NoError(t, snap.SetTagOf(objHolder, 42))
	tag, err = snap.TagOf(objHolder)
	require.NoError(t, err)
	assert.Equal(t, int64(42), tag)

	require.NoError(t, snap.SetTagOf(objHolder, 0))
	tag, err = snap.TagOf(objHolder)
	require.NoError(t, err)
	assert.Zero(t, tag)

	_, err = snap.TagOf(0xDEAD)
	assert.Error(t, err)
	assert.Error(t, snap.SetTagOf(0xDEAD, 1))
}

func TestInstancesOf(t *testing.T) {
	snap := buildFixtureDump(t)

	refs := snap.InstancesOf("com.example.Holder")
	assert.Equal(t, []host.ObjectRef{objHolder, objTarget}, refs)

	assert.Empty(t, snap.InstancesOf("com.example.Missing"))
}

func TestParse_DanglingReferencesDropped(t *testing.T) {
	b := newDumpBuilder()
	b.utf8(strHolder, "com/example/Holder")
	b.utf8(strTarget, "target")
	b.loadClass(classHolder, strHolder)
	b.classDump(classHolder, 0, 8, nil,
		[]instanceField{{nameID: strTarget, typ: typeObject}})
	// Field points at an object the dump never defines.
	b.instanceDump(objHolder, classHolder, idRef(0xEEEE))
	b.rootJavaFrame(0xEEEE, 1, 0)

	snap, err := Parse(bytes.NewReader(b.bytes()))
	require.NoError(t, err)

	var edges int
	require.NoError(t, snap.References(objHolder, host.FromObject, func(host.Edge) error {
		edges++
		return nil
	}))
	assert.Zero(t, edges)
	assert.Zero(t, snap.NumRoots())
}

func TestParse_InvalidInput(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("not a dump")))
	assert.Error(t, err)

	// Valid header, truncated record.
	b := newDumpBuilder()
	raw := b.buf.Bytes()
	raw = append(raw, byte(tagString), 0, 0, 0, 0, 0, 0, 0, 99)
	_, err = Parse(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestOpen_File(t *testing.T) {
	b := newDumpBuilder()
	b.utf8(strHolder, "com/example/Holder")
	b.loadClass(classHolder, strHolder)
	b.classDump(classHolder, 0, 0, nil, nil)
	b.instanceDump(objHolder, classHolder, nil)

	path := filepath.Join(t.TempDir(), "heap.hprof")
	require.NoError(t, os.WriteFile(path, b.bytes(), 0644))

	snap, err := Open(path)
	require.NoError(t, err)
	assert.True(t, snap.Contains(objHolder))

	_, err = Open(path + ".missing")
	assert.Error(t, err)
}

func TestOpen_GzippedDump(t *testing.T) {
	b := newDumpBuilder()
	b.utf8(strHolder, "com/example/Holder")
	b.loadClass(classHolder, strHolder)
	b.classDump(classHolder, 0, 0, nil, nil)
	b.instanceDump(objHolder, classHolder, nil)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b.bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "heap.hprof.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	snap, err := Open(path)
	require.NoError(t, err)
	assert.True(t, snap.Contains(objHolder))
}

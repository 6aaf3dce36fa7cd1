// Package hprofhost implements host.Host on top of a parsed HPROF heap
// dump. It gives the engine the exact same view it would have inside a
// live JVM, except the heap is a file snapshot: reference enumeration,
// tag slots, shallow sizes and object descriptions all come from the
// parsed dump.
package hprofhost

import "time"

// recordTag identifies a top-level HPROF record.
type recordTag uint8

const (
	tagString          recordTag = 0x01
	tagLoadClass       recordTag = 0x02
	tagHeapDump        recordTag = 0x0C
	tagHeapDumpSegment recordTag = 0x1C
	tagHeapDumpEnd     recordTag = 0x2C
)

// heapTag identifies a sub-record within a heap dump segment.
type heapTag uint8

const (
	heapTagRootUnknown        heapTag = 0xFF
	heapTagRootJNIGlobal      heapTag = 0x01
	heapTagRootJNILocal       heapTag = 0x02
	heapTagRootJavaFrame      heapTag = 0x03
	heapTagRootNativeStack    heapTag = 0x04
	heapTagRootStickyClass    heapTag = 0x05
	heapTagRootThreadBlock    heapTag = 0x06
	heapTagRootMonitorUsed    heapTag = 0x07
	heapTagRootThreadObject   heapTag = 0x08
	heapTagClassDump          heapTag = 0x20
	heapTagInstanceDump       heapTag = 0x21
	heapTagObjectArrayDump    heapTag = 0x22
	heapTagPrimitiveArrayDump heapTag = 0x23
)

// basicType is a JVM primitive type code as used in field descriptors.
type basicType uint8

const (
	typeObject  basicType = 2
	typeBoolean basicType = 4
	typeChar    basicType = 5
	typeFloat   basicType = 6
	typeDouble  basicType = 7
	typeByte    basicType = 8
	typeShort   basicType = 9
	typeInt     basicType = 10
	typeLong    basicType = 11
)

// size returns the encoded width of the type in bytes. Object references
// take idSize bytes.
func (t basicType) size(idSize int) int {
	switch t {
	case typeObject:
		return idSize
	case typeBoolean, typeByte:
		return 1
	case typeChar, typeShort:
		return 2
	case typeFloat, typeInt:
		return 4
	case typeDouble, typeLong:
		return 8
	default:
		return 0
	}
}

// name returns the Java name of the primitive type.
func (t basicType) name() string {
	switch t {
	case typeBoolean:
		return "boolean"
	case typeChar:
		return "char"
	case typeFloat:
		return "float"
	case typeDouble:
		return "double"
	case typeByte:
		return "byte"
	case typeShort:
		return "short"
	case typeInt:
		return "int"
	case typeLong:
		return "long"
	default:
		return "object"
	}
}

// Header holds the HPROF file header.
type Header struct {
	Format    string
	IDSize    int
	Timestamp time.Time
}

const objectHeaderSize = 16

// alignTo8 rounds a size up to the JVM's 8-byte object alignment.
func alignTo8(n int64) int64 {
	return (n + 7) &^ 7
}

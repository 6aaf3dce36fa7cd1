package hprofhost

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jheapagent/internal/host"
)

// fieldDesc is one declared instance field of a class: name string ID and
// encoded type.
type fieldDesc struct {
	nameID uint64
	typ    basicType
}

// classDump holds a parsed CLASS_DUMP sub-record until finalize resolves
// names and emits edges.
type classDump struct {
	classID      uint64
	superID      uint64
	loaderID     uint64
	signersID    uint64
	protDomainID uint64
	instanceSize int
	staticCount  int
	staticRefs   []staticRef
	fields       []fieldDesc
}

type staticRef struct {
	nameID uint64
	target uint64
}

// rawInstance holds an INSTANCE_DUMP until all CLASS_DUMP records are
// known, so field layouts can be resolved across the class hierarchy.
type rawInstance struct {
	objectID uint64
	classID  uint64
	data     []byte
}

type parser struct {
	reader *reader
	header *Header

	strings      map[uint64]string
	classNameIDs map[uint64]uint64 // classID -> name string ID
	classes      map[uint64]*classDump
	instances    []rawInstance

	objects  map[host.ObjectRef]*objectInfo
	outgoing map[host.ObjectRef][]host.Edge
	roots    []host.Edge
}

// Parse reads a complete HPROF stream and builds a queryable Snapshot.
func Parse(r io.Reader) (*Snapshot, error) {
	rd := newReader(r)
	header, err := rd.readHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	p := &parser{
		reader:       rd,
		header:       header,
		strings:      make(map[uint64]string),
		classNameIDs: make(map[uint64]uint64),
		classes:      make(map[uint64]*classDump),
		objects:      make(map[host.ObjectRef]*objectInfo),
		outgoing:     make(map[host.ObjectRef][]host.Edge),
	}

	if err := p.parseRecords(); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}

	return p.finalize(), nil
}

func (p *parser) parseRecords() error {
	for {
		tag, length, err := p.reader.readRecordHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch tag {
		case tagString:
			if err := p.parseStringRecord(length); err != nil {
				return err
			}
		case tagLoadClass:
			if err := p.parseLoadClassRecord(); err != nil {
				return err
			}
		case tagHeapDump, tagHeapDumpSegment:
			if err := p.parseHeapDumpRecord(length); err != nil {
				return err
			}
		case tagHeapDumpEnd:
			// Zero-length marker.
		default:
			if err := p.reader.skip(int64(length)); err != nil {
				return err
			}
		}
	}
}

func (p *parser) parseStringRecord(length uint32) error {
	id, err := p.reader.readID()
	if err != nil {
		return err
	}
	strLen := int(length) - p.reader.idSize
	if strLen < 0 {
		return fmt.Errorf("invalid string record length: %d", length)
	}
	strBytes, err := p.reader.readBytes(strLen)
	if err != nil {
		return err
	}
	p.strings[id] = string(strBytes)
	return nil
}

func (p *parser) parseLoadClassRecord() error {
	if _, err := p.reader.readUint32(); err != nil { // class serial
		return err
	}
	classID, err := p.reader.readID()
	if err != nil {
		return err
	}
	if _, err := p.reader.readUint32(); err != nil { // stack trace serial
		return err
	}
	nameID, err := p.reader.readID()
	if err != nil {
		return err
	}
	p.classNameIDs[classID] = nameID
	return nil
}

func (p *parser) parseHeapDumpRecord(length uint32) error {
	end := int64(length)
	var bytesRead int64

	for bytesRead < end {
		tagByte, err := p.reader.readByte()
		if err != nil {
			return err
		}
		bytesRead++

		n, err := p.parseHeapSubRecord(heapTag(tagByte))
		if err != nil {
			if _, unknown := err.(*unknownTagError); unknown {
				// Cannot size an unknown sub-record; skip the rest of
				// the segment.
				return p.reader.skip(end - bytesRead)
			}
			return err
		}
		bytesRead += n
	}
	return nil
}

type unknownTagError struct{ tag heapTag }

func (e *unknownTagError) Error() string {
	return fmt.Sprintf("unknown heap dump tag 0x%02X", uint8(e.tag))
}

// parseHeapSubRecord parses one heap dump sub-record and returns the
// number of body bytes consumed.
func (p *parser) parseHeapSubRecord(tag heapTag) (int64, error) {
	idSize := p.reader.idSize

	switch tag {
	case 0x00:
		// Padding byte.
		return 0, nil

	case heapTagRootJNIGlobal:
		objectID, err := p.reader.readID()
		if err != nil {
			return 0, err
		}
		if err := p.reader.skip(int64(idSize)); err != nil { // JNI ref ID
			return 0, err
		}
		p.addRoot(objectID, host.KindRootJNIGlobal, "")
		return int64(idSize * 2), nil

	case heapTagRootJNILocal:
		return p.parseThreadFrameRoot(host.KindRootJNILocal)

	case heapTagRootJavaFrame:
		return p.parseThreadFrameRoot(host.KindRootJavaFrame)

	case heapTagRootNativeStack:
		return p.parseThreadRoot(host.KindRootNativeStack, 0)

	case heapTagRootThreadBlock:
		return p.parseThreadRoot(host.KindRootThreadBlock, 0)

	case heapTagRootStickyClass:
		objectID, err := p.reader.readID()
		if err != nil {
			return 0, err
		}
		p.addRoot(objectID, host.KindRootStickyClass, "")
		return int64(idSize), nil

	case heapTagRootMonitorUsed:
		objectID, err := p.reader.readID()
		if err != nil {
			return 0, err
		}
		p.addRoot(objectID, host.KindRootMonitor, "")
		return int64(idSize), nil

	case heapTagRootThreadObject:
		// Trailing stack trace serial after the thread serial.
		return p.parseThreadRoot(host.KindRootThread, 4)

	case heapTagRootUnknown:
		objectID, err := p.reader.readID()
		if err != nil {
			return 0, err
		}
		p.addRoot(objectID, host.KindRootOther, "")
		return int64(idSize), nil

	case heapTagClassDump:
		return p.parseClassDump()

	case heapTagInstanceDump:
		return p.parseInstanceDump()

	case heapTagObjectArrayDump:
		return p.parseObjectArrayDump()

	case heapTagPrimitiveArrayDump:
		return p.parsePrimitiveArrayDump()

	default:
		return 0, &unknownTagError{tag: tag}
	}
}

// parseThreadFrameRoot parses a root carrying a thread serial and a frame
// index (JNI local, java frame).
func (p *parser) parseThreadFrameRoot(kind host.ReferenceKind) (int64, error) {
	objectID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	threadSerial, err := p.reader.readUint32()
	if err != nil {
		return 0, err
	}
	frameIndex, err := p.reader.readUint32()
	if err != nil {
		return 0, err
	}
	detail := fmt.Sprintf("thread %d, frame %d", threadSerial, frameIndex)
	p.addRoot(objectID, kind, detail)
	return int64(p.reader.idSize + 8), nil
}

// parseThreadRoot parses a root carrying only a thread serial, skipping
// extraBytes of trailing data.
func (p *parser) parseThreadRoot(kind host.ReferenceKind, extraBytes int) (int64, error) {
	objectID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	threadSerial, err := p.reader.readUint32()
	if err != nil {
		return 0, err
	}
	if extraBytes > 0 {
		if err := p.reader.skip(int64(extraBytes)); err != nil {
			return 0, err
		}
	}
	p.addRoot(objectID, kind, fmt.Sprintf("thread %d", threadSerial))
	return int64(p.reader.idSize + 4 + extraBytes), nil
}

func (p *parser) addRoot(objectID uint64, kind host.ReferenceKind, detail string) {
	p.roots = append(p.roots, host.Edge{
		Kind:    kind,
		Referee: host.ObjectRef(objectID),
		Detail:  detail,
	})
}

func (p *parser) parseClassDump() (int64, error) {
	idSize := p.reader.idSize
	var bytesRead int64

	classID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	bytesRead += int64(idSize)

	if _, err := p.reader.readUint32(); err != nil { // stack trace serial
		return 0, err
	}
	bytesRead += 4

	superID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	loaderID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	signersID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	protDomainID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	// Reserved1, reserved2.
	if err := p.reader.skip(int64(idSize * 2)); err != nil {
		return 0, err
	}
	bytesRead += int64(idSize * 6)

	instanceSize, err := p.reader.readUint32()
	if err != nil {
		return 0, err
	}
	bytesRead += 4

	// Constant pool: index (2) + type (1) + value per entry.
	cpSize, err := p.reader.readUint16()
	if err != nil {
		return 0, err
	}
	bytesRead += 2
	for i := 0; i < int(cpSize); i++ {
		if _, err := p.reader.readUint16(); err != nil {
			return 0, err
		}
		typeByte, err := p.reader.readByte()
		if err != nil {
			return 0, err
		}
		valueSize := basicType(typeByte).size(idSize)
		if err := p.reader.skip(int64(valueSize)); err != nil {
			return 0, err
		}
		bytesRead += int64(3 + valueSize)
	}

	cd := &classDump{
		classID:      classID,
		superID:      superID,
		loaderID:     loaderID,
		signersID:    signersID,
		protDomainID: protDomainID,
		instanceSize: int(instanceSize),
	}

	staticCount, err := p.reader.readUint16()
	if err != nil {
		return 0, err
	}
	bytesRead += 2
	cd.staticCount = int(staticCount)

	for i := 0; i < int(staticCount); i++ {
		nameID, err := p.reader.readID()
		if err != nil {
			return 0, err
		}
		typeByte, err := p.reader.readByte()
		if err != nil {
			return 0, err
		}
		bytesRead += int64(idSize + 1)

		t := basicType(typeByte)
		if t == typeObject {
			refID, err := p.reader.readID()
			if err != nil {
				return 0, err
			}
			bytesRead += int64(idSize)
			if refID != 0 {
				cd.staticRefs = append(cd.staticRefs, staticRef{nameID: nameID, target: refID})
			}
		} else {
			valueSize := t.size(idSize)
			if err := p.reader.skip(int64(valueSize)); err != nil {
				return 0, err
			}
			bytesRead += int64(valueSize)
		}
	}

	fieldCount, err := p.reader.readUint16()
	if err != nil {
		return 0, err
	}
	bytesRead += 2
	for i := 0; i < int(fieldCount); i++ {
		nameID, err := p.reader.readID()
		if err != nil {
			return 0, err
		}
		typeByte, err := p.reader.readByte()
		if err != nil {
			return 0, err
		}
		bytesRead += int64(idSize + 1)
		cd.fields = append(cd.fields, fieldDesc{nameID: nameID, typ: basicType(typeByte)})
	}

	p.classes[classID] = cd
	return bytesRead, nil
}

func (p *parser) parseInstanceDump() (int64, error) {
	idSize := p.reader.idSize
	var bytesRead int64

	objectID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	if _, err := p.reader.readUint32(); err != nil { // stack trace serial
		return 0, err
	}
	classID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	dataSize, err := p.reader.readUint32()
	if err != nil {
		return 0, err
	}
	bytesRead += int64(idSize*2 + 8)

	data, err := p.reader.readBytes(int(dataSize))
	if err != nil {
		return 0, err
	}
	bytesRead += int64(dataSize)

	// Field layouts may not be known yet; defer reference extraction to
	// finalize, once every CLASS_DUMP has been seen.
	p.instances = append(p.instances, rawInstance{objectID: objectID, classID: classID, data: data})
	return bytesRead, nil
}

func (p *parser) parseObjectArrayDump() (int64, error) {
	idSize := p.reader.idSize
	var bytesRead int64

	objectID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	if _, err := p.reader.readUint32(); err != nil { // stack trace serial
		return 0, err
	}
	length, err := p.reader.readUint32()
	if err != nil {
		return 0, err
	}
	classID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	bytesRead += int64(idSize*2 + 8)

	ref := host.ObjectRef(objectID)
	for i := 0; i < int(length); i++ {
		elemID, err := p.reader.readID()
		if err != nil {
			return 0, err
		}
		bytesRead += int64(idSize)
		if elemID != 0 {
			p.outgoing[ref] = append(p.outgoing[ref], host.Edge{
				Kind:     host.KindArrayElement,
				Referrer: ref,
				Referee:  host.ObjectRef(elemID),
				Detail:   strconv.Itoa(i),
			})
		}
	}

	p.objects[ref] = &objectInfo{
		classID: classID,
		shallow: alignTo8(objectHeaderSize + int64(length)*int64(idSize)),
		kind:    objectArray,
		length:  int(length),
	}
	return bytesRead, nil
}

func (p *parser) parsePrimitiveArrayDump() (int64, error) {
	idSize := p.reader.idSize
	var bytesRead int64

	objectID, err := p.reader.readID()
	if err != nil {
		return 0, err
	}
	if _, err := p.reader.readUint32(); err != nil { // stack trace serial
		return 0, err
	}
	length, err := p.reader.readUint32()
	if err != nil {
		return 0, err
	}
	typeByte, err := p.reader.readByte()
	if err != nil {
		return 0, err
	}
	bytesRead += int64(idSize + 9)

	t := basicType(typeByte)
	dataSize := int64(length) * int64(t.size(idSize))
	if err := p.reader.skip(dataSize); err != nil {
		return 0, err
	}
	bytesRead += dataSize

	p.objects[host.ObjectRef(objectID)] = &objectInfo{
		shallow:  alignTo8(objectHeaderSize + dataSize),
		kind:     primitiveArray,
		length:   int(length),
		elemType: t,
	}
	return bytesRead, nil
}

// finalize resolves class layouts, extracts instance field references,
// registers class objects and builds the incoming-edge index.
func (p *parser) finalize() *Snapshot {
	// Register every class as a heap object in its own right. Classes
	// reference their superclass, class loader, signers, protection
	// domain and static field values.
	for classID, cd := range p.classes {
		ref := host.ObjectRef(classID)
		p.objects[ref] = &objectInfo{
			classID: classID,
			shallow: alignTo8(objectHeaderSize + int64(cd.staticCount)*8),
			kind:    classObject,
		}

		p.addEdge(ref, cd.superID, host.KindField, "<superclass>")
		p.addEdge(ref, cd.loaderID, host.KindField, "<classLoader>")
		p.addEdge(ref, cd.signersID, host.KindSigners, "")
		p.addEdge(ref, cd.protDomainID, host.KindProtectionDomain, "")
		for _, sr := range cd.staticRefs {
			p.addEdge(ref, sr.target, host.KindStaticField, p.strings[sr.nameID])
		}
	}

	for _, inst := range p.instances {
		ref := host.ObjectRef(inst.objectID)
		info := &objectInfo{classID: inst.classID, kind: instanceObject}
		if cd, ok := p.classes[inst.classID]; ok {
			info.shallow = alignTo8(objectHeaderSize + int64(cd.instanceSize))
		} else {
			info.shallow = alignTo8(objectHeaderSize + int64(len(inst.data)))
		}
		p.objects[ref] = info
		p.extractFieldReferences(ref, inst.classID, inst.data)
	}

	snap := &Snapshot{
		header:     p.header,
		objects:    p.objects,
		outgoing:   make(map[host.ObjectRef][]host.Edge),
		incoming:   make(map[host.ObjectRef][]host.Edge),
		classNames: make(map[uint64]string),
		tags:       make(map[host.ObjectRef]int64),
	}

	for classID, nameID := range p.classNameIDs {
		snap.classNames[classID] = javaClassName(p.strings[nameID])
	}

	// Keep only edges whose endpoints both exist in the dump. Truncated
	// dumps reference objects that were never written out.
	for from, edges := range p.outgoing {
		if _, ok := p.objects[from]; !ok {
			continue
		}
		for _, e := range edges {
			if _, ok := p.objects[e.Referee]; !ok {
				continue
			}
			snap.outgoing[from] = append(snap.outgoing[from], e)
			snap.incoming[e.Referee] = append(snap.incoming[e.Referee], e)
		}
	}
	for _, e := range p.roots {
		if _, ok := p.objects[e.Referee]; !ok {
			continue
		}
		snap.incoming[e.Referee] = append(snap.incoming[e.Referee], e)
		snap.rootCount++
	}

	for ref, info := range snap.objects {
		info.desc = snap.describe(ref, info)
	}

	return snap
}

func (p *parser) addEdge(from host.ObjectRef, toID uint64, kind host.ReferenceKind, detail string) {
	if toID == 0 {
		return
	}
	p.outgoing[from] = append(p.outgoing[from], host.Edge{
		Kind:     kind,
		Referrer: from,
		Referee:  host.ObjectRef(toID),
		Detail:   detail,
	})
}

// extractFieldReferences walks the class hierarchy field layout over the
// raw instance data and emits an edge for every non-null object field.
func (p *parser) extractFieldReferences(ref host.ObjectRef, classID uint64, data []byte) {
	idSize := p.reader.idSize
	offset := 0

	for classID != 0 {
		cd, ok := p.classes[classID]
		if !ok {
			return
		}
		for _, f := range cd.fields {
			size := f.typ.size(idSize)
			if offset+size > len(data) {
				return
			}
			if f.typ == typeObject {
				refID := readIDAt(data[offset:], idSize)
				if refID != 0 {
					p.addEdge(ref, refID, host.KindField, p.strings[f.nameID])
				}
			}
			offset += size
		}
		classID = cd.superID
	}
}

func readIDAt(data []byte, idSize int) uint64 {
	if idSize == 4 {
		return uint64(binary.BigEndian.Uint32(data))
	}
	return binary.BigEndian.Uint64(data)
}

// javaClassName converts a binary class name from the dump to source
// form: slashes become dots, array descriptors become bracketed names.
func javaClassName(name string) string {
	dims := 0
	for dims < len(name) && name[dims] == '[' {
		dims++
	}
	base := name[dims:]

	switch {
	case base == "":
		return name
	case base[0] == 'L' && base[len(base)-1] == ';':
		base = base[1 : len(base)-1]
	case dims > 0:
		switch base[0] {
		case 'Z':
			base = "boolean"
		case 'B':
			base = "byte"
		case 'C':
			base = "char"
		case 'S':
			base = "short"
		case 'I':
			base = "int"
		case 'J':
			base = "long"
		case 'F':
			base = "float"
		case 'D':
			base = "double"
		}
	}

	out := make([]byte, 0, len(base)+dims*2)
	for i := 0; i < len(base); i++ {
		if base[i] == '/' {
			out = append(out, '.')
		} else {
			out = append(out, base[i])
		}
	}
	for i := 0; i < dims; i++ {
		out = append(out, '[', ']')
	}
	return string(out)
}

// sortedRefs returns object refs in ascending order, for deterministic
// iteration in queries.
func sortedRefs(refs []host.ObjectRef) []host.ObjectRef {
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

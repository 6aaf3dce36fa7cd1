package hprofhost

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// reader provides buffered big-endian reading of HPROF binary data.
type reader struct {
	r      *bufio.Reader
	idSize int
	buf    []byte
}

func newReader(r io.Reader) *reader {
	return &reader{
		r:      bufio.NewReaderSize(r, 64*1024),
		idSize: 8,
		buf:    make([]byte, 8),
	}
}

// readHeader reads the file header and records the identifier size for
// all subsequent readID calls.
func (r *reader) readHeader() (*Header, error) {
	format, err := r.readNullTerminatedString()
	if err != nil {
		return nil, fmt.Errorf("failed to read format string: %w", err)
	}

	idSize, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read ID size: %w", err)
	}
	if idSize != 4 && idSize != 8 {
		return nil, fmt.Errorf("unsupported identifier size: %d", idSize)
	}
	r.idSize = int(idSize)

	timestamp, err := r.readUint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}

	return &Header{
		Format:    format,
		IDSize:    int(idSize),
		Timestamp: time.UnixMilli(int64(timestamp)),
	}, nil
}

// readRecordHeader reads a top-level record header: tag, time delta and
// body length.
func (r *reader) readRecordHeader() (tag recordTag, length uint32, err error) {
	tagByte, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	if _, err := r.readUint32(); err != nil { // time delta, unused
		return 0, 0, err
	}
	length, err = r.readUint32()
	if err != nil {
		return 0, 0, err
	}
	return recordTag(tagByte), length, nil
}

func (r *reader) readByte() (byte, error) {
	return r.r.ReadByte()
}

func (r *reader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := io.ReadFull(r.r, buf)
	return buf, err
}

func (r *reader) readUint16() (uint16, error) {
	if _, err := io.ReadFull(r.r, r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

func (r *reader) readUint32() (uint32, error) {
	if _, err := io.ReadFull(r.r, r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

func (r *reader) readUint64() (uint64, error) {
	if _, err := io.ReadFull(r.r, r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.buf[:8]), nil
}

// readID reads an object identifier whose width comes from the header.
func (r *reader) readID() (uint64, error) {
	if r.idSize == 4 {
		v, err := r.readUint32()
		return uint64(v), err
	}
	return r.readUint64()
}

func (r *reader) skip(n int64) error {
	_, err := r.r.Discard(int(n))
	return err
}

func (r *reader) readNullTerminatedString() (string, error) {
	var result []byte
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		result = append(result, b)
	}
	return string(result), nil
}

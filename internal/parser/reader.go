package parser

import (
	"encoding/binary"
	"errors"
)

var errShortBuffer = errors.New("unexpected end of instruction data")

// byteReader walks Borsh-encoded payloads. Every read is bounds-checked so a
// truncated instruction surfaces as an error instead of a panic.
type byteReader struct {
	buf    []byte
	offset int
}

func newByteReader(buf []byte, offset int) *byteReader {
	return &byteReader{buf: buf, offset: offset}
}

func (r *byteReader) u8() (byte, error) {
	if r.offset+1 > len(r.buf) {
		return 0, errShortBuffer
	}
	v := r.buf[r.offset]
	r.offset++
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.offset+4 > len(r.buf) {
		return 0, errShortBuffer
	}
	v := binary.LittleEndian.Uint32(r.buf[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.offset+8 > len(r.buf) {
		return 0, errShortBuffer
	}
	v := binary.LittleEndian.Uint64(r.buf[r.offset:])
	r.offset += 8
	return v, nil
}

func (r *byteReader) fixed(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.buf) {
		return nil, errShortBuffer
	}
	v := r.buf[r.offset : r.offset+n]
	r.offset += n
	return v, nil
}

// bytes reads a u32 length prefix then that many bytes.
func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.fixed(int(n))
}

// option consumes a 1-byte presence flag and, when set, runs read to skip or
// capture the wrapped value.
func (r *byteReader) option(read func() error) error {
	flag, err := r.u8()
	if err != nil {
		return err
	}
	if flag == 0 {
		return nil
	}
	return read()
}

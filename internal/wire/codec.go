// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the TTS byte codec and wire protocol.
//
// The byte codec is a set of pure functions over a moving cursor: fixed-width
// integers in big-endian (network) order, and length-prefixed byte strings.
// Everything above this file (packet.go) is built out of these primitives;
// nothing here knows about opcodes or framing.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is returned by any Reader method that would read past the
// end of the underlying buffer. The caller treats this as a protocol error:
// the frame is malformed and the connection must be closed without a
// response.
var ErrShortBuffer = errors.New("wire: short buffer")

// Writer accumulates an encoded packet body. The zero value is not usable;
// use NewWriter.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with a small pre-allocated backing array.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the accumulated bytes. The returned slice aliases the
// Writer's internal buffer and must not be retained across further writes.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) WriteU8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) WriteI8(v int8)    { w.WriteU8(uint8(v)) }

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

// WriteRaw appends b verbatim, with no length prefix.
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// WriteString8 writes a u8 length prefix followed by the string's bytes.
// The caller is responsible for ensuring len(s) <= 255; this is enforced by
// every call site in packet.go, which validates name/label lengths before
// encoding.
func (w *Writer) WriteString8(s string) {
	w.WriteU8(uint8(len(s)))
	w.WriteRaw([]byte(s))
}

// WriteString16 writes a u16 length prefix followed by the string's bytes.
func (w *Writer) WriteString16(s string) {
	w.WriteU16(uint16(len(s)))
	w.WriteRaw([]byte(s))
}

// WriteFloat64 writes v as IEEE-754 binary64, big-endian. This is the
// portable encoding chosen for point/result values; see DESIGN.md for the
// rationale.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteU64(math.Float64bits(v))
}

// WriteFloat32 writes v as IEEE-754 binary32, big-endian. Defined for
// completeness; unused by the current protocol.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteU32(math.Float32bits(v))
}

// Reader consumes a packet body left to right. All methods return
// ErrShortBuffer instead of panicking when the buffer is exhausted, so a
// caller can always fail the frame cleanly.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding. b is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadRaw returns the next n bytes verbatim. The returned slice aliases the
// Reader's backing array and must be copied by the caller if retained.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString8 reads a u8 length prefix then that many bytes, returned as a
// freshly allocated string decoupled from the input buffer, so callers can
// hold onto it past the buffer's lifetime.
func (r *Reader) ReadString8() (string, error) {
	n, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	b, err := r.ReadRaw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadString16 reads a u16 length prefix then that many bytes.
func (r *Reader) ReadString16() (string, error) {
	n, err := r.ReadU16()
	if err != nil {
		return "", err
	}
	b, err := r.ReadRaw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadFloat64 reads an IEEE-754 binary64, big-endian.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadFloat32 reads an IEEE-754 binary32, big-endian. Unused by the current
// protocol; kept alongside WriteFloat32 for symmetry.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"strconv"
)

// Pack and Unpack implement a small composite format-string language: a
// format string of {b,B,h,H,i,I,q,Q,s} characters, each consuming one
// positional argument. A numeric prefix before 's' caps the
// string length Unpack will accept (it has no effect on Pack beyond
// recording the intended width). This mini-language sits on top of
// Writer/Reader; it exists for callers that build a format ad hoc (in this
// codebase only the tests call it) rather than for the header byte and
// the fixed-layout opcode bodies in packet.go, which call Writer/Reader
// methods directly because their layouts are static and benefit from
// compile-time field names.
func Pack(format string, args ...interface{}) ([]byte, error) {
	w := NewWriter()
	ai := 0
	next := func() (interface{}, error) {
		if ai >= len(args) {
			return nil, fmt.Errorf("wire: pack: not enough arguments for format %q", format)
		}
		v := args[ai]
		ai++
		return v, nil
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		// skip a numeric prefix (max-length annotation); it carries no
		// weight for Pack, only for Unpack's 's' handling.
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		if i >= len(format) {
			break
		}
		c = format[i]
		v, err := next()
		if err != nil {
			return nil, err
		}
		switch c {
		case 'b':
			w.WriteI8(int8(toInt64(v)))
		case 'B':
			w.WriteU8(uint8(toInt64(v)))
		case 'h':
			w.WriteI16(int16(toInt64(v)))
		case 'H':
			w.WriteU16(uint16(toInt64(v)))
		case 'i':
			w.WriteI32(int32(toInt64(v)))
		case 'I':
			w.WriteU32(uint32(toInt64(v)))
		case 'q':
			w.WriteI64(toInt64(v))
		case 'Q':
			w.WriteU64(uint64(toInt64(v)))
		case 's':
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("wire: pack: format 's' needs a string, got %T", v)
			}
			w.WriteString8(s)
		default:
			return nil, fmt.Errorf("wire: pack: unknown format character %q", c)
		}
	}
	return w.Bytes(), nil
}

// Unpack decodes buf according to format, returning one value per format
// character in the same order. A numeric prefix on 's' caps the accepted
// string length; strings longer than the cap are a decode error.
func Unpack(format string, buf []byte) ([]interface{}, error) {
	r := NewReader(buf)
	out := make([]interface{}, 0, len(format))

	for i := 0; i < len(format); i++ {
		maxLen := -1
		start := i
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		if i > start {
			n, _ := strconv.Atoi(format[start:i])
			maxLen = n
		}
		if i >= len(format) {
			break
		}
		c := format[i]
		switch c {
		case 'b':
			v, err := r.ReadI8()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 'B':
			v, err := r.ReadU8()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 'h':
			v, err := r.ReadI16()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 'H':
			v, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 'i':
			v, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 'I':
			v, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 'q':
			v, err := r.ReadI64()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 'Q':
			v, err := r.ReadU64()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case 's':
			s, err := r.ReadString8()
			if err != nil {
				return nil, err
			}
			if maxLen >= 0 && len(s) > maxLen {
				return nil, fmt.Errorf("wire: unpack: string longer than format cap %d", maxLen)
			}
			out = append(out, s)
		default:
			return nil, fmt.Errorf("wire: unpack: unknown format character %q", c)
		}
	}
	return out, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file implements the TTS protocol codec: the header byte, the 5-byte
// frame prefix, and the per-opcode body layouts.
//
// Packet is a tagged sum type: Body is an interface with one concrete
// variant per opcode (CreateTS, DeleteTS, AddPoints, Query, QueryResponse,
// Ack, plus Unknown for opcodes outside 0..5). Dispatch is by type switch in
// internal/handlers, whose default case panics at run time on an unhandled
// body type (Go does not check type switches for exhaustiveness) —
// deliberately avoiding an opcode->func-pointer table.
package wire

import (
	"errors"
	"fmt"
)

// Opcode identifies a packet's body layout.
type Opcode uint8

const (
	OpCreateTS      Opcode = 0
	OpDeleteTS      Opcode = 1
	OpAddPoints     Opcode = 2
	OpQuery         Opcode = 3
	OpQueryResponse Opcode = 4
	OpAck           Opcode = 5
)

func (o Opcode) String() string {
	switch o {
	case OpCreateTS:
		return "CREATE_TS"
	case OpDeleteTS:
		return "DELETE_TS"
	case OpAddPoints:
		return "ADDPOINTS"
	case OpQuery:
		return "QUERY"
	case OpQueryResponse:
		return "QUERY_RESPONSE"
	case OpAck:
		return "ACK"
	default:
		return fmt.Sprintf("OPCODE(%d)", uint8(o))
	}
}

// FrameType is the header byte's bit 7: request or response.
type FrameType uint8

const (
	Request  FrameType = 0
	Response FrameType = 1
)

// Status is the header byte's bits 2-1, meaningful only on responses.
type Status uint8

const (
	StatusOK         Status = 0
	StatusENOTS      Status = 1 // series not found, OR (CREATE only) already exists — see DESIGN.md open question 1
	StatusUnknownCmd Status = 2
	StatusEOOM       Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusENOTS:
		return "ENOTS"
	case StatusUnknownCmd:
		return "UNKNOWN_CMD"
	case StatusEOOM:
		return "EOOM"
	default:
		return fmt.Sprintf("STATUS(%d)", uint8(s))
	}
}

// Header bit layout, exposed as typed accessors with explicit shift/mask
// constants rather than raw punning.
const (
	headerTypeShift   = 7
	headerOpcodeShift = 3
	headerOpcodeMask  = 0x0F
	headerStatusShift = 1
	headerStatusMask  = 0x03
)

func encodeHeader(t FrameType, op Opcode, st Status) byte {
	return byte(t)<<headerTypeShift |
		byte(op&headerOpcodeMask)<<headerOpcodeShift |
		byte(st&headerStatusMask)<<headerStatusShift
}

func decodeHeader(b byte) (FrameType, Opcode, Status) {
	t := FrameType((b >> headerTypeShift) & 0x01)
	op := Opcode((b >> headerOpcodeShift) & headerOpcodeMask)
	st := Status((b >> headerStatusShift) & headerStatusMask)
	return t, op, st
}

// HeaderSize is the fixed header+length prefix every frame carries.
const HeaderSize = 5

// ErrFrameTooLarge is returned by Encode if a body would not fit in the
// protocol's u32 length field (it always will in practice; this guards
// against a pathological caller).
var ErrFrameTooLarge = errors.New("wire: encoded body exceeds u32 length field")

// Label is a (name, value) string pair attached to a point or result.
type Label struct {
	Name  string
	Value string
}

// Body is implemented by exactly one type per opcode.
type Body interface {
	Opcode() Opcode
}

// CreateTS is the CREATE_TS request body.
type CreateTS struct {
	Name      string
	Retention uint32
}

func (CreateTS) Opcode() Opcode { return OpCreateTS }

// DeleteTS is the DELETE_TS request body.
type DeleteTS struct {
	Name string
}

func (DeleteTS) Opcode() Opcode { return OpDeleteTS }

// Point is one sample within an ADDPOINTS request.
type Point struct {
	TsSecSet  bool
	TsNsecSet bool
	TsSec     uint64
	TsNsec    uint64
	Value     float64
	Labels    []Label
}

// AddPoints is the ADDPOINTS request body.
type AddPoints struct {
	Name   string
	Points []Point
}

func (AddPoints) Opcode() Opcode { return OpAddPoints }

// QueryFlags are the QUERY body's flags byte bits.
type QueryFlags uint8

const (
	FlagMean    QueryFlags = 1 << 0
	FlagFirst   QueryFlags = 1 << 1
	FlagLast    QueryFlags = 1 << 2
	FlagMajorOf QueryFlags = 1 << 3
	FlagMinorOf QueryFlags = 1 << 4
)

func (f QueryFlags) Has(bit QueryFlags) bool { return f&bit != 0 }

// Query is the QUERY request body. MeanVal/MajorOf/MinorOf are only
// meaningful (and only present on the wire) when the corresponding flag bit
// is set.
type Query struct {
	Flags   QueryFlags
	Name    string
	MeanVal uint64
	MajorOf uint64
	MinorOf uint64
}

func (Query) Opcode() Opcode { return OpQuery }

// Result is one row of a QUERY_RESPONSE body.
type Result struct {
	RC     Status
	TsSec  uint64
	TsNsec uint64
	Value  float64
	Labels []Label
}

// QueryResponse is the QUERY_RESPONSE body.
type QueryResponse struct {
	Results []Result
}

func (QueryResponse) Opcode() Opcode { return OpQueryResponse }

// Ack is the empty ACK body; the outcome lives entirely in the header's
// status bits.
type Ack struct{}

func (Ack) Opcode() Opcode { return OpAck }

// Unknown carries the raw body of a frame whose opcode isn't one of the six
// defined ones. The frame still decodes successfully (the 5-byte prefix
// already told the reader how many body bytes to consume); only the
// opcode-specific interpretation fails. Handlers respond UNKNOWN_CMD without
// closing the connection.
type Unknown struct {
	Raw  []byte
	code Opcode
}

func (u Unknown) Opcode() Opcode { return u.code }

// Packet is one frame: a type (request/response), a status (meaningful on
// responses), and a body whose concrete type determines its opcode.
type Packet struct {
	Type   FrameType
	Status Status
	Body   Body
}

// Encode serializes p into a complete frame: header, length prefix, body.
// The length is computed after the body is encoded and patched into the
// 5-byte prefix afterward.
func Encode(p Packet) ([]byte, error) {
	bodyBytes, err := encodeBody(p.Body)
	if err != nil {
		return nil, err
	}
	if uint64(len(bodyBytes)) > 0xFFFFFFFF {
		return nil, ErrFrameTooLarge
	}

	w := NewWriter()
	w.WriteU8(encodeHeader(p.Type, p.Body.Opcode(), p.Status))
	w.WriteU32(uint32(len(bodyBytes)))
	w.WriteRaw(bodyBytes)
	return w.Bytes(), nil
}

func encodeBody(body Body) ([]byte, error) {
	w := NewWriter()
	switch b := body.(type) {
	case CreateTS:
		if len(b.Name) > 255 {
			return nil, fmt.Errorf("wire: CREATE_TS name too long (%d bytes)", len(b.Name))
		}
		w.WriteString8(b.Name)
		w.WriteU32(b.Retention)
	case DeleteTS:
		if len(b.Name) > 255 {
			return nil, fmt.Errorf("wire: DELETE_TS name too long (%d bytes)", len(b.Name))
		}
		w.WriteString8(b.Name)
	case AddPoints:
		if len(b.Name) > 255 {
			return nil, fmt.Errorf("wire: ADDPOINTS name too long (%d bytes)", len(b.Name))
		}
		if len(b.Points) > 0xFFFF {
			return nil, fmt.Errorf("wire: ADDPOINTS too many points (%d)", len(b.Points))
		}
		w.WriteString8(b.Name)
		w.WriteU16(uint16(len(b.Points)))
		for _, pt := range b.Points {
			if err := encodePoint(w, pt); err != nil {
				return nil, err
			}
		}
	case Query:
		if len(b.Name) > 255 {
			return nil, fmt.Errorf("wire: QUERY name too long (%d bytes)", len(b.Name))
		}
		w.WriteU8(uint8(b.Flags))
		w.WriteString8(b.Name)
		if b.Flags.Has(FlagMean) {
			w.WriteU64(b.MeanVal)
		}
		if b.Flags.Has(FlagMajorOf) {
			w.WriteU64(b.MajorOf)
		}
		if b.Flags.Has(FlagMinorOf) {
			w.WriteU64(b.MinorOf)
		}
	case QueryResponse:
		w.WriteU64(uint64(len(b.Results)))
		for _, res := range b.Results {
			w.WriteU8(uint8(res.RC))
			w.WriteU64(res.TsSec)
			w.WriteU64(res.TsNsec)
			w.WriteFloat64(res.Value)
			if err := encodeLabels(w, res.Labels); err != nil {
				return nil, err
			}
		}
	case Ack:
		// empty body
	case Unknown:
		w.WriteRaw(b.Raw)
	default:
		return nil, fmt.Errorf("wire: encode: unhandled body type %T", body)
	}
	return w.Bytes(), nil
}

func encodePoint(w *Writer, pt Point) error {
	var flags uint8
	if pt.TsSecSet {
		flags |= 1 << 0
	}
	if pt.TsNsecSet {
		flags |= 1 << 1
	}
	w.WriteU8(flags)
	if pt.TsSecSet {
		w.WriteU64(pt.TsSec)
	}
	if pt.TsNsecSet {
		w.WriteU64(pt.TsNsec)
	}
	w.WriteFloat64(pt.Value)
	return encodeLabels(w, pt.Labels)
}

func encodeLabels(w *Writer, labels []Label) error {
	if len(labels) > 0xFFFF {
		return fmt.Errorf("wire: too many labels (%d)", len(labels))
	}
	w.WriteU16(uint16(len(labels)))
	for _, l := range labels {
		if len(l.Name) > 0xFFFF || len(l.Value) > 0xFFFF {
			return fmt.Errorf("wire: label too long")
		}
		w.WriteString16(l.Name)
		w.WriteString16(l.Value)
	}
	return nil
}

// DecodeHeader parses the header byte and the u32 length that follows it
// out of a 5-byte prefix already read off the wire by the framer
// (internal/server). It never fails: every byte pattern is a valid header.
func DecodeHeader(prefix [HeaderSize]byte) (t FrameType, op Opcode, st Status, bodyLen uint32) {
	t, op, st = decodeHeader(prefix[0])
	bodyLen = uint32(prefix[1])<<24 | uint32(prefix[2])<<16 | uint32(prefix[3])<<8 | uint32(prefix[4])
	return
}

// Decode parses a complete body given the opcode and status already taken
// from the header. It never reads past len(body); trailing bytes are
// ignored only in the sense that the framer already bounded body to exactly
// the declared length; any ErrShortBuffer here means the declared length
// was itself too small for the opcode's fixed fields and the frame is
// malformed.
func Decode(t FrameType, op Opcode, st Status, body []byte) (Packet, error) {
	r := NewReader(body)
	var b Body
	var err error

	switch op {
	case OpCreateTS:
		b, err = decodeCreateTS(r)
	case OpDeleteTS:
		b, err = decodeDeleteTS(r)
	case OpAddPoints:
		b, err = decodeAddPoints(r)
	case OpQuery:
		b, err = decodeQuery(r)
	case OpQueryResponse:
		b, err = decodeQueryResponse(r)
	case OpAck:
		b = Ack{}
	default:
		raw := make([]byte, len(body))
		copy(raw, body)
		b = Unknown{Raw: raw, code: op}
	}
	if err != nil {
		return Packet{}, fmt.Errorf("wire: decode %s body: %w", op, err)
	}
	return Packet{Type: t, Status: st, Body: b}, nil
}

func decodeCreateTS(r *Reader) (Body, error) {
	name, err := r.ReadString8()
	if err != nil {
		return nil, err
	}
	retention, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return CreateTS{Name: name, Retention: retention}, nil
}

func decodeDeleteTS(r *Reader) (Body, error) {
	name, err := r.ReadString8()
	if err != nil {
		return nil, err
	}
	return DeleteTS{Name: name}, nil
}

func decodeAddPoints(r *Reader) (Body, error) {
	name, err := r.ReadString8()
	if err != nil {
		return nil, err
	}
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, n)
	for i := uint16(0); i < n; i++ {
		pt, err := decodePoint(r)
		if err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	return AddPoints{Name: name, Points: points}, nil
}

func decodePoint(r *Reader) (Point, error) {
	flags, err := r.ReadU8()
	if err != nil {
		return Point{}, err
	}
	pt := Point{
		TsSecSet:  flags&(1<<0) != 0,
		TsNsecSet: flags&(1<<1) != 0,
	}
	if pt.TsSecSet {
		if pt.TsSec, err = r.ReadU64(); err != nil {
			return Point{}, err
		}
	}
	if pt.TsNsecSet {
		if pt.TsNsec, err = r.ReadU64(); err != nil {
			return Point{}, err
		}
	}
	if pt.Value, err = r.ReadFloat64(); err != nil {
		return Point{}, err
	}
	if pt.Labels, err = decodeLabels(r); err != nil {
		return Point{}, err
	}
	return pt, nil
}

func decodeLabels(r *Reader) ([]Label, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	labels := make([]Label, 0, n)
	for i := uint16(0); i < n; i++ {
		name, err := r.ReadString16()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadString16()
		if err != nil {
			return nil, err
		}
		labels = append(labels, Label{Name: name, Value: value})
	}
	return labels, nil
}

func decodeQuery(r *Reader) (Body, error) {
	flagsByte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	flags := QueryFlags(flagsByte)
	name, err := r.ReadString8()
	if err != nil {
		return nil, err
	}
	q := Query{Flags: flags, Name: name}
	if flags.Has(FlagMean) {
		if q.MeanVal, err = r.ReadU64(); err != nil {
			return nil, err
		}
	}
	if flags.Has(FlagMajorOf) {
		if q.MajorOf, err = r.ReadU64(); err != nil {
			return nil, err
		}
	}
	if flags.Has(FlagMinorOf) {
		if q.MinorOf, err = r.ReadU64(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func decodeQueryResponse(r *Reader) (Body, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, n)
	for i := uint64(0); i < n; i++ {
		rc, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		tsSec, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		tsNsec, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		value, err := r.ReadFloat64()
		if err != nil {
			return nil, err
		}
		labels, err := decodeLabels(r)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			RC:     Status(rc),
			TsSec:  tsSec,
			TsNsec: tsNsec,
			Value:  value,
			Labels: labels,
		})
	}
	return QueryResponse{Results: results}, nil
}

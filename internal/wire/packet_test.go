// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()
	encoded, err := Encode(p)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(encoded), HeaderSize)

	var prefix [HeaderSize]byte
	copy(prefix[:], encoded[:HeaderSize])
	frameType, opcode, status, bodyLen := DecodeHeader(prefix)
	require.Equal(t, int(bodyLen), len(encoded)-HeaderSize)

	decoded, err := Decode(frameType, opcode, status, encoded[HeaderSize:])
	require.NoError(t, err)
	return decoded
}

func TestCreateTSRoundTrip(t *testing.T) {
	p := Packet{Type: Request, Body: CreateTS{Name: "metrics", Retention: 3600}}
	got := roundTrip(t, p)
	require.Equal(t, Request, got.Type)
	require.Equal(t, CreateTS{Name: "metrics", Retention: 3600}, got.Body)
}

func TestDeleteTSRoundTrip(t *testing.T) {
	p := Packet{Type: Request, Body: DeleteTS{Name: "metrics"}}
	got := roundTrip(t, p)
	require.Equal(t, DeleteTS{Name: "metrics"}, got.Body)
}

func TestAddPointsRoundTripBody(t *testing.T) {
	p := Packet{Type: Request, Body: AddPoints{
		Name: "temp",
		Points: []Point{
			{TsSecSet: true, TsNsecSet: true, TsSec: 1700000000, TsNsec: 0, Value: 21.5,
				Labels: []Label{{Name: "room", Value: "kitchen"}}},
			{Value: 0.4},
		},
	}}
	got := roundTrip(t, p)
	body, ok := got.Body.(AddPoints)
	require.True(t, ok)
	require.Equal(t, "temp", body.Name)
	require.Len(t, body.Points, 2)
	require.True(t, body.Points[0].TsSecSet)
	require.Equal(t, uint64(1700000000), body.Points[0].TsSec)
	require.Equal(t, 21.5, body.Points[0].Value)
	require.Equal(t, []Label{{Name: "room", Value: "kitchen"}}, body.Points[0].Labels)
	require.False(t, body.Points[1].TsSecSet)
}

func TestQueryRoundTripAllFlags(t *testing.T) {
	p := Packet{Type: Request, Body: Query{
		Flags:   FlagMean | FlagMajorOf | FlagMinorOf,
		Name:    "cpu",
		MeanVal: 60000,
		MajorOf: 1000,
		MinorOf: 2000,
	}}
	got := roundTrip(t, p).Body.(Query)
	require.Equal(t, FlagMean|FlagMajorOf|FlagMinorOf, got.Flags)
	require.Equal(t, uint64(60000), got.MeanVal)
	require.Equal(t, uint64(1000), got.MajorOf)
	require.Equal(t, uint64(2000), got.MinorOf)
}

func TestQueryRoundTripNoFlags(t *testing.T) {
	p := Packet{Type: Request, Body: Query{Name: "cpu"}}
	got := roundTrip(t, p).Body.(Query)
	require.Zero(t, got.Flags)
	require.Zero(t, got.MeanVal)
}

func TestQueryResponseRoundTrip(t *testing.T) {
	p := Packet{Type: Response, Status: StatusOK, Body: QueryResponse{
		Results: []Result{
			{RC: StatusOK, TsSec: 1700000000, TsNsec: 0, Value: 21.5, Labels: []Label{{Name: "room", Value: "kitchen"}}},
		},
	}}
	got := roundTrip(t, p)
	require.Equal(t, StatusOK, got.Status)
	body := got.Body.(QueryResponse)
	require.Len(t, body.Results, 1)
	require.Equal(t, 21.5, body.Results[0].Value)
}

func TestAckRoundTrip(t *testing.T) {
	p := Packet{Type: Response, Status: StatusENOTS, Body: Ack{}}
	got := roundTrip(t, p)
	require.Equal(t, StatusENOTS, got.Status)
	require.Equal(t, Ack{}, got.Body)
}

func TestUnknownOpcodeDecodesRatherThanErrors(t *testing.T) {
	// An opcode outside 0..5 still decodes successfully into Unknown; only
	// its opcode-specific interpretation is unavailable.
	got, err := Decode(Request, Opcode(9), StatusOK, []byte{0xDE, 0xAD})
	require.NoError(t, err)
	unknown, ok := got.Body.(Unknown)
	require.True(t, ok)
	require.Equal(t, []byte{0xDE, 0xAD}, unknown.Raw)
	require.Equal(t, Opcode(9), unknown.Opcode())
}

func TestCreateTSNameTooLong(t *testing.T) {
	name := make([]byte, 256)
	_, err := Encode(Packet{Type: Request, Body: CreateTS{Name: string(name)}})
	require.Error(t, err)
}

func TestDecodeTruncatedBodyIsProtocolError(t *testing.T) {
	// A CREATE_TS body with only a name and no retention bytes should fail.
	w := NewWriter()
	w.WriteString8("x")
	_, err := Decode(Request, OpCreateTS, StatusOK, w.Bytes())
	require.Error(t, err)
}

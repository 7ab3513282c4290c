// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package handlers adapts decoded wire.Packet requests into store.Database
// mutations/queries and builds the response wire.Packet. Handlers never
// touch a socket; internal/server owns framing and I/O and only calls
// Dispatch.
package handlers

import (
	"github.com/ClusterCockpit/tts/internal/store"
	"github.com/ClusterCockpit/tts/internal/wire"
)

// Dispatch handles one decoded request packet against db and returns the
// response packet to send back. It never panics on a well-formed Packet;
// the only way to reach the default case below is a decoder bug, which is a
// programming error worth a loud failure rather than a silent UNKNOWN_CMD.
func Dispatch(db *store.Database, req wire.Packet) wire.Packet {
	switch body := req.Body.(type) {
	case wire.CreateTS:
		return handleCreateTS(db, body)
	case wire.DeleteTS:
		return handleDeleteTS(db, body)
	case wire.AddPoints:
		return handleAddPoints(db, body)
	case wire.Query:
		return handleQuery(db, body)
	case wire.Unknown:
		return ack(wire.StatusUnknownCmd)
	default:
		panic("handlers: Dispatch: decoder produced an unhandled body type")
	}
}

func ack(status wire.Status) wire.Packet {
	return wire.Packet{Type: wire.Response, Status: status, Body: wire.Ack{}}
}

// handleCreateTS implements CREATE: the source reuses ENOTS to
// mean "already exists" on this opcode, and this implementation preserves
// that overloading bit-for-bit.
func handleCreateTS(db *store.Database, body wire.CreateTS) wire.Packet {
	if err := db.Create(body.Name, body.Retention); err != nil {
		return ack(wire.StatusENOTS)
	}
	return ack(wire.StatusOK)
}

func handleDeleteTS(db *store.Database, body wire.DeleteTS) wire.Packet {
	if err := db.Delete(body.Name); err != nil {
		return ack(wire.StatusENOTS)
	}
	return ack(wire.StatusOK)
}

func handleAddPoints(db *store.Database, body wire.AddPoints) wire.Packet {
	points := make([]store.PointInput, len(body.Points))
	for i, p := range body.Points {
		points[i] = store.PointInput{
			TsSecSet:  p.TsSecSet,
			TsNsecSet: p.TsNsecSet,
			TsSec:     p.TsSec,
			TsNsec:    p.TsNsec,
			Value:     p.Value,
			Labels:    toStoreLabels(p.Labels),
		}
	}
	db.AddPoints(body.Name, points)
	return ack(wire.StatusOK)
}

func handleQuery(db *store.Database, body wire.Query) wire.Packet {
	ts, ok := db.Get(body.Name)
	if !ok {
		return wire.Packet{Type: wire.Response, Status: wire.StatusENOTS, Body: wire.QueryResponse{}}
	}

	spec := store.QuerySpec{
		Flags:   store.QueryFlags(body.Flags),
		MeanVal: body.MeanVal,
		MajorOf: body.MajorOf,
		MinorOf: body.MinorOf,
	}
	results := store.Query(ts, spec)

	wireResults := make([]wire.Result, len(results))
	for i, r := range results {
		wireResults[i] = wire.Result{
			RC:     wire.StatusOK,
			TsSec:  r.TsSec,
			TsNsec: r.TsNsec,
			Value:  r.Value,
			Labels: toWireLabels(r.Labels),
		}
	}
	return wire.Packet{Type: wire.Response, Status: wire.StatusOK, Body: wire.QueryResponse{Results: wireResults}}
}

func toStoreLabels(in []wire.Label) []store.Label {
	if in == nil {
		return nil
	}
	out := make([]store.Label, len(in))
	for i, l := range in {
		out[i] = store.Label{Name: l.Name, Value: l.Value}
	}
	return out
}

func toWireLabels(in []store.Label) []wire.Label {
	if in == nil {
		return nil
	}
	out := make([]wire.Label, len(in))
	for i, l := range in {
		out[i] = wire.Label{Name: l.Name, Value: l.Value}
	}
	return out
}

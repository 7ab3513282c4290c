// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/tts/internal/store"
	"github.com/ClusterCockpit/tts/internal/wire"
)

func TestDispatchCreateTS(t *testing.T) {
	db := store.NewDatabase()
	resp := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.CreateTS{Name: "metrics", Retention: 60}})
	require.Equal(t, wire.StatusOK, resp.Status)
	require.IsType(t, wire.Ack{}, resp.Body)
}

func TestDispatchCreateTSDuplicateReturnsENOTS(t *testing.T) {
	db := store.NewDatabase()
	Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.CreateTS{Name: "metrics"}})
	resp := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.CreateTS{Name: "metrics"}})
	require.Equal(t, wire.StatusENOTS, resp.Status)
}

func TestDispatchDeleteTSMissingReturnsENOTS(t *testing.T) {
	db := store.NewDatabase()
	resp := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.DeleteTS{Name: "missing"}})
	require.Equal(t, wire.StatusENOTS, resp.Status)
}

func TestDispatchDeleteTSThenQueryIsGone(t *testing.T) {
	db := store.NewDatabase()
	Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.CreateTS{Name: "metrics"}})
	del := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.DeleteTS{Name: "metrics"}})
	require.Equal(t, wire.StatusOK, del.Status)

	q := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.Query{Name: "metrics"}})
	require.Equal(t, wire.StatusENOTS, q.Status)
}

func TestDispatchAddPointsAutoCreatesAndRoundTripsLabels(t *testing.T) {
	db := store.NewDatabase()
	add := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.AddPoints{
		Name: "temp",
		Points: []wire.Point{
			{TsSecSet: true, TsNsecSet: true, TsSec: 1700000000, Value: 21.5,
				Labels: []wire.Label{{Name: "room", Value: "kitchen"}}},
		},
	}})
	require.Equal(t, wire.StatusOK, add.Status)

	resp := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.Query{Name: "temp"}})
	require.Equal(t, wire.StatusOK, resp.Status)
	qr := resp.Body.(wire.QueryResponse)
	require.Len(t, qr.Results, 1)
	require.Equal(t, uint64(1700000000), qr.Results[0].TsSec)
	require.InDelta(t, 21.5, qr.Results[0].Value, 1e-9)
	require.Equal(t, []wire.Label{{Name: "room", Value: "kitchen"}}, qr.Results[0].Labels)
}

func TestDispatchQueryUnknownSeriesReturnsENOTSWithEmptyResults(t *testing.T) {
	db := store.NewDatabase()
	resp := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.Query{Name: "missing"}})
	require.Equal(t, wire.StatusENOTS, resp.Status)
	qr := resp.Body.(wire.QueryResponse)
	require.Empty(t, qr.Results)
}

func TestDispatchQueryMeanFlagTranslatesToStoreFlags(t *testing.T) {
	db := store.NewDatabase()
	Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.AddPoints{
		Name:   "cpu",
		Points: []wire.Point{{TsSecSet: true, TsNsecSet: true, TsSec: 1, Value: 0.4}},
	}})
	Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.AddPoints{
		Name:   "cpu",
		Points: []wire.Point{{TsSecSet: true, TsNsecSet: true, TsSec: 1, Value: 0.6}},
	}})

	resp := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.Query{
		Name: "cpu", Flags: wire.FlagMean, MeanVal: 60000,
	}})
	qr := resp.Body.(wire.QueryResponse)
	require.Len(t, qr.Results, 1)
	require.InDelta(t, 0.5, qr.Results[0].Value, 1e-9)
}

func TestDispatchUnknownBodyReturnsUnknownCmdStatus(t *testing.T) {
	db := store.NewDatabase()
	resp := Dispatch(db, wire.Packet{Type: wire.Request, Body: wire.Unknown{Raw: []byte{1, 2, 3}}})
	require.Equal(t, wire.StatusUnknownCmd, resp.Status)
	require.Equal(t, wire.Ack{}, resp.Body)
}

// bogusBody implements wire.Body but is never a real opcode's decoded
// type, to exercise Dispatch's exhaustiveness-guarding default case.
type bogusBody struct{}

func (bogusBody) Opcode() wire.Opcode { return wire.Opcode(0x0F) }

func TestDispatchPanicsOnUnhandledBodyType(t *testing.T) {
	db := store.NewDatabase()
	require.Panics(t, func() {
		Dispatch(db, wire.Packet{Type: wire.Request, Body: bogusBody{}})
	})
}

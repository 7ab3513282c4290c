// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateThenDuplicateCreate(t *testing.T) {
	db := NewDatabase()
	require.NoError(t, db.Create("metrics", 0))
	require.ErrorIs(t, db.Create("metrics", 0), ErrAlreadyExists)
}

func TestDeleteUnknownSeries(t *testing.T) {
	db := NewDatabase()
	require.ErrorIs(t, db.Delete("missing"), ErrNotFound)
}

func TestDeleteThenDeleteAgain(t *testing.T) {
	db := NewDatabase()
	require.NoError(t, db.Create("metrics", 0))
	require.NoError(t, db.Delete("metrics"))
	require.ErrorIs(t, db.Delete("metrics"), ErrNotFound)
}

func TestAddPointsAutoCreatesSeries(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("temp", []PointInput{
		{TsSecSet: true, TsNsecSet: true, TsSec: 1700000000, Value: 21.5,
			Labels: []Label{{Name: "room", Value: "kitchen"}}},
	})

	ts, ok := db.Get("temp")
	require.True(t, ok)
	require.Equal(t, 1, ts.Len())
	require.Equal(t, uint64(1700000000*1_000_000_000), ts.Timestamps[0])
	require.Equal(t, 21.5, ts.Records[0].Value)
}

func TestAddPointsWallClockSubstitution(t *testing.T) {
	db := NewDatabase()
	db.SetClock(func() (uint64, uint64) { return 42, 7 })

	db.AddPoints("cpu", []PointInput{{Value: 0.4}})

	ts, _ := db.Get("cpu")
	require.Equal(t, uint64(42*1_000_000_000+7), ts.Timestamps[0])
}

func TestAddPointsKeepsOutOfOrderInsertsSorted(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("ts", []PointInput{
		{TsSecSet: true, TsNsecSet: true, TsSec: 3, Value: 3},
		{TsSecSet: true, TsNsecSet: true, TsSec: 1, Value: 1},
		{TsSecSet: true, TsNsecSet: true, TsSec: 2, Value: 2},
	})

	ts, _ := db.Get("ts")
	require.Equal(t, []uint64{
		1 * 1_000_000_000,
		2 * 1_000_000_000,
		3 * 1_000_000_000,
	}, ts.Timestamps)
	require.Equal(t, []float64{1, 2, 3}, []float64{ts.Records[0].Value, ts.Records[1].Value, ts.Records[2].Value})
}

func TestTagIndexCardinality(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("x", []PointInput{
		{TsSecSet: true, TsNsecSet: true, TsSec: 1, Value: 1, Labels: []Label{{Name: "label", Value: "a"}}},
		{TsSecSet: true, TsNsecSet: true, TsSec: 2, Value: 2, Labels: []Label{{Name: "label", Value: "b"}}},
	})

	ts, _ := db.Get("x")
	require.Len(t, ts.Tags["label"]["a"], 1)
	require.Len(t, ts.Tags["label"]["b"], 1)
	require.Equal(t, 1.0, ts.Tags["label"]["a"][0].Value)
}

func TestRecordLabelsAreDeepCopied(t *testing.T) {
	db := NewDatabase()
	labels := []Label{{Name: "a", Value: "1"}}
	db.AddPoints("x", []PointInput{{TsSecSet: true, TsNsecSet: true, TsSec: 1, Value: 1, Labels: labels}})

	labels[0].Value = "mutated"

	ts, _ := db.Get("x")
	require.Equal(t, "1", ts.Records[0].Labels[0].Value)
}

// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryFullScanReturnsPointWithLabels(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("temp", []PointInput{
		{TsSecSet: true, TsNsecSet: true, TsSec: 1700000000, Value: 21.5,
			Labels: []Label{{Name: "room", Value: "kitchen"}}},
	})
	ts, _ := db.Get("temp")

	results := Query(ts, QuerySpec{})
	require.Len(t, results, 1)
	require.Equal(t, uint64(1700000000), results[0].TsSec)
	require.Equal(t, uint64(0), results[0].TsNsec)
	require.InDelta(t, 21.5, results[0].Value, 1e-9)
	require.Equal(t, []Label{{Name: "room", Value: "kitchen"}}, results[0].Labels)
}

func TestQueryMeanFullSeriesSingleWindow(t *testing.T) {
	db := NewDatabase()
	db.SetClock(func() (uint64, uint64) { return 100, 0 })
	db.AddPoints("cpu", []PointInput{{Value: 0.4}})
	db.AddPoints("cpu", []PointInput{{Value: 0.6}})
	ts, _ := db.Get("cpu")

	results := Query(ts, QuerySpec{Flags: FlagMean, MeanVal: 60000})
	require.Len(t, results, 1)
	require.InDelta(t, 0.5, results[0].Value, 1e-9)
}

func TestQueryRangeReturnsOnlyPointInsideBounds(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("ts", []PointInput{
		{TsSecSet: true, TsNsecSet: true, TsSec: 1000, Value: 1},
		{TsSecSet: true, TsNsecSet: true, TsSec: 2000, Value: 2},
		{TsSecSet: true, TsNsecSet: true, TsSec: 3000, Value: 3},
	})
	ts, _ := db.Get("ts")

	results := Query(ts, QuerySpec{
		Flags:   FlagMajorOf | FlagMinorOf,
		MajorOf: 1500 * 1_000_000_000,
		MinorOf: 2500 * 1_000_000_000,
	})
	require.Len(t, results, 1)
	require.InDelta(t, 2, results[0].Value, 1e-9)
}

func TestQueryFirstAndLast(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("ts", []PointInput{
		{TsSecSet: true, TsNsecSet: true, TsSec: 1, Value: 1},
		{TsSecSet: true, TsNsecSet: true, TsSec: 2, Value: 2},
		{TsSecSet: true, TsNsecSet: true, TsSec: 3, Value: 3},
	})
	ts, _ := db.Get("ts")

	first := Query(ts, QuerySpec{Flags: FlagFirst})
	require.Len(t, first, 1)
	require.InDelta(t, 1, first[0].Value, 1e-9)

	last := Query(ts, QuerySpec{Flags: FlagLast})
	require.Len(t, last, 1)
	require.InDelta(t, 3, last[0].Value, 1e-9)
}

func TestQueryEmptySeriesReturnsNil(t *testing.T) {
	ts := newTimeSeries("empty", 0)
	require.Nil(t, Query(ts, QuerySpec{}))
	require.Nil(t, Query(ts, QuerySpec{Flags: FlagMean, MeanVal: 1000}))
}

func TestMeanWindowsZeroWidthDoesNotLoopForever(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("ts", []PointInput{{TsSecSet: true, TsNsecSet: true, TsSec: 1, Value: 1}})
	ts, _ := db.Get("ts")

	require.Nil(t, Query(ts, QuerySpec{Flags: FlagMean, MeanVal: 0}))
}

func TestMeanAnchoredSkipsEmptyWindows(t *testing.T) {
	db := NewDatabase()
	db.AddPoints("ts", []PointInput{
		{TsSecSet: true, TsNsecSet: true, TsSec: 0, Value: 1},
		{TsSecSet: true, TsNsecSet: true, TsSec: 100, Value: 5},
	})
	ts, _ := db.Get("ts")

	results := Query(ts, QuerySpec{
		Flags:   FlagMean | FlagMajorOf,
		MeanVal: 1000, // 1s windows
		MajorOf: 0,
	})
	// Only two non-empty windows out of the 101 visited (0s..100s), no NaNs.
	require.Len(t, results, 2)
	for _, r := range results {
		require.False(t, isNaN(r.Value))
	}
}

func isNaN(f float64) bool { return f != f }

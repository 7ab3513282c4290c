// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store implements the TTS in-memory time-series engine: the
// Database, its TimeSeries, the append-only Record sequence, the
// two-level label-tag index, and the query/aggregation algorithms over
// them (in query.go).
//
// A TimeSeries is not safe for concurrent mutation by design. The Database
// itself does guard its series map with a mutex, the way cc-backend's Level
// type guards its children map (pkg/metricstore's level.go) — cheap, and it
// lets store be exercised directly from tests and tools without routing
// every call through the single-dispatcher server.
package store

// Label is a (name, value) string pair attached to a point.
type Label struct {
	Name  string
	Value string
}

// Record is one appended data point. Created by Database.AddPoints, never mutated
// thereafter. Index is the 1-based ordinal the point had within its series
// at the time it was appended.
type Record struct {
	Value  float64
	Labels []Label
	Index  int
}

// TagIndex is the two-level label_name -> label_value -> records mapping.
// Entries are plain pointers into a TimeSeries's
// Records slice; they are non-owning in the sense that deleting the owning
// series (Database.Delete) drops the TagIndex and every Record reachable
// from it in one step, and Go's garbage collector reclaims the Records once
// nothing else references them. There is no separate teardown step to get
// wrong, unlike a manual-memory-management implementation with a
// generational arena and explicit free lists — here the runtime's GC plays
// the arena.
type TagIndex map[string]map[string][]*Record

func (t TagIndex) insert(label Label, rec *Record) {
	values := t[label.Name]
	if values == nil {
		values = make(map[string][]*Record)
		t[label.Name] = values
	}
	values[label.Value] = append(values[label.Value], rec)
}

// TimeSeries is a named, append-only sequence of (timestamp, Record) pairs.
type TimeSeries struct {
	Name      string
	Retention uint32 // advisory only; stored, never enforced

	Timestamps []uint64
	Records    []*Record
	Tags       TagIndex
}

func newTimeSeries(name string, retention uint32) *TimeSeries {
	return &TimeSeries{
		Name:      name,
		Retention: retention,
		Tags:      make(TagIndex),
	}
}

// Len returns the number of points currently stored.
func (ts *TimeSeries) Len() int { return len(ts.Timestamps) }

// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by Delete when a series name is unknown.
var ErrNotFound = errors.New("store: series not found")

// ErrAlreadyExists is returned by Create when the name is already taken.
// The wire protocol overloads a single status code (ENOTS) for both "not
// found" and "already exists"; handlers map both this error and ErrNotFound
// to wire.StatusENOTS, but store itself keeps them distinct so callers that
// don't speak the wire protocol (such as tests) see an unambiguous error.
var ErrAlreadyExists = errors.New("store: series already exists")

// Database is the top-level mapping from series name to TimeSeries. Series
// names are case-sensitive and unique. The Database owns every TimeSeries
// exclusively; TagIndex entries are non-owning pointers that die with their
// series (see TagIndex's doc comment in types.go).
type Database struct {
	mu     sync.RWMutex
	series map[string]*TimeSeries

	// now returns the wall-clock (seconds, nanoseconds) pair used to fill in
	// unset timestamp fields on append. Overridable so tests get
	// deterministic timestamps; defaults to the real clock.
	now func() (sec uint64, nsec uint64)
}

// NewDatabase returns an empty Database ready for use.
func NewDatabase() *Database {
	return &Database{
		series: make(map[string]*TimeSeries),
		now:    wallClock,
	}
}

func wallClock() (uint64, uint64) {
	t := time.Now()
	return uint64(t.Unix()), uint64(t.Nanosecond())
}

// SetClock overrides the wall-clock source used for timestamp defaulting.
// Exposed for tests; production callers never need it.
func (db *Database) SetClock(now func() (sec, nsec uint64)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// Create inserts a new, empty TimeSeries. Returns ErrAlreadyExists if name
// is already taken; the series is left untouched in that case.
func (db *Database) Create(name string, retention uint32) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.series[name]; ok {
		return ErrAlreadyExists
	}
	db.series[name] = newTimeSeries(name, retention)
	return nil
}

// Delete removes a series and everything reachable from it. Returns
// ErrNotFound if name is unknown.
func (db *Database) Delete(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.series[name]; !ok {
		return ErrNotFound
	}
	delete(db.series, name)
	return nil
}

// Get returns the named series, or nil, false if it doesn't exist. The
// returned pointer is only safe to read; mutating it outside of
// Database.AddPoints races with other holders of the Database.
func (db *Database) Get(name string) (*TimeSeries, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ts, ok := db.series[name]
	return ts, ok
}

// PointInput is a single point as decoded off the wire, decoupled from the
// wire package so store has no transport dependency.
type PointInput struct {
	TsSecSet  bool
	TsNsecSet bool
	TsSec     uint64
	TsNsec    uint64
	Value     float64
	Labels    []Label
}

// AddPoints appends each point in points, in order, to the named series. If
// the series doesn't exist it is auto-created with Retention 0. Each
// point's timestamp is computed as ts_sec*1e9 + ts_nsec, with wall-clock
// substitution for any unset field.
//
// Timestamps must stay non-decreasing for the range query's binary search
// to work. Rather than rejecting out-of-order points outright, AddPoints
// keeps Timestamps sorted by inserting each one at its correct position
// (O(log n) search, O(n) shift), so a client that appends
// slightly-reordered points (e.g. two producers racing on wall-clock
// timestamps) still gets correct range/mean queries instead of a silently
// broken index.
func (db *Database) AddPoints(name string, points []PointInput) {
	db.mu.Lock()
	defer db.mu.Unlock()

	ts, ok := db.series[name]
	if !ok {
		ts = newTimeSeries(name, 0)
		db.series[name] = ts
	}

	for _, p := range points {
		sec, nsec := p.TsSec, p.TsNsec
		if !p.TsSecSet || !p.TsNsecSet {
			wallSec, wallNsec := db.now()
			if !p.TsSecSet {
				sec = wallSec
			}
			if !p.TsNsecSet {
				nsec = wallNsec
			}
		}
		t := sec*1_000_000_000 + nsec

		pos := len(ts.Timestamps)
		if pos == 0 || t >= ts.Timestamps[pos-1] {
			// fast path: append is already in order, the overwhelmingly
			// common case.
		} else {
			pos = sort.Search(len(ts.Timestamps), func(i int) bool { return ts.Timestamps[i] > t })
		}

		rec := &Record{
			Value:  p.Value,
			Labels: append([]Label(nil), p.Labels...), // deep copy, step 3
			Index:  len(ts.Timestamps) + 1,
		}

		ts.Timestamps = insertUint64(ts.Timestamps, pos, t)
		ts.Records = insertRecord(ts.Records, pos, rec)

		for _, l := range rec.Labels {
			ts.Tags.insert(l, rec)
		}
	}
}

func insertUint64(s []uint64, pos int, v uint64) []uint64 {
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

func insertRecord(s []*Record, pos int, v *Record) []*Record {
	s = append(s, nil)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file implements the QUERY algorithms: full scan, first, last, range
// (binary search with tie expansion), mean over the whole series, and mean
// over a range (plain and anchored modes).
package store

import "sort"

// QueryFlags mirror wire.QueryFlags without importing the wire package;
// handlers translates between the two. Kept as a distinct type (rather than
// reusing wire.QueryFlags here) so store has no transport dependency, the
// same separation PointInput gives AddPoints.
type QueryFlags uint8

const (
	FlagMean QueryFlags = 1 << iota
	FlagFirst
	FlagLast
	FlagMajorOf
	FlagMinorOf
)

func (f QueryFlags) has(bit QueryFlags) bool { return f&bit != 0 }

// QuerySpec is a decoded QUERY request, store-side.
type QuerySpec struct {
	Flags   QueryFlags
	MeanVal uint64 // milliseconds; only meaningful if Flags.has(FlagMean)
	MajorOf uint64 // nanoseconds; lower bound / anchor
	MinorOf uint64 // nanoseconds; upper bound
}

// Result is one emitted row: a timestamp split into seconds/nanoseconds (to
// mirror the wire format 1:1), a value, and labels (empty for mean results).
type Result struct {
	TsSec  uint64
	TsNsec uint64
	Value  float64
	Labels []Label
}

func resultFrom(ts uint64, rec *Record) Result {
	return Result{
		TsSec:  ts / 1_000_000_000,
		TsNsec: ts % 1_000_000_000,
		Value:  rec.Value,
		Labels: rec.Labels,
	}
}

func meanResult(ts uint64, value float64) Result {
	return Result{TsSec: ts / 1_000_000_000, TsNsec: ts % 1_000_000_000, Value: value}
}

// Query evaluates spec against ts and returns the ordered results.
func Query(ts *TimeSeries, spec QuerySpec) []Result {
	n := ts.Len()
	if n == 0 {
		return nil
	}

	if spec.Flags == 0 {
		return fullScan(ts)
	}

	if spec.Flags.has(FlagMean) {
		if spec.Flags.has(FlagMajorOf) {
			return meanAnchored(ts, spec)
		}
		if spec.Flags.has(FlagMinorOf) {
			return meanPlainRange(ts, spec)
		}
		return meanFullSeries(ts, spec.MeanVal)
	}

	if spec.Flags.has(FlagFirst) {
		return []Result{resultFrom(ts.Timestamps[0], ts.Records[0])}
	}
	if spec.Flags.has(FlagLast) {
		last := n - 1
		return []Result{resultFrom(ts.Timestamps[last], ts.Records[last])}
	}
	if spec.Flags.has(FlagMajorOf) || spec.Flags.has(FlagMinorOf) {
		lo, hi := rangeBounds(ts, spec)
		return fullScanRange(ts, lo, hi)
	}
	return fullScan(ts)
}

func fullScan(ts *TimeSeries) []Result {
	out := make([]Result, ts.Len())
	for i := range ts.Timestamps {
		out[i] = resultFrom(ts.Timestamps[i], ts.Records[i])
	}
	return out
}

func fullScanRange(ts *TimeSeries, lo, hi int) []Result {
	if lo > hi || lo < 0 || hi >= ts.Len() {
		return nil
	}
	out := make([]Result, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, resultFrom(ts.Timestamps[i], ts.Records[i]))
	}
	return out
}

// lowerBound returns the first index i with timestamps[i] >= target.
func lowerBound(timestamps []uint64, target uint64) int {
	return sort.Search(len(timestamps), func(i int) bool { return timestamps[i] >= target })
}

// rangeBounds derives [lo, hi] (inclusive) from spec's MajorOf (lower bound,
// defaulting to the first timestamp) and MinorOf (upper bound, defaulting to
// the last timestamp), expanding on both sides to include ties at the
// boundary.
func rangeBounds(ts *TimeSeries, spec QuerySpec) (lo, hi int) {
	n := ts.Len()
	timestamps := ts.Timestamps

	var major, minor uint64
	hasMajor := spec.Flags.has(FlagMajorOf)
	hasMinor := spec.Flags.has(FlagMinorOf)
	if hasMajor {
		major = spec.MajorOf
	} else {
		major = timestamps[0]
	}
	if hasMinor {
		minor = spec.MinorOf
	} else {
		minor = timestamps[n-1]
	}

	lo = lowerBound(timestamps, major)
	for lo > 0 && timestamps[lo-1] == major {
		lo--
	}

	hi = lowerBound(timestamps, minor)
	if hi < n && timestamps[hi] == minor {
		for hi < n-1 && timestamps[hi+1] == minor {
			hi++
		}
	} else {
		hi--
	}

	return lo, hi
}

// meanFullSeries partitions the whole series into consecutive windows of
// meanMs milliseconds and emits one averaged result per window. Every
// window contains at least its starting point, so the mean never divides
// by zero.
func meanFullSeries(ts *TimeSeries, meanMs uint64) []Result {
	return meanWindows(ts, 0, ts.Len()-1, meanMs)
}

// meanPlainRange is meanFullSeries bounded to [lo, hi].
func meanPlainRange(ts *TimeSeries, spec QuerySpec) []Result {
	lo, hi := rangeBounds(ts, spec)
	if lo > hi {
		return nil
	}
	return meanWindows(ts, lo, hi, spec.MeanVal)
}

func meanWindows(ts *TimeSeries, lo, hi int, meanMs uint64) []Result {
	if lo > hi || meanMs == 0 {
		return nil
	}
	windowNs := meanMs * 1_000_000
	timestamps := ts.Timestamps
	var out []Result
	i := lo
	for i <= hi {
		j := i + 1
		for j <= hi && timestamps[j] <= timestamps[i]+windowNs {
			j++
		}
		out = append(out, meanResult(timestamps[j-1], average(ts.Records[i:j])))
		i = j
	}
	return out
}

// meanAnchored implements "mean over range" anchored mode: windows of fixed
// size window_ns starting at MajorOf (advanced forward until it no longer
// trails the range's first timestamp), each labeled with its window start
// rather than its last contained timestamp.
//
// A naive implementation divides by the window's point count without
// guarding an empty window, risking a divide-by-zero. This one skips
// windows that contain no points rather than emitting NaN, so a client
// iterating results never has to special-case NaN; an empty-window gap in
// the output is visible as a jump in the emitted timestamps.
func meanAnchored(ts *TimeSeries, spec QuerySpec) []Result {
	lo, hi := rangeBounds(ts, spec)
	if lo > hi || spec.MeanVal == 0 {
		return nil
	}
	windowNs := spec.MeanVal * 1_000_000
	timestamps := ts.Timestamps

	step := spec.MajorOf
	for timestamps[lo] > step && step+windowNs <= timestamps[lo] {
		step += windowNs
	}

	var out []Result
	idx := lo
	for idx <= hi {
		windowEnd := step + windowNs
		start := idx
		for idx <= hi && timestamps[idx] < windowEnd {
			idx++
		}
		if idx > start {
			out = append(out, meanResult(step, average(ts.Records[start:idx])))
		}
		step += windowNs
	}
	return out
}

func average(records []*Record) float64 {
	var sum float64
	for _, r := range records {
		sum += r.Value
	}
	return sum / float64(len(records))
}

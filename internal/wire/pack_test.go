// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	buf, err := Pack("BHIQs", uint8(1), uint16(2), uint32(3), uint64(4), "hi")
	require.NoError(t, err)

	vals, err := Unpack("BHIQs", buf)
	require.NoError(t, err)
	require.Equal(t, []interface{}{uint8(1), uint16(2), uint32(3), uint64(4), "hi"}, vals)
}

func TestPackSignedTypes(t *testing.T) {
	buf, err := Pack("bhiq", int8(-1), int16(-2), int32(-3), int64(-4))
	require.NoError(t, err)

	vals, err := Unpack("bhiq", buf)
	require.NoError(t, err)
	require.Equal(t, []interface{}{int8(-1), int16(-2), int32(-3), int64(-4)}, vals)
}

func TestUnpackStringLengthCap(t *testing.T) {
	buf, err := Pack("s", "toolong")
	require.NoError(t, err)

	_, err = Unpack("3s", buf)
	require.Error(t, err)
}

func TestPackNotEnoughArguments(t *testing.T) {
	_, err := Pack("BB", uint8(1))
	require.Error(t, err)
}

func TestPackUnknownFormatChar(t *testing.T) {
	_, err := Pack("z", 1)
	require.Error(t, err)
}

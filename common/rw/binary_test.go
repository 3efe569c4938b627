package rw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(7)
	w.WriteUint16(0x1234)
	w.WriteUint32(0xdeadbeef)
	w.WriteInt32(-42)
	w.WriteFloat32(1.5)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteUint8s([]uint8{9, 8})
	w.WriteUint16s([]uint16{1, 2, 3})
	w.WriteUint32s([]uint32{4, 5})
	w.WriteFloat32s([]float32{-0.5, 0.5})
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes())
	assert.Equal(t, uint8(7), r.ReadUint8())
	assert.Equal(t, uint16(0x1234), r.ReadUint16())
	assert.Equal(t, uint32(0xdeadbeef), r.ReadUint32())
	assert.Equal(t, int32(-42), r.ReadInt32())
	assert.Equal(t, float32(1.5), r.ReadFloat32())
	assert.True(t, r.ReadBool())
	assert.False(t, r.ReadBool())

	u8 := make([]uint8, 2)
	r.ReadUint8s(u8)
	assert.Equal(t, []uint8{9, 8}, u8)
	u16 := make([]uint16, 3)
	r.ReadUint16s(u16)
	assert.Equal(t, []uint16{1, 2, 3}, u16)
	u32 := make([]uint32, 2)
	r.ReadUint32s(u32)
	assert.Equal(t, []uint32{4, 5}, u32)
	f32 := make([]float32, 2)
	r.ReadFloat32s(f32)
	assert.Equal(t, []float32{-0.5, 0.5}, f32)

	require.NoError(t, r.Err())
}

func TestShortData(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_ = r.ReadUint32()
	require.ErrorIs(t, r.Err(), ErrShortData)

	// The error is sticky and later reads yield zero values.
	assert.Equal(t, uint16(0), r.ReadUint16())
	assert.Equal(t, float32(0), r.ReadFloat32())
	require.ErrorIs(t, r.Err(), ErrShortData)
}

func TestRequire(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4})
	assert.Equal(t, 4, r.Remaining())
	assert.True(t, r.Require(4))
	require.NoError(t, r.Err())

	_ = r.ReadUint16()
	assert.Equal(t, 2, r.Remaining())
	assert.False(t, r.Require(3))
	require.ErrorIs(t, r.Err(), ErrShortData)

	// Sticky after the failed check.
	assert.False(t, r.Require(0))

	// Overflowed size computations surface as negative counts.
	r = NewReader([]byte{1, 2, 3, 4})
	assert.False(t, r.Require(-1))
	require.ErrorIs(t, r.Err(), ErrShortData)
}

func TestReadExactBoundary(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(42)
	r := NewReader(w.Bytes())
	assert.Equal(t, uint32(42), r.ReadUint32())
	require.NoError(t, r.Err())
	_ = r.ReadUint8()
	require.ErrorIs(t, r.Err(), ErrShortData)
}

// Package rw implements the little-endian field codec used by the .nav
// navmesh file format.
package rw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrShortData is reported when a reader runs out of input mid-field.
var ErrShortData = errors.New("rw: short data")

// ReaderWriter reads or writes a stream of little-endian fields. Errors are
// sticky: after the first failure every subsequent call is a no-op and Err
// returns the original error. Values read after a failure are zero.
type ReaderWriter struct {
	order binary.ByteOrder
	buf   [8]byte
	rw    bytes.Buffer
	err   error
}

// NewWriter returns a ReaderWriter primed for encoding.
func NewWriter() *ReaderWriter {
	return &ReaderWriter{order: binary.LittleEndian}
}

// NewReader returns a ReaderWriter decoding from data.
func NewReader(data []byte) *ReaderWriter {
	r := &ReaderWriter{order: binary.LittleEndian}
	r.rw.Write(data)
	return r
}

// Err returns the first error encountered, if any.
func (w *ReaderWriter) Err() error {
	return w.err
}

// Bytes returns the encoded stream.
func (w *ReaderWriter) Bytes() []byte {
	return w.rw.Bytes()
}

// Remaining reports how many bytes are left to read.
func (w *ReaderWriter) Remaining() int {
	return w.rw.Len()
}

// Require checks that at least n more bytes are available, recording
// ErrShortData otherwise. Decoders call it before sizing allocations from
// untrusted counts.
func (w *ReaderWriter) Require(n int) bool {
	if w.err != nil {
		return false
	}
	if n < 0 || w.rw.Len() < n {
		w.err = ErrShortData
		return false
	}
	return true
}

func (w *ReaderWriter) read(n int) []byte {
	if w.err != nil {
		return nil
	}
	if _, err := io.ReadFull(&w.rw, w.buf[:n]); err != nil {
		w.err = ErrShortData
		return nil
	}
	return w.buf[:n]
}

func (w *ReaderWriter) WriteUint8(v uint8) {
	if w.err != nil {
		return
	}
	w.rw.WriteByte(v)
}

func (w *ReaderWriter) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	w.order.PutUint16(w.buf[:2], v)
	w.rw.Write(w.buf[:2])
}

func (w *ReaderWriter) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	w.order.PutUint32(w.buf[:4], v)
	w.rw.Write(w.buf[:4])
}

func (w *ReaderWriter) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *ReaderWriter) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *ReaderWriter) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *ReaderWriter) WriteUint8s(vs []uint8) {
	for _, v := range vs {
		w.WriteUint8(v)
	}
}

func (w *ReaderWriter) WriteUint16s(vs []uint16) {
	for _, v := range vs {
		w.WriteUint16(v)
	}
}

func (w *ReaderWriter) WriteUint32s(vs []uint32) {
	for _, v := range vs {
		w.WriteUint32(v)
	}
}

func (w *ReaderWriter) WriteFloat32s(vs []float32) {
	for _, v := range vs {
		w.WriteFloat32(v)
	}
}

func (w *ReaderWriter) ReadUint8() uint8 {
	b := w.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (w *ReaderWriter) ReadUint16() uint16 {
	b := w.read(2)
	if b == nil {
		return 0
	}
	return w.order.Uint16(b)
}

func (w *ReaderWriter) ReadUint32() uint32 {
	b := w.read(4)
	if b == nil {
		return 0
	}
	return w.order.Uint32(b)
}

func (w *ReaderWriter) ReadInt32() int32 {
	return int32(w.ReadUint32())
}

func (w *ReaderWriter) ReadFloat32() float32 {
	return math.Float32frombits(w.ReadUint32())
}

func (w *ReaderWriter) ReadBool() bool {
	return w.ReadUint8() != 0
}

func (w *ReaderWriter) ReadUint8s(vs []uint8) {
	for i := range vs {
		vs[i] = w.ReadUint8()
	}
}

func (w *ReaderWriter) ReadUint16s(vs []uint16) {
	for i := range vs {
		vs[i] = w.ReadUint16()
	}
}

func (w *ReaderWriter) ReadUint32s(vs []uint32) {
	for i := range vs {
		vs[i] = w.ReadUint32()
	}
}

func (w *ReaderWriter) ReadFloat32s(vs []float32) {
	for i := range vs {
		vs[i] = w.ReadFloat32()
	}
}

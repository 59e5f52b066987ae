package protocol

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Writer encodes values into a byte slice. A Writer never fails except for NBT
// values that cannot be encoded, which are reported by Err.
type Writer struct {
	buf []byte
	err error
}

// NewWriter returns a Writer with a pre-allocated buffer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Data returns the bytes written so far.
func (w *Writer) Data() []byte { return w.buf }

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Reset clears the buffer for reuse.
func (w *Writer) Reset() {
	w.buf, w.err = w.buf[:0], nil
}

func (w *Writer) Uint8(x *uint8) { w.buf = append(w.buf, *x) }
func (w *Writer) Int8(x *int8)   { w.buf = append(w.buf, byte(*x)) }

func (w *Writer) Bool(x *bool) {
	if *x {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) Uint16(x *uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, *x) }
func (w *Writer) Int16(x *int16)   { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(*x)) }
func (w *Writer) Int32(x *int32)   { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(*x)) }
func (w *Writer) Int64(x *int64)   { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(*x)) }

func (w *Writer) Float32(x *float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(*x))
}

func (w *Writer) Float64(x *float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(*x))
}

func (w *Writer) Varint32(x *int32) { w.buf = AppendVarInt(w.buf, *x) }
func (w *Writer) Varint64(x *int64) { w.buf = AppendVarLong(w.buf, *x) }

func (w *Writer) String(x *string) {
	w.buf = AppendVarInt(w.buf, int32(len(*x)))
	w.buf = append(w.buf, *x...)
}

func (w *Writer) UUID(x *uuid.UUID) { w.buf = append(w.buf, x[:]...) }

func (w *Writer) Position(x *BlockPos) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, x.Pack())
}

func (w *Writer) ByteSlice(x *[]byte) {
	w.buf = AppendVarInt(w.buf, int32(len(*x)))
	w.buf = append(w.buf, *x...)
}

func (w *Writer) Bytes(x *[]byte)     { w.buf = append(w.buf, *x...) }
func (w *Writer) FixedBytes(x []byte) { w.buf = append(w.buf, x...) }

func (w *Writer) Longs(x *[]int64) {
	w.buf = AppendVarInt(w.buf, int32(len(*x)))
	for _, v := range *x {
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
	}
}

func (w *Writer) BitSet(x *BitSet) {
	longs := []int64(*x)
	w.Longs(&longs)
}

func (w *Writer) NBT(x any) {
	b, err := MarshalNBT(x)
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		w.buf = append(w.buf, tagEnd)
		return
	}
	w.buf = append(w.buf, b...)
}

func (w *Writer) Count(n *int) { w.buf = AppendVarInt(w.buf, int32(*n)) }

func (w *Writer) Reading() bool { return false }

func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

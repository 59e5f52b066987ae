package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrShortBuffer is returned when a packet ends before all of its fields
	// were read.
	ErrShortBuffer = errors.New("protocol: unexpected end of packet")
	// ErrTrailingBytes is returned when bytes remain after a packet was fully
	// decoded.
	ErrTrailingBytes = errors.New("protocol: trailing bytes after packet")
)

// maxStringLen is the longest string accepted from a client, in bytes.
const maxStringLen = 32767 * 3

// Reader decodes values from a byte slice. After the first failure every read
// returns zero values and Err reports the failure.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.off }

// Finish returns the first error, or ErrTrailingBytes if data remains.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingBytes, r.Len())
	}
	return nil
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Len() < n {
		r.fail(ErrShortBuffer)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.Len() == 0 {
		return 0, io.EOF
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *Reader) Uint8(x *uint8) {
	if b := r.take(1); b != nil {
		*x = b[0]
		return
	}
	*x = 0
}

func (r *Reader) Int8(x *int8) {
	var u uint8
	r.Uint8(&u)
	*x = int8(u)
}

func (r *Reader) Bool(x *bool) {
	var u uint8
	r.Uint8(&u)
	*x = u != 0
}

func (r *Reader) Uint16(x *uint16) {
	if b := r.take(2); b != nil {
		*x = binary.BigEndian.Uint16(b)
		return
	}
	*x = 0
}

func (r *Reader) Int16(x *int16) {
	var u uint16
	r.Uint16(&u)
	*x = int16(u)
}

func (r *Reader) Int32(x *int32) {
	if b := r.take(4); b != nil {
		*x = int32(binary.BigEndian.Uint32(b))
		return
	}
	*x = 0
}

func (r *Reader) Int64(x *int64) {
	if b := r.take(8); b != nil {
		*x = int64(binary.BigEndian.Uint64(b))
		return
	}
	*x = 0
}

func (r *Reader) Float32(x *float32) {
	var u int32
	r.Int32(&u)
	*x = math.Float32frombits(uint32(u))
}

func (r *Reader) Float64(x *float64) {
	var u int64
	r.Int64(&u)
	*x = math.Float64frombits(uint64(u))
}

func (r *Reader) Varint32(x *int32) {
	*x = 0
	if r.err != nil {
		return
	}
	v, err := ReadVarInt(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrShortBuffer
		}
		r.fail(err)
		return
	}
	*x = v
}

func (r *Reader) Varint64(x *int64) {
	*x = 0
	if r.err != nil {
		return
	}
	v, err := ReadVarLong(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrShortBuffer
		}
		r.fail(err)
		return
	}
	*x = v
}

func (r *Reader) String(x *string) {
	var n int32
	r.Varint32(&n)
	if n > maxStringLen {
		r.fail(fmt.Errorf("protocol: string length %d exceeds maximum", n))
	}
	b := r.take(int(n))
	if b == nil {
		*x = ""
		return
	}
	if !utf8.Valid(b) {
		r.fail(errors.New("protocol: string is not valid UTF-8"))
		*x = ""
		return
	}
	*x = string(b)
}

func (r *Reader) UUID(x *uuid.UUID) {
	if b := r.take(16); b != nil {
		copy(x[:], b)
		return
	}
	*x = uuid.Nil
}

func (r *Reader) Position(x *BlockPos) {
	var v int64
	r.Int64(&v)
	*x = UnpackBlockPos(uint64(v))
}

func (r *Reader) ByteSlice(x *[]byte) {
	var n int32
	r.Varint32(&n)
	if b := r.take(int(n)); b != nil {
		*x = append([]byte(nil), b...)
		return
	}
	*x = nil
}

func (r *Reader) Bytes(x *[]byte) {
	*x = append([]byte(nil), r.take(r.Len())...)
}

func (r *Reader) FixedBytes(x []byte) {
	copy(x, r.take(len(x)))
}

func (r *Reader) Longs(x *[]int64) {
	var n int32
	r.Varint32(&n)
	if n < 0 || int(n)*8 > r.Len() {
		r.fail(ErrShortBuffer)
		*x = nil
		return
	}
	longs := make([]int64, n)
	for i := range longs {
		r.Int64(&longs[i])
	}
	*x = longs
}

func (r *Reader) BitSet(x *BitSet) {
	var longs []int64
	r.Longs(&longs)
	*x = BitSet(longs)
}

func (r *Reader) NBT(x any) {
	if r.err != nil {
		return
	}
	n, err := UnmarshalNBT(r.buf[r.off:], x)
	if err != nil {
		r.fail(err)
		return
	}
	r.off += n
}

func (r *Reader) Count(n *int) {
	var v int32
	r.Varint32(&v)
	// Every element takes at least one byte.
	if v < 0 || int(v) > r.Len() {
		r.fail(fmt.Errorf("protocol: invalid collection length %d", v))
		*n = 0
		return
	}
	*n = int(v)
}

func (r *Reader) Reading() bool { return true }

func (r *Reader) Fail(err error) { r.fail(err) }

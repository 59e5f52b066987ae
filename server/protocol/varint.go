// Package protocol implements the primitive types and framing of the Minecraft
// Java edition wire protocol.
package protocol

import (
	"errors"
	"io"
)

const (
	// MaxVarIntLen is the maximum encoded length of a VarInt.
	MaxVarIntLen = 5
	// MaxVarLongLen is the maximum encoded length of a VarLong.
	MaxVarLongLen = 10
)

// ErrInvalidVarInt is returned when a VarInt or VarLong runs past its maximum
// length.
var ErrInvalidVarInt = errors.New("protocol: varint too long")

// AppendVarInt appends the VarInt encoding of v to b.
func AppendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		b = append(b, byte(u)|0x80)
		u >>= 7
	}
	return append(b, byte(u))
}

// VarIntSize returns the number of bytes AppendVarInt writes for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// ReadVarInt reads a VarInt from r.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, ErrInvalidVarInt
}

// DecodeVarInt decodes a VarInt from the start of b and returns it with the
// number of bytes consumed. n is 0 if b does not hold a complete VarInt yet.
func DecodeVarInt(b []byte) (v int32, n int, err error) {
	var u uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(b) {
			return 0, 0, nil
		}
		u |= uint32(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return int32(u), i + 1, nil
		}
	}
	return 0, 0, ErrInvalidVarInt
}

// AppendVarLong appends the ZigZag VarLong encoding of v to b.
func AppendVarLong(b []byte, v int64) []byte {
	u := uint64(v<<1) ^ uint64(v>>63)
	for u >= 0x80 {
		b = append(b, byte(u)|0x80)
		u >>= 7
	}
	return append(b, byte(u))
}

// ReadVarLong reads a ZigZag VarLong from r.
func ReadVarLong(r io.ByteReader) (int64, error) {
	var u uint64
	for i := 0; i < MaxVarLongLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		u |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int64(u>>1) ^ -int64(u&1), nil
		}
	}
	return 0, ErrInvalidVarInt
}

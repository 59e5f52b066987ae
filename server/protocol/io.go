package protocol

import (
	"github.com/google/uuid"
)

// IO is implemented by Writer and Reader. Packets describe their layout once
// in a Marshal(IO) method, which then serves both encoding and decoding.
type IO interface {
	Uint8(x *uint8)
	Int8(x *int8)
	Bool(x *bool)
	Uint16(x *uint16)
	Int16(x *int16)
	Int32(x *int32)
	Int64(x *int64)
	Float32(x *float32)
	Float64(x *float64)
	Varint32(x *int32)
	Varint64(x *int64)
	String(x *string)
	UUID(x *uuid.UUID)
	Position(x *BlockPos)
	// ByteSlice handles a VarInt length-prefixed byte array.
	ByteSlice(x *[]byte)
	// Bytes handles the remaining bytes of a packet.
	Bytes(x *[]byte)
	// FixedBytes handles exactly len(*x) bytes with no length prefix.
	FixedBytes(x []byte)
	// Longs handles a VarInt length-prefixed array of longs.
	Longs(x *[]int64)
	// BitSet handles a length-prefixed long array.
	BitSet(x *BitSet)
	// NBT handles a network NBT value. On read x must be a pointer.
	NBT(x any)
	// Count handles a VarInt collection length. On read it validates the
	// length against the bytes left.
	Count(n *int)
	// Reading reports whether the IO decodes.
	Reading() bool
	// Fail records err as the IO's error if it has none yet.
	Fail(err error)
	// Err returns the first error recorded.
	Err() error
}

// Slice handles a VarInt-counted list of elements, each marshalled by f.
func Slice[T any](io IO, s *[]T, f func(*T)) {
	n := len(*s)
	io.Count(&n)
	if len(*s) != n {
		*s = make([]T, n)
	}
	for i := range *s {
		f(&(*s)[i])
	}
}

// Optional handles a presence boolean followed by the value when present.
func Optional[T any](io IO, v **T, f func(*T)) {
	present := *v != nil
	io.Bool(&present)
	if !present {
		*v = nil
		return
	}
	if *v == nil {
		*v = new(T)
	}
	f(*v)
}

// Marshaler is implemented by types with a single Marshal(IO) layout.
type Marshaler interface {
	Marshal(io IO)
}

// SliceOf handles a VarInt-counted list of Marshaler elements.
func SliceOf[T any, P interface {
	*T
	Marshaler
}](io IO, s *[]T) {
	Slice(io, s, func(x *T) { P(x).Marshal(io) })
}

// OptionalOf handles an optional Marshaler value.
func OptionalOf[T any, P interface {
	*T
	Marshaler
}](io IO, v **T) {
	Optional(io, v, func(x *T) { P(x).Marshal(io) })
}

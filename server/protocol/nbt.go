package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

const tagEnd = 0x00

// MarshalNBT encodes v as network NBT: the root tag ID followed directly by the
// payload, without the root name.
func MarshalNBT(v any) ([]byte, error) {
	b, err := nbt.MarshalEncoding(v, nbt.BigEndian)
	if err != nil {
		return nil, fmt.Errorf("encode nbt: %w", err)
	}
	if len(b) < 3 {
		return nil, errors.New("encode nbt: short output")
	}
	// Drop the two byte length of the empty root name.
	return append(b[:1:1], b[3:]...), nil
}

// UnmarshalNBT decodes one network NBT value from the start of b into v and
// returns the number of bytes it occupied.
func UnmarshalNBT(b []byte, v any) (int, error) {
	if len(b) == 0 {
		return 0, ErrShortBuffer
	}
	if b[0] == tagEnd {
		return 1, nil
	}
	named := make([]byte, 0, len(b)+2)
	named = append(named, b[0], 0, 0)
	named = append(named, b[1:]...)

	rd := bytes.NewReader(named)
	if err := nbt.NewDecoderWithEncoding(rd, nbt.BigEndian).Decode(v); err != nil {
		return 0, fmt.Errorf("decode nbt: %w", err)
	}
	return len(named) - rd.Len() - 2, nil
}

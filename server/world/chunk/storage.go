package chunk

import (
	"fmt"
)

// bitStorage is a fixed-length array of bits-wide unsigned values packed into
// longs. Values never straddle two longs.
type bitStorage struct {
	data          []uint64
	bits          int
	length        int
	valuesPerLong int
	mask          uint64
}

func newBitStorage(bits, length int) *bitStorage {
	s := &bitStorage{bits: bits, length: length}
	if bits == 0 {
		return s
	}
	s.valuesPerLong = 64 / bits
	s.mask = 1<<bits - 1
	s.data = make([]uint64, longsFor(bits, length))
	return s
}

// loadBitStorage wraps existing longs. It fails if the long count does not
// match bits and length.
func loadBitStorage(bits, length int, data []int64) (*bitStorage, error) {
	s := newBitStorage(bits, length)
	if len(data) != len(s.data) {
		return nil, fmt.Errorf("chunk: %d longs for %d values of %d bits, want %d", len(data), length, bits, len(s.data))
	}
	for i, v := range data {
		s.data[i] = uint64(v)
	}
	return s, nil
}

func longsFor(bits, length int) int {
	if bits == 0 {
		return 0
	}
	perLong := 64 / bits
	return (length + perLong - 1) / perLong
}

func (s *bitStorage) get(i int) int {
	if s.bits == 0 {
		return 0
	}
	long, off := i/s.valuesPerLong, (i%s.valuesPerLong)*s.bits
	return int(s.data[long] >> off & s.mask)
}

func (s *bitStorage) set(i, v int) {
	if s.bits == 0 {
		return
	}
	long, off := i/s.valuesPerLong, (i%s.valuesPerLong)*s.bits
	s.data[long] = s.data[long]&^(s.mask<<off) | (uint64(v)&s.mask)<<off
}

func (s *bitStorage) longs() []int64 {
	out := make([]int64, len(s.data))
	for i, v := range s.data {
		out[i] = int64(v)
	}
	return out
}

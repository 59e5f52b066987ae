package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// RegionSize is the number of chunks along each axis of a region.
const RegionSize = 32

// ChunkPos is the position of a chunk column in chunk coordinates.
type ChunkPos [2]int64

// X returns the x coordinate of the chunk.
func (p ChunkPos) X() int64 { return p[0] }

// Z returns the z coordinate of the chunk.
func (p ChunkPos) Z() int64 { return p[1] }

// Region returns the position of the region holding p.
func (p ChunkPos) Region() RegionPos {
	return RegionPos{DivEuclid(p[0], RegionSize), DivEuclid(p[1], RegionSize)}
}

// Add returns p offset by dx, dz.
func (p ChunkPos) Add(dx, dz int64) ChunkPos { return ChunkPos{p[0] + dx, p[1] + dz} }

// RegionPos is the position of a region in region coordinates.
type RegionPos [2]int64

// Contains reports whether chunk p lies in region r.
func (r RegionPos) Contains(p ChunkPos) bool { return p.Region() == r }

// ChunkAt returns the chunk holding the block at the given world position.
func ChunkAt(pos mgl64.Vec3) ChunkPos {
	return ChunkPos{
		DivEuclid(int64(math.Floor(pos[0])), 16),
		DivEuclid(int64(math.Floor(pos[2])), 16),
	}
}

// DivEuclid divides a by b rounding so that the remainder is never negative.
// Negative coordinates land on the region or chunk below them rather than the
// one closer to zero.
func DivEuclid[T constraints.Signed](a, b T) T {
	q, r := a/b, a%b
	if r < 0 {
		if b > 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

// Direction is a horizontal neighbour direction.
type Direction uint8

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	}
	return "west"
}

// Directions lists every Direction.
var Directions = [...]Direction{North, South, East, West}

// Offset returns the neighbour of p in direction d.
func (d Direction) Offset(p ChunkPos) ChunkPos {
	switch d {
	case North:
		return p.Add(0, -1)
	case South:
		return p.Add(0, 1)
	case East:
		return p.Add(1, 0)
	}
	return p.Add(-1, 0)
}

// Range is an inclusive rectangle of chunk positions.
type Range struct {
	MinX int64 `toml:"min_x"`
	MinZ int64 `toml:"min_z"`
	MaxX int64 `toml:"max_x"`
	MaxZ int64 `toml:"max_z"`
}

// Contains reports whether p lies in r.
func (r Range) Contains(p ChunkPos) bool {
	return p[0] >= r.MinX && p[0] <= r.MaxX && p[1] >= r.MinZ && p[1] <= r.MaxZ
}

// Regions returns every region overlapping r.
func (r Range) Regions() []RegionPos {
	lo, hi := ChunkPos{r.MinX, r.MinZ}.Region(), ChunkPos{r.MaxX, r.MaxZ}.Region()
	var out []RegionPos
	for x := lo[0]; x <= hi[0]; x++ {
		for z := lo[1]; z <= hi[1]; z++ {
			out = append(out, RegionPos{x, z})
		}
	}
	return out
}

// Chunks returns the chunks of r that lie in region rp.
func (r Range) Chunks(rp RegionPos) []ChunkPos {
	minX, minZ := max(r.MinX, rp[0]*RegionSize), max(r.MinZ, rp[1]*RegionSize)
	maxX, maxZ := min(r.MaxX, rp[0]*RegionSize+RegionSize-1), min(r.MaxZ, rp[1]*RegionSize+RegionSize-1)
	var out []ChunkPos
	for x := minX; x <= maxX; x++ {
		for z := minZ; z <= maxZ; z++ {
			out = append(out, ChunkPos{x, z})
		}
	}
	return out
}

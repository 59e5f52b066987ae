// Package anvil reads and writes Anvil region files. A region file holds 32x32
// chunks: an 8 KiB header of locations and timestamps is followed by chunk
// payloads aligned to 4 KiB sectors.
package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const (
	sectorSize  = 4096
	headerBytes = 2 * sectorSize
	chunks      = 32 * 32
	maxSectors  = 0xff
)

// Compression is the compression scheme byte of a stored chunk.
type Compression byte

const (
	Gzip Compression = 1
	Zlib Compression = 2
	None Compression = 3
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case None:
		return "none"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// ParseCompression parses a compression name as used in configuration.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "gzip":
		return Gzip, nil
	case "zlib", "":
		return Zlib, nil
	case "none":
		return None, nil
	}
	return 0, fmt.Errorf("anvil: unknown compression %q", s)
}

var (
	// ErrNotGenerated is returned by ReadChunk for a chunk absent from the
	// region.
	ErrNotGenerated = errors.New("anvil: chunk not generated")
	// ErrCorrupt is returned for region data that cannot be parsed.
	ErrCorrupt = errors.New("anvil: corrupt region")
)

// FileName returns the file name of the region holding region coordinates x, z.
func FileName(x, z int32) string {
	return fmt.Sprintf("r.%d.%d.mca", x, z)
}

// Region is an open region file. It is safe for concurrent use.
type Region struct {
	mu          sync.Mutex
	f           *os.File
	compression Compression
	locations   [chunks]uint32
	timestamps  [chunks]uint32
	// used marks allocated sectors, header included.
	used []bool
}

// Open opens the region file at path, creating it with an empty header if it
// does not exist. Chunks are written with the given compression.
func Open(path string, compression Compression) (*Region, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create region dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open region: %w", err)
	}
	r := &Region{f: f, compression: compression}
	if err := r.load(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open region %s: %w", path, err)
	}
	return r, nil
}

func (r *Region) load() error {
	stat, err := r.f.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < headerBytes {
		// New or truncated file: write a fresh header.
		if _, err := r.f.WriteAt(make([]byte, headerBytes), 0); err != nil {
			return err
		}
	}
	header := make([]byte, headerBytes)
	if _, err := r.f.ReadAt(header, 0); err != nil {
		return err
	}
	for i := 0; i < chunks; i++ {
		r.locations[i] = binary.BigEndian.Uint32(header[i*4:])
		r.timestamps[i] = binary.BigEndian.Uint32(header[sectorSize+i*4:])
	}
	r.used = []bool{true, true}
	for i, loc := range r.locations {
		offset, count := int(loc>>8), int(loc&0xff)
		if loc == 0 {
			continue
		}
		if offset < 2 {
			return fmt.Errorf("%w: chunk %d points into the header", ErrCorrupt, i)
		}
		r.mark(offset, count, true)
	}
	return nil
}

func (r *Region) mark(offset, count int, used bool) {
	for len(r.used) < offset+count {
		r.used = append(r.used, false)
	}
	for i := offset; i < offset+count; i++ {
		r.used[i] = used
	}
}

func index(x, z int32) int { return int(x&31) + int(z&31)*32 }

// Has reports whether the chunk at x, z is stored. Coordinates are taken
// modulo 32.
func (r *Region) Has(x, z int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locations[index(x, z)] != 0
}

// Timestamp returns the last write time of the chunk at x, z.
func (r *Region) Timestamp(x, z int32) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Unix(int64(r.timestamps[index(x, z)]), 0)
}

// Chunks returns the region relative coordinates of every stored chunk.
func (r *Region) Chunks() [][2]int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][2]int32
	for i, loc := range r.locations {
		if loc != 0 {
			out = append(out, [2]int32{int32(i % 32), int32(i / 32)})
		}
	}
	return out
}

// ReadChunk returns the decompressed chunk data at x, z.
func (r *Region) ReadChunk(x, z int32) ([]byte, error) {
	r.mu.Lock()
	loc := r.locations[index(x, z)]
	if loc == 0 {
		r.mu.Unlock()
		return nil, ErrNotGenerated
	}
	offset, count := int64(loc>>8), int(loc&0xff)
	buf := make([]byte, count*sectorSize)
	n, err := r.f.ReadAt(buf, offset*sectorSize)
	r.mu.Unlock()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read chunk %d %d: %w", x, z, err)
	}
	buf = buf[:n]
	if len(buf) < 5 {
		return nil, fmt.Errorf("%w: chunk %d %d header truncated", ErrCorrupt, x, z)
	}
	length := int(binary.BigEndian.Uint32(buf))
	if length < 1 || length+4 > len(buf) {
		return nil, fmt.Errorf("%w: chunk %d %d length %d", ErrCorrupt, x, z, length)
	}
	scheme := Compression(buf[4])
	if scheme&0x80 != 0 {
		return nil, fmt.Errorf("read chunk %d %d: external chunk files are not supported", x, z)
	}
	return decompress(scheme, buf[5:4+length])
}

func decompress(scheme Compression, b []byte) ([]byte, error) {
	var (
		rd  io.ReadCloser
		err error
	)
	switch scheme {
	case None:
		return append([]byte(nil), b...), nil
	case Gzip:
		rd, err = gzip.NewReader(bytes.NewReader(b))
	case Zlib:
		rd, err = zlib.NewReader(bytes.NewReader(b))
	default:
		return nil, fmt.Errorf("%w: unsupported %s", ErrCorrupt, scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rd.Close()
	out, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

func compress(scheme Compression, b []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch scheme {
	case None:
		return b, nil
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zlib:
		w = zlib.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("anvil: cannot write %s", scheme)
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteChunk compresses data and stores it as the chunk at x, z. The chunk
// keeps its sectors when it still fits, otherwise it moves to the first free
// run large enough.
func (r *Region) WriteChunk(x, z int32, data []byte) error {
	payload, err := compress(r.compression, data)
	if err != nil {
		return fmt.Errorf("write chunk %d %d: %w", x, z, err)
	}
	size := 5 + len(payload)
	count := (size + sectorSize - 1) / sectorSize
	if count > maxSectors {
		return fmt.Errorf("write chunk %d %d: %d sectors exceeds %d", x, z, count, maxSectors)
	}
	buf := make([]byte, count*sectorSize)
	binary.BigEndian.PutUint32(buf, uint32(len(payload)+1))
	buf[4] = byte(r.compression)
	copy(buf[5:], payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	i := index(x, z)
	oldOffset, oldCount := int(r.locations[i]>>8), int(r.locations[i]&0xff)
	if oldOffset != 0 {
		r.mark(oldOffset, oldCount, false)
	}
	offset := r.allocate(count)
	if _, err := r.f.WriteAt(buf, int64(offset)*sectorSize); err != nil {
		if oldOffset != 0 {
			r.mark(oldOffset, oldCount, true)
		}
		return fmt.Errorf("write chunk %d %d: %w", x, z, err)
	}
	r.mark(offset, count, true)
	r.locations[i] = uint32(offset)<<8 | uint32(count)
	r.timestamps[i] = uint32(time.Now().Unix())
	return r.writeHeader(i)
}

// allocate returns the first sector of a free run of count sectors.
func (r *Region) allocate(count int) int {
	run := 0
	for i := 2; i < len(r.used); i++ {
		if r.used[i] {
			run = 0
			continue
		}
		run++
		if run == count {
			return i - count + 1
		}
	}
	return len(r.used) - run
}

func (r *Region) writeHeader(i int) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], r.locations[i])
	if _, err := r.f.WriteAt(b[:], int64(i*4)); err != nil {
		return fmt.Errorf("write region header: %w", err)
	}
	binary.BigEndian.PutUint32(b[:], r.timestamps[i])
	if _, err := r.f.WriteAt(b[:], int64(sectorSize+i*4)); err != nil {
		return fmt.Errorf("write region header: %w", err)
	}
	return nil
}

// Sectors returns the number of sectors in use, header included.
func (r *Region) Sectors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.used {
		if u {
			n++
		}
	}
	return n
}

// Sync flushes the file to disk.
func (r *Region) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Sync()
}

// Close closes the region file.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

const (
	// MaxFrameLen is the largest frame length a three byte VarInt can carry.
	MaxFrameLen = 1<<21 - 1
	// MaxUncompressedLen bounds the declared size of a compressed packet.
	MaxUncompressedLen = 8 << 20
)

var (
	// ErrFrameTooLarge is returned for frames over MaxFrameLen.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
	// ErrBadCompression is returned for frames whose compressed form is invalid.
	ErrBadCompression = errors.New("protocol: invalid compressed frame")
)

// Frame is one packet: its ID and the bytes following the ID.
type Frame struct {
	ID      int32
	Payload []byte
}

// FrameReader splits a byte stream into Frames. Partial frames are carried
// over between reads so frames may straddle read boundaries.
type FrameReader struct {
	r         io.Reader
	carry     []byte
	chunk     []byte
	threshold int
}

// NewFrameReader returns a FrameReader over r with compression disabled.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, chunk: make([]byte, 4096), threshold: -1}
}

// SetThreshold enables compression handling. A negative threshold disables it.
func (f *FrameReader) SetThreshold(threshold int) { f.threshold = threshold }

// Buffered returns the carried-over bytes not yet returned as frames.
func (f *FrameReader) Buffered() []byte { return f.carry }

// ReadFrame returns the next frame, reading from the underlying reader as
// often as needed.
func (f *FrameReader) ReadFrame() (Frame, error) {
	for {
		body, n, err := splitFrame(f.carry)
		if err != nil {
			return Frame{}, err
		}
		if n > 0 {
			f.carry = f.carry[n:]
			if len(f.carry) == 0 {
				f.carry = nil
			}
			return decodeFrame(body, f.threshold)
		}
		read, err := f.r.Read(f.chunk)
		if read > 0 {
			f.carry = append(f.carry, f.chunk[:read]...)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(f.carry) > 0 {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
	}
}

// PeekByte returns the first unread byte, reading if necessary. It is used to
// recognise the legacy server list ping before framing starts.
func (f *FrameReader) PeekByte() (byte, error) {
	for len(f.carry) == 0 {
		read, err := f.r.Read(f.chunk)
		if read > 0 {
			f.carry = append(f.carry, f.chunk[:read]...)
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return f.carry[0], nil
}

// splitFrame returns the body of the first complete frame in b and the number
// of bytes the frame occupies. n is 0 if no complete frame is buffered.
func splitFrame(b []byte) (body []byte, n int, err error) {
	length, ln, err := DecodeVarInt(b)
	if err != nil {
		return nil, 0, err
	}
	if ln == 0 {
		return nil, 0, nil
	}
	if length < 0 || length > MaxFrameLen {
		return nil, 0, ErrFrameTooLarge
	}
	if len(b)-ln < int(length) {
		return nil, 0, nil
	}
	return b[ln : ln+int(length)], ln + int(length), nil
}

func decodeFrame(body []byte, threshold int) (Frame, error) {
	if threshold >= 0 {
		r := NewReader(body)
		var size int32
		r.Varint32(&size)
		if r.Err() != nil {
			return Frame{}, r.Err()
		}
		rest := body[len(body)-r.Len():]
		if size != 0 {
			if size < int32(threshold) || size > MaxUncompressedLen {
				return Frame{}, fmt.Errorf("%w: declared size %d", ErrBadCompression, size)
			}
			inflated, err := inflate(rest, int(size))
			if err != nil {
				return Frame{}, err
			}
			rest = inflated
		}
		body = rest
	}
	id, n, err := DecodeVarInt(body)
	if err != nil {
		return Frame{}, err
	}
	if n == 0 {
		return Frame{}, ErrShortBuffer
	}
	return Frame{ID: id, Payload: body[n:]}, nil
}

func inflate(b []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCompression, err)
	}
	defer zr.Close()
	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCompression, err)
	}
	return out, nil
}

var zlibWriters = sync.Pool{
	New: func() any { return zlib.NewWriter(io.Discard) },
}

// AppendFrame appends the framed form of a packet with the given ID and payload
// to dst. A negative threshold disables compression; otherwise packets of at
// least threshold bytes are zlib-compressed.
func AppendFrame(dst []byte, id int32, payload []byte, threshold int) ([]byte, error) {
	plainLen := VarIntSize(id) + len(payload)
	if threshold < 0 {
		if plainLen > MaxFrameLen {
			return dst, ErrFrameTooLarge
		}
		dst = AppendVarInt(dst, int32(plainLen))
		dst = AppendVarInt(dst, id)
		return append(dst, payload...), nil
	}
	if plainLen < threshold {
		dst = AppendVarInt(dst, int32(plainLen+1))
		dst = append(dst, 0)
		dst = AppendVarInt(dst, id)
		return append(dst, payload...), nil
	}

	var compressed bytes.Buffer
	zw := zlibWriters.Get().(*zlib.Writer)
	zw.Reset(&compressed)
	_, _ = zw.Write(AppendVarInt(nil, id))
	_, _ = zw.Write(payload)
	err := zw.Close()
	zlibWriters.Put(zw)
	if err != nil {
		return dst, fmt.Errorf("compress frame: %w", err)
	}
	total := VarIntSize(int32(plainLen)) + compressed.Len()
	if total > MaxFrameLen {
		return dst, ErrFrameTooLarge
	}
	dst = AppendVarInt(dst, int32(total))
	dst = AppendVarInt(dst, int32(plainLen))
	return append(dst, compressed.Bytes()...), nil
}

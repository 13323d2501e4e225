package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxFrame is the frame size limit used when none is configured.
const DefaultMaxFrame = 1 << 20

// Framing errors.
var (
	ErrFrameTooLarge = errors.New("frame too large")
	ErrInvalidUTF8   = errors.New("frame is not valid UTF-8")
)

// ReadFrame reads one length-prefixed frame: a 4-byte big-endian length
// followed by that many bytes of UTF-8 text.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrame
	}
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !utf8.Valid(buf) {
		return nil, ErrInvalidUTF8
	}
	return buf, nil
}

// WriteFrame writes p as a single frame.
func WriteFrame(w io.Writer, p []byte) error {
	if uint64(len(p)) > uint64(^uint32(0)) {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+len(p))
	binary.BigEndian.PutUint32(buf, uint32(len(p)))
	copy(buf[4:], p)
	_, err := w.Write(buf)
	return err
}

// Package protocol implements the netstring framing used on every
// client connection: ASCII decimal length, a colon, the payload, and
// a trailing comma. Payload bytes are opaque here; encryption is
// layered above by the crypto session.
package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// MaxFrameSize bounds a single frame payload. Anything larger is
// treated as a malformed frame and the read fails.
const MaxFrameSize = 1 << 20

// maxLengthDigits bounds the ASCII length prefix (MaxFrameSize has 7
// digits).
const maxLengthDigits = 8

// WriteFrame writes one netstring frame containing payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("writing frame: payload %d exceeds max %d", len(payload), MaxFrameSize)
	}
	header := strconv.AppendInt(make([]byte, 0, maxLengthDigits+1), int64(len(payload)), 10)
	header = append(header, ':')
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	if _, err := w.Write([]byte{','}); err != nil {
		return fmt.Errorf("writing frame terminator: %w", err)
	}
	return nil
}

// ReadFrame reads one netstring frame from r and returns its payload.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var digits [maxLengthDigits]byte
	n := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading frame length: %w", err)
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' {
			return nil, fmt.Errorf("reading frame length: unexpected byte %q", b)
		}
		if n == maxLengthDigits {
			return nil, fmt.Errorf("reading frame length: length prefix too long")
		}
		digits[n] = b
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("reading frame length: empty length prefix")
	}

	size, err := strconv.Atoi(string(digits[:n]))
	if err != nil {
		return nil, fmt.Errorf("parsing frame length: %w", err)
	}
	if size > MaxFrameSize {
		return nil, fmt.Errorf("reading frame: payload %d exceeds max %d", size, MaxFrameSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	term, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("reading frame terminator: %w", err)
	}
	if term != ',' {
		return nil, fmt.Errorf("reading frame terminator: expected ',' got %q", term)
	}
	return payload, nil
}

// Package messaging implements the browser native messaging transport: each
// message is a 32-bit length in native byte order followed by that many
// bytes of UTF-8 JSON.
package messaging

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// MaxInboundSize is the largest message accepted from the browser.
	MaxInboundSize = 64 << 20

	// MaxOutboundSize is the largest message the browser accepts from a host.
	MaxOutboundSize = 1 << 20

	headerSize = 4
)

var (
	// ErrMessageTooLarge is returned when a message exceeds the size limit
	// for its direction.
	ErrMessageTooLarge = errors.New("messaging: message too large")

	// ErrInvalidMessage is returned when a complete frame does not hold valid JSON.
	ErrInvalidMessage = errors.New("messaging: invalid message")
)

// Codec reads and writes framed JSON messages. Reads must come from a single
// goroutine; writes may come from many and are serialized.
type Codec struct {
	r io.Reader

	mu sync.Mutex
	w  io.Writer
}

// NewCodec creates a codec over r and w, typically stdin and stdout.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{r: r, w: w}
}

// Read decodes the next message into v. It returns io.EOF when the stream
// ends cleanly between messages.
func (c *Codec) Read(v any) error {
	var header [headerSize]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to read message header: %w", err)
	}

	size := binary.NativeEndian.Uint32(header[:])
	if size > MaxInboundSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// Write encodes v as one message.
func (c *Codec) Write(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if len(body) > MaxOutboundSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}

	frame := make([]byte, headerSize+len(body))
	binary.NativeEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[headerSize:], body)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

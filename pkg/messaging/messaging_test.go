package messaging

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pagepilot/pkg/types"
)

func frame(t *testing.T, body string) []byte {
	t.Helper()
	out := make([]byte, headerSize+len(body))
	binary.NativeEndian.PutUint32(out, uint32(len(body)))
	copy(out[headerSize:], body)
	return out
}

// readFrames splits raw host output into decoded JSON messages.
func readFrames(t *testing.T, raw []byte) []map[string]any {
	t.Helper()
	codec := NewCodec(bytes.NewReader(raw), io.Discard)
	var out []map[string]any
	for {
		var msg map[string]any
		err := codec.Read(&msg)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, msg)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	codec := NewCodec(&buf, &buf)

	require.NoError(t, codec.Write(types.Request{ID: "1", Action: "get_user"}))
	require.NoError(t, codec.Write(types.Request{ID: "2", Action: "sign_out"}))

	size := binary.NativeEndian.Uint32(buf.Bytes()[:headerSize])
	assert.JSONEq(t, `{"id":"1","action":"get_user"}`, string(buf.Bytes()[headerSize:headerSize+int(size)]))

	var first, second types.Request
	require.NoError(t, codec.Read(&first))
	require.NoError(t, codec.Read(&second))
	assert.Equal(t, "get_user", first.Action)
	assert.Equal(t, "2", second.ID)

	var none types.Request
	assert.ErrorIs(t, codec.Read(&none), io.EOF)
}

func TestCodec_InboundLimit(t *testing.T) {
	header := make([]byte, headerSize)
	binary.NativeEndian.PutUint32(header, MaxInboundSize+1)

	var v any
	err := NewCodec(bytes.NewReader(header), io.Discard).Read(&v)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestCodec_OutboundLimit(t *testing.T) {
	var buf bytes.Buffer
	err := NewCodec(nil, &buf).Write(strings.Repeat("x", MaxOutboundSize))

	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.Zero(t, buf.Len(), "nothing is written for oversized messages")
}

func TestCodec_TruncatedInput(t *testing.T) {
	full := frame(t, `{"action":"get_user"}`)

	var v types.Request
	err := NewCodec(bytes.NewReader(full[:len(full)-3]), io.Discard).Read(&v)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	err = NewCodec(bytes.NewReader(full[:2]), io.Discard).Read(&v)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCodec_InvalidJSON(t *testing.T) {
	var v types.Request
	err := NewCodec(bytes.NewReader(frame(t, "{nope")), io.Discard).Read(&v)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, req types.Request) types.Response {
	if req.Action == "big" {
		return types.Response{ID: req.ID, Success: true, Data: strings.Repeat("y", MaxOutboundSize)}
	}
	return types.Response{ID: req.ID, Success: true, Data: req.Action}
}

func TestHost_ServesUntilEOF(t *testing.T) {
	var in bytes.Buffer
	in.Write(frame(t, `{"id":"1","action":"first"}`))
	in.Write(frame(t, `not json`))
	in.Write(frame(t, `{"id":"3","action":"big"}`))
	in.Write(frame(t, `{"id":"4","action":"last"}`))

	var out bytes.Buffer
	host := NewHost(&in, &out, echoDispatcher{}, nil)

	require.NoError(t, host.Serve(t.Context()))

	msgs := readFrames(t, out.Bytes())
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[0]["data"])
	assert.Equal(t, false, msgs[1]["success"])
	assert.Equal(t, "invalid message", msgs[1]["error"])
	assert.Equal(t, "3", msgs[2]["id"])
	assert.Equal(t, "response too large", msgs[2]["error"])
	assert.Equal(t, "last", msgs[3]["data"])
}

func TestHost_OversizedFrameStops(t *testing.T) {
	header := make([]byte, headerSize)
	binary.NativeEndian.PutUint32(header, MaxInboundSize+1)

	host := NewHost(bytes.NewReader(header), io.Discard, echoDispatcher{}, nil)
	assert.ErrorIs(t, host.Serve(t.Context()), ErrMessageTooLarge)
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestHost_ForwardsEvents(t *testing.T) {
	inR, inW := io.Pipe()
	out := &syncBuffer{}

	events := make(chan *types.Event, 1)
	host := NewHost(inR, out, echoDispatcher{}, nil)
	host.Forward(events)

	done := make(chan error, 1)
	go func() { done <- host.Serve(context.Background()) }()

	events <- types.NewPageContextEvent(types.PageContext{URL: "https://e.com"}, types.Visibility{types.QuickActionExtract: true})

	require.Eventually(t, func() bool {
		return len(readFrames(t, out.Bytes())) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := inW.Write(frame(t, `{"id":"9","action":"ping"}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(readFrames(t, out.Bytes())) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, inW.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("host did not stop after input closed")
	}

	msgs := readFrames(t, out.Bytes())
	assert.Equal(t, "PAGE_CONTEXT_ANALYZED", msgs[0]["type"])
	assert.Equal(t, "9", msgs[1]["id"])

	raw, err := json.Marshal(msgs[0]["context"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"url":"https://e.com"`)
}

func TestHost_CancelStopsBlockedRead(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()

	host := NewHost(inR, io.Discard, echoDispatcher{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- host.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("host did not stop after cancellation")
	}

	_, err := inW.Write([]byte{0})
	assert.ErrorIs(t, err, io.ErrClosedPipe, "input is closed on return")
}

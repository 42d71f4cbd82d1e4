package messaging

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/entrhq/pagepilot/pkg/logging"
	"github.com/entrhq/pagepilot/pkg/types"
)

// Dispatcher handles one request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req types.Request) types.Response
}

// Host serves requests arriving over a native messaging stream and pushes
// events to the browser between responses.
type Host struct {
	codec      *Codec
	input      io.Reader
	dispatcher Dispatcher
	logger     *logging.Logger
	events     <-chan *types.Event
}

// NewHost creates a host reading requests from r and writing to w.
func NewHost(r io.Reader, w io.Writer, d Dispatcher, logger *logging.Logger) *Host {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Host{
		codec:      NewCodec(r, w),
		input:      r,
		dispatcher: d,
		logger:     logger,
	}
}

// Forward makes Serve write every event received on events to the browser.
// It must be called before Serve.
func (h *Host) Forward(events <-chan *types.Event) {
	h.events = events
}

type readResult struct {
	req types.Request
	err error
}

// Serve processes requests one at a time until the input ends or ctx is
// cancelled. A clean end of input returns nil; cancellation returns
// ctx.Err() without waiting for a blocked read. An input implementing
// io.Closer is closed on return.
func (h *Host) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		if c, ok := h.input.(io.Closer); ok {
			_ = c.Close()
		}
		wg.Wait()
	}()

	if h.events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.forwardEvents(ctx)
		}()
	}

	// The reader is not waited for: it may be parked in a read that only
	// the end of the process interrupts.
	reads := make(chan readResult)
	go h.readRequests(ctx, reads)

	for {
		var res readResult
		select {
		case <-ctx.Done():
			h.logger.Infof("host cancelled: %v", ctx.Err())
			return ctx.Err()
		case res = <-reads:
		}

		switch err := res.err; {
		case errors.Is(err, io.EOF):
			h.logger.Infof("input closed, stopping host")
			return nil
		case errors.Is(err, ErrInvalidMessage):
			h.logger.Warnf("discarding message: %v", err)
			h.reply(types.Fail("invalid message"))
			continue
		case err != nil:
			h.logger.Errorf("failed to read request: %v", err)
			return err
		}

		h.logger.Debugf("request %s (%s)", res.req.Action, res.req.ID)
		h.reply(h.dispatcher.Dispatch(ctx, res.req))
	}
}

// readRequests decodes frames into out until a read fails for good.
func (h *Host) readRequests(ctx context.Context, out chan<- readResult) {
	for {
		var res readResult
		res.err = h.codec.Read(&res.req)

		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
		if res.err != nil && !errors.Is(res.err, ErrInvalidMessage) {
			return
		}
	}
}

// reply writes resp, replacing it with a failure when it is too large.
func (h *Host) reply(resp types.Response) {
	err := h.codec.Write(resp)
	if errors.Is(err, ErrMessageTooLarge) {
		h.logger.Warnf("response to %s too large, sending error instead", resp.ID)
		fail := types.Fail("response too large")
		fail.ID = resp.ID
		err = h.codec.Write(fail)
	}
	if err != nil {
		h.logger.Errorf("failed to write response: %v", err)
	}
}

func (h *Host) forwardEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.events:
			if !ok {
				return
			}
			if err := h.codec.Write(ev); err != nil {
				h.logger.Warnf("failed to forward %s event: %v", ev.Type, err)
			}
		}
	}
}

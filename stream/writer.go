package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/logging"
)

// Sentinel is the literal line closing every stream. It is not a JSON object,
// so clients can detect logical end-of-stream without parsing.
const Sentinel = "[DONE]"

// ServeOptions tune the serialization loop.
type ServeOptions struct {
	// KeepaliveInterval is how long the loop waits on the queue before
	// emitting a keepalive frame. Zero disables keepalives.
	KeepaliveInterval time.Duration
	// Budget is the overall wall-clock bound for the stream. On expiry the
	// loop emits a terminal error frame and stops. Zero means unbounded.
	Budget time.Duration
	// Logger receives loop diagnostics.
	Logger logging.Logger
}

// Flusher matches http.Flusher so frames reach the client promptly.
type Flusher interface {
	Flush()
}

// Serve drains ch onto w as newline-delimited JSON until a terminal event has
// been written and the channel is closed, then writes the sentinel line.
//
// Guarantees:
//   - data events are written in strict FIFO order, never coalesced
//   - exactly one terminal data event precedes the sentinel; if the producer
//     finished without one, a generic error frame is synthesized
//   - on budget expiry a StreamTimeoutError frame is written unless a
//     terminal event already went out, the sentinel follows, and the error
//     is returned so the caller can cancel the producing workflow
//
// A ctx cancellation (client disconnect) stops the loop without writing
// anything further; the transport is gone, so no sentinel is attempted.
//
// Whenever Serve stops consuming before the producer finished (budget
// expiry or disconnect) it closes the channel, so a producer blocked in
// Emit on a full queue is released rather than left waiting forever.
func Serve(ctx context.Context, w io.Writer, ch *Channel, opts ServeOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	flush := func() {
		bw.Flush()
		if f, ok := w.(Flusher); ok {
			f.Flush()
		}
	}

	var deadline <-chan time.Time
	if opts.Budget > 0 {
		timer := time.NewTimer(opts.Budget)
		defer timer.Stop()
		deadline = timer.C
	}

	terminalSeen := false
	writeEvent := func(ev core.StreamEvent) error {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode stream event: %w", err)
		}
		flush()
		if ev.Terminal() {
			terminalSeen = true
		}
		return nil
	}

	finish := func() error {
		if !terminalSeen {
			if err := writeEvent(core.NewErrorEvent("", "workflow ended without result")); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, Sentinel); err != nil {
			return fmt.Errorf("write sentinel: %w", err)
		}
		flush()
		return nil
	}

	var keepalive <-chan time.Time
	if opts.KeepaliveInterval > 0 {
		ticker := time.NewTicker(opts.KeepaliveInterval)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("stream.client_disconnected")
			// Nothing will consume the queue anymore. Closing unblocks a
			// producer waiting in Emit, which then sees false and stops.
			ch.Close()
			return ctx.Err()

		case <-deadline:
			logger.Warn("stream.budget_exceeded", "budget", opts.Budget.String())
			timeoutErr := &core.StreamTimeoutError{Budget: opts.Budget}
			// A terminal frame may already be on the wire; a second one
			// would break the single-terminal guarantee, so only the
			// sentinel follows in that case.
			if !terminalSeen {
				if err := writeEvent(core.NewErrorEvent("", timeoutErr.Error())); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(bw, Sentinel); err != nil {
				return fmt.Errorf("write sentinel: %w", err)
			}
			flush()
			ch.Close()
			return timeoutErr

		case ev := <-ch.Events():
			if err := writeEvent(ev); err != nil {
				return err
			}

		case <-ch.Done():
			// Producer finished: drain whatever is still queued, then close.
			for {
				ev, ok := ch.TryNext()
				if !ok {
					return finish()
				}
				if err := writeEvent(ev); err != nil {
					return err
				}
			}

		case <-keepalive:
			if err := writeEvent(core.NewKeepaliveEvent()); err != nil {
				return err
			}
		}
	}
}

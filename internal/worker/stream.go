package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shl518/vchat/internal/vchat"
	"github.com/shl518/vchat/internal/vchat/prompt"
)

// State is the lifecycle position of a Stream.
type State int32

const (
	StateInit State = iota
	StateSending
	StateStreaming
	StateDone
	StateTimedOut
	StateErrored
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSending:
		return "SENDING"
	case StateStreaming:
		return "STREAMING"
	case StateDone:
		return "DONE"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateErrored:
		return "ERRORED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no further events follow this state.
func (s State) Terminal() bool {
	return s >= StateDone
}

// EventType distinguishes stream events.
type EventType int

const (
	// EventText carries the current response while streaming.
	EventText EventType = iota
	// EventDone carries the final response. It is sent at most once.
	EventDone
	// EventError ends the stream with Err.
	EventError
)

// Event is one item of a stream.
type Event struct {
	Type EventType
	// Text is the whole visible response so far; each event replaces the
	// previous one. On EventError it holds whatever had been received.
	Text string
	// StatusCode is the HTTP status for status errors, 0 otherwise.
	StatusCode int
	Err        error
}

// Stream is a lazy, finite, non-restartable sequence of events produced by
// one generation request. The last event is always EventDone or EventError.
type Stream struct {
	parent    context.Context
	ctx       context.Context
	abort     context.CancelFunc
	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
	cancelled atomic.Bool
	state     atomic.Int32
}

func newStream(parent context.Context) *Stream {
	ctx, abort := context.WithCancel(parent)
	return &Stream{
		parent: parent,
		ctx:    ctx,
		abort:  abort,
		events: make(chan Event, 16),
		closed: make(chan struct{}),
	}
}

// Recv returns the next event, or io.EOF once the stream has ended.
func (s *Stream) Recv() (Event, error) {
	ev, ok := <-s.events
	if !ok {
		return Event{}, io.EOF
	}
	return ev, nil
}

// Cancel aborts the request. The stream still delivers its final event.
// It is safe to call any number of times.
func (s *Stream) Cancel() {
	if !s.State().Terminal() {
		s.cancelled.Store(true)
	}
	s.abort()
}

// Close cancels the request and discards any undelivered events.
func (s *Stream) Close() error {
	s.Cancel()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// State returns the current state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

func (s *Stream) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Stream) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

// finish ends the stream normally with text and releases the connection.
func (s *Stream) finish(state State, text string) {
	s.setState(state)
	s.emit(Event{Type: EventDone, Text: text})
	s.abort()
}

func (s *Stream) fail(state State, err error, statusCode int, text string) {
	s.setState(state)
	s.emit(Event{Type: EventError, Err: err, StatusCode: statusCode, Text: text})
	s.abort()
}

// interrupted classifies an aborted context that this stream did not
// abort itself.
func (s *Stream) interrupted(cause error, text string) {
	if s.cancelled.Load() || s.parent.Err() != nil {
		err := s.parent.Err()
		if err == nil {
			err = context.Canceled
		}
		s.fail(StateCancelled, fmt.Errorf("stream cancelled: %w", err), 0, text)
		return
	}
	s.fail(StateErrored, cause, 0, text)
}

func (s *Stream) run(c *Client, req vchat.GenerationRequest, opts OpenOptions) {
	defer close(s.events)
	defer s.abort()

	s.setState(StateSending)
	skipEchoLen := prompt.SkipEchoLen(req.Prompt)
	c.logger.Debug("[Request] ", "model", req.Model, "prompt_len", len(req.Prompt), "skip_echo_len", skipEchoLen)

	body, err := json.Marshal(req)
	if err != nil {
		s.fail(StateErrored, fmt.Errorf("error marshaling request: %w", err), 0, "")
		return
	}

	httpReq, err := http.NewRequestWithContext(s.ctx, http.MethodPost, c.config.BaseURL+GeneratePath, bytes.NewReader(body))
	if err != nil {
		s.fail(StateErrored, fmt.Errorf("error creating request: %w", err), 0, "")
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)

	var timedOut atomic.Bool
	reqTimer := time.AfterFunc(c.config.RequestTimeout, func() {
		timedOut.Store(true)
		s.abort()
	})

	resp, err := c.httpClient.Do(httpReq)
	stopped := reqTimer.Stop()
	if err != nil {
		if timedOut.Load() {
			c.logger.Error("NetWork Error", "error", ErrRequestTimeout)
			s.fail(StateErrored, fmt.Errorf("%w after %s: %w", ErrRequestTimeout, c.config.RequestTimeout, err), 0, "")
			return
		}
		c.logger.Error("NetWork Error", "error", err)
		s.interrupted(fmt.Errorf("error sending request: %w", err), "")
		return
	}
	defer resp.Body.Close()

	if !stopped && timedOut.Load() {
		s.fail(StateErrored, fmt.Errorf("%w after %s", ErrRequestTimeout, c.config.RequestTimeout), 0, "")
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := newStatusError(resp.StatusCode)
		if errors.Is(statusErr, ErrUnauthorized) {
			c.logger.Error("Unauthorized")
		} else {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			c.logger.Error("Stream Error", "status", resp.StatusCode, "body", string(snippet))
		}
		s.fail(StateErrored, statusErr, resp.StatusCode, "")
		return
	}

	s.setState(StateStreaming)
	if opts.OnController != nil {
		opts.OnController(func() { s.Cancel() })
	}

	s.read(c, resp.Body, skipEchoLen)
}

type readResult struct {
	data []byte
	err  error
}

// read drives the chunk loop until the stream reaches a terminal state.
func (s *Stream) read(c *Client, body io.Reader, skipEchoLen int) {
	reads := make(chan readResult)
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := body.Read(buf)
			var data []byte
			if n > 0 {
				data = append([]byte(nil), buf[:n]...)
			}
			select {
			case reads <- readResult{data: data, err: err}:
			case <-s.ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	frames := newFramer(c.config.Decoder)
	responseText := ""

	timer := time.NewTimer(c.config.ChunkTimeout)
	defer timer.Stop()

	for {
		timer.Reset(c.config.ChunkTimeout)

		select {
		case <-timer.C:
			c.logger.Debug("chunk timeout, finishing stream", "timeout", c.config.ChunkTimeout)
			s.finish(StateTimedOut, responseText)
			return

		case <-s.ctx.Done():
			s.interrupted(s.ctx.Err(), responseText)
			return

		case r := <-reads:
			atEOF := errors.Is(r.err, io.EOF)
			chunks, err := frames.push(r.data, atEOF)
			for _, chunk := range chunks {
				visible := strings.TrimSpace(prompt.SliceUTF16(chunk.Text, skipEchoLen))
				if chunk.ErrorCode != 0 {
					responseText = fmt.Sprintf("%s ErrorCode: %d", visible, chunk.ErrorCode)
					s.finish(StateDone, responseText)
					return
				}
				responseText = visible
				s.emit(Event{Type: EventText, Text: responseText})
			}
			if err != nil {
				c.logger.Error("NetWork Error", "error", err)
				s.fail(StateErrored, err, 0, responseText)
				return
			}

			if atEOF {
				c.logger.Debug("stream complete", "response_len", len(responseText))
				s.finish(StateDone, responseText)
				return
			}
			if r.err != nil {
				if s.ctx.Err() != nil {
					s.interrupted(r.err, responseText)
					return
				}
				c.logger.Error("NetWork Error", "error", r.err)
				s.fail(StateErrored, fmt.Errorf("error reading stream: %w", r.err), 0, responseText)
				return
			}
		}
	}
}

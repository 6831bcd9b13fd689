package wire

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// Session is an authenticated WebSocket connection to the quote-streaming
// service, owned exclusively by one quotes.Manager for the duration of one
// swap (§4.2). It multiplexes request/response and streaming traffic over
// a single socket. Only the read half runs as its own goroutine
// (readPump); there is no writer goroutine — each send writes on the
// calling goroutine, serialized by writeMu. Dispatch is by correlation id
// rather than topic/subscription callbacks.
type Session struct {
	log  *logrus.Entry
	conn *websocket.Conn

	writeMu sync.Mutex // protects conn.WriteMessage; callers write directly from their own goroutines

	mu       sync.Mutex
	pending  map[uuid.UUID]chan pendingResult
	streams  map[uuid.UUID]chan StreamEvent

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

type pendingResult struct {
	payload []byte
	err     error
}

// StreamEvent is delivered to a stream consumer for one correlation id:
// exactly one of Batch, End, Err is set.
type StreamEvent struct {
	Batch *QuoteBatch
	End   *StreamEnd
	Err   error
}

// Dial opens the authenticated WebSocket connection. endpoint is a ws(s)://
// URL; authToken is sent as a bearer credential in the upgrade request
// headers, per §4.2. The server may reject with an HTTP status (surfaced as
// auth_rejected by the caller) or close post-upgrade with a reason code
// (surfaced as a transport_broken read error that tears the session down
// and fails every pending request and active stream).
func Dial(ctx context.Context, endpoint, authToken string, log *logrus.Entry) (*Session, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+authToken)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket upgrade rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}

	s := &Session{
		log:     log.WithField("component", "wire.session"),
		conn:    conn,
		pending: make(map[uuid.UUID]chan pendingResult),
		streams: make(map[uuid.UUID]chan StreamEvent),
		closed:  make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

// readPump is the sole reader of conn; it dispatches decoded server
// messages to pending request channels or active stream channels by
// correlation id. A decode failure or unexpected close tears the session
// down (§4.1, §4.2 failure modes).
func (s *Session) readPump() {
	defer s.teardown(nil)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.teardown(fmt.Errorf("transport_broken: websocket read failed: %w", err))
			return
		}
		payload, err := DecodeFrame(raw)
		if err != nil {
			s.teardown(fmt.Errorf("transport_broken: %w", err))
			return
		}
		msg, err := DecodeServerMessage(payload)
		if err != nil {
			s.teardown(fmt.Errorf("transport_broken: %w", err))
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg ServerMessage) {
	switch m := msg.(type) {
	case Response:
		s.completePending(m.CorrelationID, pendingResult{payload: m.Payload})
	case ServerError:
		if m.CorrelationID == uuid.Nil {
			s.log.WithField("code", m.Code).Warn("session-level error frame received")
			return
		}
		if !s.completePending(m.CorrelationID, pendingResult{err: m}) {
			s.deliverStream(m.CorrelationID, StreamEvent{Err: m})
		}
	case StreamData:
		batch := m.Payload
		s.deliverStream(m.CorrelationID, StreamEvent{Batch: &batch})
	case StreamEnd:
		end := m
		s.deliverStream(m.CorrelationID, StreamEvent{End: &end})
	default:
		s.log.Warnf("dispatch: unhandled server message type %T", msg)
	}
}

func (s *Session) completePending(id uuid.UUID, res pendingResult) bool {
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	close(ch)
	return true
}

func (s *Session) deliverStream(id uuid.UUID, ev StreamEvent) {
	s.mu.Lock()
	ch, ok := s.streams[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- ev:
	case <-s.closed:
	}
}

func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		s.closeErr = cause
		close(s.closed)
		s.conn.Close()

		s.mu.Lock()
		pending := s.pending
		streams := s.streams
		s.pending = nil
		s.streams = nil
		s.mu.Unlock()

		err := cause
		if err == nil {
			err = fmt.Errorf("transport_broken: session closed")
		}
		for _, ch := range pending {
			ch <- pendingResult{err: err}
			close(ch)
		}
		for _, ch := range streams {
			select {
			case ch <- StreamEvent{Err: err}:
			default:
			}
		}
	})
}

// Request sends a client message and blocks for its matching Response (or
// Error), per the request/response pattern in §4.2.
func (s *Session) Request(ctx context.Context, id uuid.UUID, msg ClientMessage) ([]byte, error) {
	ch := make(chan pendingResult, 1)
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("transport_broken: session already closed")
	}
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.send(msg); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case res := <-ch:
		return res.payload, res.err
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, ctx.Err()
	case <-s.closed:
		return nil, fmt.Errorf("transport_broken: session closed while awaiting response")
	}
}

// OpenStream registers a new stream id and sends the subscription request,
// returning the channel StreamData/StreamEnd/Error events arrive on.
func (s *Session) OpenStream(id uuid.UUID, req NewSwapQuoteStream) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 4)
	s.mu.Lock()
	if s.streams == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("transport_broken: session already closed")
	}
	s.streams[id] = ch
	s.mu.Unlock()

	if err := s.send(req); err != nil {
		s.mu.Lock()
		delete(s.streams, id)
		s.mu.Unlock()
		return nil, err
	}
	return ch, nil
}

// StopStream sends the StopStream control frame and unregisters the local
// channel. Per §4.2/§5 cancellation semantics, once this returns, the
// caller is guaranteed no further events for id will be delivered — the
// channel is removed from the dispatch table before send returns control,
// so any frame racing in on the wire finds no destination and is dropped.
func (s *Session) StopStream(id uuid.UUID) error {
	s.mu.Lock()
	delete(s.streams, id)
	s.mu.Unlock()
	return s.send(StopStream{CorrelationID: id})
}

func (s *Session) send(msg ClientMessage) error {
	body, err := EncodeClientMessage(msg)
	if err != nil {
		return fmt.Errorf("encoding client message: %w", err)
	}
	frame, err := EncodeFrame(body)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("transport_broken: websocket write failed: %w", err)
	}
	return nil
}

// Close tears the session down from the caller side (not used mid-swap;
// the core never reconnects mid-stream per §4.2).
func (s *Session) Close() error {
	s.teardown(nil)
	return nil
}

// DecodePayload is a convenience for Request callers: the Response payload
// is opaque msgpack bytes whose shape depends on the original request.
func DecodePayload(payload []byte, out any) error {
	return msgpack.Unmarshal(payload, out)
}

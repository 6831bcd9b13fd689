package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// fakeServer upgrades a single connection and lets the test drive what gets
// written/read on it, mirroring the remote quote-streaming service closely
// enough to exercise Session's multiplexing without a real network peer.
type fakeServer struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader
	connCh     chan *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{connCh: make(chan *websocket.Conn, 1)}
	fs.httpServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fs.connCh <- conn
	}))
	return fs
}

func (fs *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.httpServer.URL, "http")
}

func (fs *fakeServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fs.connCh:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
		return nil
	}
}

func (fs *fakeServer) close() {
	fs.httpServer.Close()
}

func sendServerMessage(t *testing.T, conn *websocket.Conn, msg ServerMessage) {
	t.Helper()
	body, err := EncodeServerMessage(msg)
	if err != nil {
		t.Fatalf("EncodeServerMessage: %v", err)
	}
	frame, err := EncodeFrame(body)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("writing server frame: %v", err)
	}
}

func TestSessionRequestResponse(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess, err := Dial(ctx, fs.wsURL(), "test-token", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	serverConn := fs.accept(t)

	id := uuid.New()
	reqDone := make(chan struct{})
	var gotPayload []byte
	var gotErr error
	go func() {
		gotPayload, gotErr = sess.Request(ctx, id, GetInfo{})
		close(reqDone)
	}()

	// Drain the client's GetInfo frame before answering, the way a real
	// server reads-before-writes on the same connection.
	_, raw, err := serverConn.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if _, err := DecodeFrame(raw); err != nil {
		t.Fatalf("server decode: %v", err)
	}

	sendServerMessage(t, serverConn, Response{CorrelationID: id, Payload: []byte("info-reply")})

	select {
	case <-reqDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Request to resolve")
	}
	if gotErr != nil {
		t.Fatalf("Request returned error: %v", gotErr)
	}
	if string(gotPayload) != "info-reply" {
		t.Fatalf("got payload %q, want %q", gotPayload, "info-reply")
	}
}

func TestSessionStreamDataDelivery(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess, err := Dial(ctx, fs.wsURL(), "test-token", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	serverConn := fs.accept(t)

	id := uuid.New()
	stream, err := sess.OpenStream(id, NewSwapQuoteStream{CorrelationID: id, Amount: 1})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	if _, raw, err := serverConn.ReadMessage(); err != nil {
		t.Fatalf("server read: %v", err)
	} else if _, err := DecodeFrame(raw); err != nil {
		t.Fatalf("server decode: %v", err)
	}

	batch := QuoteBatch{Quotes: []Quote{{ProviderID: "p1", OutAmount: 100}}}
	sendServerMessage(t, serverConn, StreamData{CorrelationID: id, Payload: batch})

	select {
	case ev := <-stream:
		if ev.Batch == nil || len(ev.Batch.Quotes) != 1 || ev.Batch.Quotes[0].ProviderID != "p1" {
			t.Fatalf("unexpected stream event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for StreamData")
	}

	if err := sess.StopStream(id); err != nil {
		t.Fatalf("StopStream: %v", err)
	}

	// A frame racing in after StopStream must find no destination.
	sendServerMessage(t, serverConn, StreamData{CorrelationID: id, Payload: batch})
	select {
	case ev, ok := <-stream:
		if ok {
			t.Fatalf("expected no further delivery after StopStream, got %+v", ev)
		}
	case <-time.After(150 * time.Millisecond):
		// no delivery within the window: expected
	}
}

func TestSessionTeardownFailsPendingRequests(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess, err := Dial(ctx, fs.wsURL(), "test-token", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	serverConn := fs.accept(t)

	id := uuid.New()
	reqDone := make(chan struct{})
	var gotErr error
	go func() {
		_, gotErr = sess.Request(ctx, id, GetInfo{})
		close(reqDone)
	}()

	if _, _, err := serverConn.ReadMessage(); err != nil {
		t.Fatalf("server read: %v", err)
	}
	serverConn.Close()

	select {
	case <-reqDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Request to fail after teardown")
	}
	if gotErr == nil {
		t.Fatal("expected Request to fail once the connection tears down")
	}
}

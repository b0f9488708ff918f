package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/protocol"
	"github.com/teslashibe/go-mimic/pkg/retarget"
	"github.com/teslashibe/go-mimic/pkg/visibility"
)

func init() {
	log.Discard()
}

// mockRenderer records joint frames received over WebSocket.
type mockRenderer struct {
	srv    *httptest.Server
	frames chan *protocol.JointsData
}

func newMockRenderer(t *testing.T) *mockRenderer {
	t.Helper()
	m := &mockRenderer{frames: make(chan *protocol.JointsData, 32)}
	upgrader := websocket.Upgrader{}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil {
				continue
			}
			if d, err := msg.GetJointsData(); err == nil {
				m.frames <- d
			}
		}
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockRenderer) url() string {
	return "ws" + strings.TrimPrefix(m.srv.URL, "http")
}

func (m *mockRenderer) next(t *testing.T) *protocol.JointsData {
	t.Helper()
	select {
	case d := <-m.frames:
		return d
	case <-time.After(time.Second):
		t.Fatal("renderer received nothing")
		return nil
	}
}

func (m *mockRenderer) none(t *testing.T) {
	t.Helper()
	select {
	case d := <-m.frames:
		t.Fatalf("unexpected frame %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func frame(seq uint64, state visibility.State, headZ float64) pipeline.Result {
	return pipeline.Result{
		Seq:    seq,
		Source: "cam",
		Frame: retarget.Frame{
			State:    state,
			Commands: []retarget.Command{{Joint: retarget.HeadZ, Value: headZ}},
		},
	}
}

func TestClient_DeadZone(t *testing.T) {
	r := newMockRenderer(t)
	c := New(Config{URL: r.url()})
	defer c.Close()
	ctx := context.Background()

	if err := c.HandleFrame(ctx, frame(1, visibility.HeadOnly, 0.1)); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if d := r.next(t); d.Seq != 1 || d.Commands[0].Value != 0.1 {
		t.Errorf("first frame = %+v", d)
	}

	// Below the dead zone
	if err := c.HandleFrame(ctx, frame(2, visibility.HeadOnly, 0.102)); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	r.none(t)

	// State change always sends
	if err := c.HandleFrame(ctx, frame(3, visibility.None, 0.102)); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if d := r.next(t); d.State != string(visibility.None) {
		t.Errorf("state frame = %+v", d)
	}

	// Large move sends
	if err := c.HandleFrame(ctx, frame(4, visibility.None, 0.3)); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if d := r.next(t); d.Seq != 4 {
		t.Errorf("move frame = %+v", d)
	}

	stats := c.Stats()
	if !stats.Connected || stats.Frames != 4 || stats.Sent != 3 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// waitErrors polls until the client has counted n errors.
func waitErrors(t *testing.T, c *Client, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Stats().Errors < n {
		if time.Now().After(deadline) {
			t.Fatalf("errors = %d, want %d", c.Stats().Errors, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClient_DialFailureBacksOff(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/nowhere", RetryInterval: time.Hour})
	ctx := context.Background()

	if err := c.HandleFrame(ctx, frame(1, visibility.HeadOnly, 0)); err != nil {
		t.Fatalf("first frame should start a dial, got %v", err)
	}
	waitErrors(t, c, 1)

	if err := c.HandleFrame(ctx, frame(2, visibility.HeadOnly, 0)); !errors.Is(err, ErrBackoff) {
		t.Errorf("second attempt = %v, want ErrBackoff", err)
	}
	if s := c.Stats(); s.Errors != 1 || s.Connected {
		t.Errorf("stats = %+v, want one error and no connection", s)
	}
}

func TestClient_SilentRendererDoesNotBlock(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accept connections but never answer the handshake
	var held []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		for _, conn := range held {
			conn.Close()
		}
		mu.Unlock()
	}()

	c := New(Config{URL: "ws://" + ln.Addr().String(), DialTimeout: 200 * time.Millisecond, RetryInterval: time.Hour})
	defer c.Close()
	ctx := context.Background()

	start := time.Now()
	for i := uint64(1); i <= 30; i++ {
		c.HandleFrame(ctx, frame(i, visibility.HeadOnly, float64(i)))
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("30 frames took %v with a silent renderer, want no blocking", elapsed)
	}

	waitErrors(t, c, 1)
	start = time.Now()
	if err := c.HandleFrame(ctx, frame(31, visibility.HeadOnly, 0)); !errors.Is(err, ErrBackoff) {
		t.Errorf("after handshake timeout = %v, want ErrBackoff", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("backoff frame took %v", elapsed)
	}
}

func TestClient_PendingFrameSentOnConnect(t *testing.T) {
	r := newMockRenderer(t)
	c := New(Config{URL: r.url()})
	defer c.Close()
	ctx := context.Background()

	// Frames before the dial completes collapse to the latest one
	c.HandleFrame(ctx, frame(1, visibility.HeadOnly, 0.1))
	c.HandleFrame(ctx, frame(2, visibility.HeadOnly, 0.2))

	d := r.next(t)
	if d.Seq != 1 && d.Seq != 2 {
		t.Fatalf("first frame = %+v", d)
	}
	if d.Seq == 1 {
		// The dial finished between the two frames
		if d2 := r.next(t); d2.Seq != 2 {
			t.Errorf("second frame = %+v, want seq 2", d2)
		}
	}
	r.none(t)
}

func TestClient_ReconnectResends(t *testing.T) {
	r := newMockRenderer(t)
	c := New(Config{URL: r.url(), RetryInterval: time.Millisecond})
	ctx := context.Background()

	if err := c.HandleFrame(ctx, frame(1, visibility.HeadOnly, 0.1)); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	r.next(t)

	c.Close()
	time.Sleep(5 * time.Millisecond)

	// Same values, but a fresh connection must receive them
	if err := c.HandleFrame(ctx, frame(2, visibility.HeadOnly, 0.1)); err != nil {
		t.Fatalf("HandleFrame after close: %v", err)
	}
	if d := r.next(t); d.Seq != 2 {
		t.Errorf("resent frame = %+v", d)
	}
	c.Close()
}

package ingest

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/landmark"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/protocol"
)

func init() {
	log.Discard()
}

func testSet() *landmark.Set {
	return landmark.FromMap(map[landmark.Index]landmark.Point{
		landmark.Nose:     landmark.Pt(0.5, 0.2),
		landmark.LeftEye:  landmark.Pt(0.52, 0.18),
		landmark.RightEye: landmark.Pt(0.48, 0.18),
	})
}

func startHub(t *testing.T, port string) (*Hub, *fiber.App) {
	t.Helper()
	hub := NewHub()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	go app.Listen(":" + port)
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() { app.Shutdown() })
	return hub, app
}

func send(t *testing.T, conn *websocket.Conn, msg *protocol.Message, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	data, _ := msg.Bytes()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestHub_EstimatorConnect(t *testing.T) {
	hub, _ := startHub(t, "18181")

	connected := make(chan *Stream, 1)
	hub.OnConnect(func(s *Stream) { connected <- s })

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18181/ws/estimator/cam-1", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	select {
	case s := <-connected:
		if s.ID != "cam-1" {
			t.Errorf("stream ID = %q, want cam-1", s.ID)
		}
		if s.State() != pipeline.Paused {
			t.Errorf("new stream state = %s, want paused", s.State())
		}
	case <-time.After(time.Second):
		t.Fatal("OnConnect not called")
	}

	if hub.Count() != 1 {
		t.Errorf("Expected 1 estimator, got %d", hub.Count())
	}
}

func TestHub_GeneratedID(t *testing.T) {
	hub, _ := startHub(t, "18182")

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18182/ws/estimator", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	infos := hub.Infos()
	if len(infos) != 1 || len(infos[0].ID) != 36 {
		t.Errorf("expected one stream with a generated uuid, got %+v", infos)
	}
}

func TestHub_LandmarkStream(t *testing.T) {
	hub, _ := startHub(t, "18183")

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18183/ws/estimator/cam", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	msg, err := protocol.NewLandmarksMessage(1, 1500, testSet())
	send(t, conn, msg, err)
	time.Sleep(50 * time.Millisecond)

	s := hub.Stream("cam")
	if s == nil {
		t.Fatal("stream not registered")
	}
	if s.State() != pipeline.Playing {
		t.Errorf("state after frame = %s, want playing", s.State())
	}
	if s.CurrentTime() != 1500*time.Millisecond {
		t.Errorf("CurrentTime = %v, want 1.5s", s.CurrentTime())
	}
	set, err := s.Detect(context.Background())
	if err != nil || !set.Valid(landmark.Nose) {
		t.Errorf("Detect = %v, %v; want the nose", set, err)
	}

	// Out-of-order frame is dropped
	msg, err = protocol.NewLandmarksMessage(2, 1000, nil)
	send(t, conn, msg, err)
	time.Sleep(50 * time.Millisecond)

	if s.CurrentTime() != 1500*time.Millisecond {
		t.Errorf("stale frame moved media time to %v", s.CurrentTime())
	}
	if got := hub.GetStats().FramesDropped; got != 1 {
		t.Errorf("FramesDropped = %d, want 1", got)
	}
}

func TestHub_BadFrameSurfacesAsDetectError(t *testing.T) {
	hub, _ := startHub(t, "18184")

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18184/ws/estimator/cam", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	msg, err := protocol.NewMessage(protocol.TypeLandmarks, protocol.LandmarkData{
		Seq:         1,
		TimestampMs: 10,
		Points:      make([]*landmark.Point, 3),
	})
	send(t, conn, msg, err)
	time.Sleep(50 * time.Millisecond)

	if _, err := hub.Stream("cam").Detect(context.Background()); err == nil {
		t.Error("wrong point count should make Detect fail")
	}
}

func TestHub_PlaybackControl(t *testing.T) {
	hub, _ := startHub(t, "18185")

	ended := make(chan *Stream, 1)
	hub.OnDisconnect(func(s *Stream) { ended <- s })

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18185/ws/estimator/cam", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	msg, err := protocol.NewLandmarksMessage(1, 10, testSet())
	send(t, conn, msg, err)
	msg, err = protocol.NewMessage(protocol.TypePause, nil)
	send(t, conn, msg, err)
	time.Sleep(50 * time.Millisecond)

	s := hub.Stream("cam")
	if s.State() != pipeline.Paused {
		t.Errorf("state after pause = %s", s.State())
	}

	msg, err = protocol.NewMessage(protocol.TypeResume, nil)
	send(t, conn, msg, err)
	time.Sleep(50 * time.Millisecond)
	if s.State() != pipeline.Playing {
		t.Errorf("state after resume = %s", s.State())
	}

	msg, err = protocol.NewMessage(protocol.TypeEnd, nil)
	send(t, conn, msg, err)

	select {
	case got := <-ended:
		if got.State() != pipeline.Ended {
			t.Errorf("state after end = %s", got.State())
		}
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect not called after end")
	}

	time.Sleep(20 * time.Millisecond)
	if hub.Count() != 0 {
		t.Errorf("ended stream should be removed, count = %d", hub.Count())
	}
}

func TestHub_PingPong(t *testing.T) {
	startHub(t, "18186")

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18186/ws/estimator/cam", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	msg, err := protocol.NewPingMessage("cam")
	send(t, conn, msg, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	reply, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse pong: %v", err)
	}
	if reply.Type != protocol.TypePong {
		t.Errorf("reply type = %s, want pong", reply.Type)
	}
	pong, err := reply.GetPongData()
	if err != nil || pong.PingTS != msg.Timestamp {
		t.Errorf("pong = %+v, %v; want ping ts %d", pong, err, msg.Timestamp)
	}
}

func TestHub_API(t *testing.T) {
	hub := NewHub()
	app := fiber.New()
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/streams/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Streams []Info `json:"streams"`
		Count   int    `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 0 || len(body.Streams) != 0 {
		t.Errorf("empty hub listed %+v", body)
	}

	req = httptest.NewRequest("GET", "/api/streams/stats", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestStream_Detect_Cancelled(t *testing.T) {
	s := newStream("x", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Detect(ctx); err == nil {
		t.Error("cancelled context should fail Detect")
	}
	if err := s.Send(&protocol.Message{Type: protocol.TypePing}); err == nil {
		t.Error("Send without a connection should fail")
	}
}

func TestStream_PauseHoldsAcrossFrames(t *testing.T) {
	s := newStream("x", nil)
	frame := func(seq uint64, ms int64) {
		t.Helper()
		msg, err := protocol.NewLandmarksMessage(seq, ms, testSet())
		if err != nil {
			t.Fatalf("build message: %v", err)
		}
		d, err := msg.GetLandmarkData()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !s.pushLandmarks(d) {
			t.Fatalf("frame %d rejected", seq)
		}
	}

	frame(1, 10)
	if s.State() != pipeline.Playing {
		t.Fatalf("first frame should start playback, state = %s", s.State())
	}

	s.setState(pipeline.Paused)
	frame(2, 20)
	frame(3, 30)
	if s.State() != pipeline.Paused {
		t.Errorf("frames overrode an explicit pause, state = %s", s.State())
	}
	if s.CurrentTime() != 30*time.Millisecond {
		t.Errorf("CurrentTime = %v, want 30ms while paused", s.CurrentTime())
	}

	s.setState(pipeline.Playing)
	frame(4, 40)
	if s.State() != pipeline.Playing {
		t.Errorf("state after resume = %s", s.State())
	}
}

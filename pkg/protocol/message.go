// Package protocol defines the WebSocket message types exchanged with pose
// estimators and joint renderers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-mimic/pkg/landmark"
	"github.com/teslashibe/go-mimic/pkg/overlay"
	"github.com/teslashibe/go-mimic/pkg/retarget"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Estimator → Server messages
	TypeLandmarks MessageType = "landmarks" // One detection frame
	TypePause     MessageType = "pause"     // Source paused
	TypeResume    MessageType = "resume"    // Source playing again
	TypeEnd       MessageType = "end"       // Source finished

	// Server → Renderer messages
	TypeJoints  MessageType = "joints"  // Joint commands for one frame
	TypeOverlay MessageType = "overlay" // Skeleton overlay for one frame

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Estimator → Server Message Types
// =============================================================================

// LandmarkData is one detection result. Points holds landmark.Count
// entries (null for absent landmarks) or is empty when no subject was found.
type LandmarkData struct {
	Seq         uint64            `json:"seq"`
	TimestampMs int64             `json:"timestamp_ms"` // Source media time
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
	Points      []*landmark.Point `json:"points"`
}

// Set converts the points into a landmark set. No points yields nil.
func (d *LandmarkData) Set() (*landmark.Set, error) {
	return landmark.NewSet(d.Points)
}

// =============================================================================
// Server → Renderer Message Types
// =============================================================================

// JointsData carries the commands computed for one frame.
type JointsData struct {
	Seq      uint64             `json:"seq"`
	Source   string             `json:"source,omitempty"` // Estimator stream id
	State    string             `json:"state"`            // Visibility state
	Commands []retarget.Command `json:"commands"`
}

// OverlayData carries the skeleton primitives for one frame. Empty clears.
type OverlayData struct {
	Seq        uint64              `json:"seq"`
	Primitives []overlay.Primitive `json:"primitives"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}

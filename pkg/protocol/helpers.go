package protocol

import (
	"iter"
	"slices"

	"github.com/teslashibe/go-mimic/pkg/landmark"
	"github.com/teslashibe/go-mimic/pkg/overlay"
	"github.com/teslashibe/go-mimic/pkg/retarget"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewLandmarksMessage creates a landmarks message from a set
func NewLandmarksMessage(seq uint64, timestampMs int64, set *landmark.Set) (*Message, error) {
	return NewMessage(TypeLandmarks, LandmarkData{
		Seq:         seq,
		TimestampMs: timestampMs,
		Points:      set.Points(),
	})
}

// NewJointsMessage creates a joint command message
func NewJointsMessage(seq uint64, source string, frame retarget.Frame) (*Message, error) {
	return NewMessage(TypeJoints, JointsData{
		Seq:      seq,
		Source:   source,
		State:    string(frame.State),
		Commands: frame.Commands,
	})
}

// NewOverlayMessage drains prims into an overlay message
func NewOverlayMessage(seq uint64, prims iter.Seq[overlay.Primitive]) (*Message, error) {
	collected := slices.Collect(prims)
	if collected == nil {
		collected = []overlay.Primitive{}
	}
	return NewMessage(TypeOverlay, OverlayData{
		Seq:        seq,
		Primitives: collected,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Set by the receiver from the envelope
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetLandmarkData extracts landmark data from a message
func (m *Message) GetLandmarkData() (*LandmarkData, error) {
	var data LandmarkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetJointsData extracts joint commands from a message
func (m *Message) GetJointsData() (*JointsData, error) {
	var data JointsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetOverlayData extracts overlay primitives from a message
func (m *Message) GetOverlayData() (*OverlayData, error) {
	var data OverlayData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

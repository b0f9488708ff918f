// Package hub fans joint commands and overlays out to connected renderers
// using a channel-based broadcast loop.
package hub

import "github.com/teslashibe/go-mimic/pkg/protocol"

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded protocol message
	JSONMessage MessageType = iota
	// BinaryMessage is a rendered overlay JPEG
	BinaryMessage
)

// Message is one frame queued for renderers.
type Message struct {
	Type MessageType
	Kind protocol.MessageType // Protocol type of a JSON frame; empty for previews
	Data []byte
}

// Optional reports whether a renderer that cannot keep up may miss the
// message without being disconnected. Only previews qualify: joints and
// overlay frames are the renderer's state.
func (m Message) Optional() bool {
	return m.Type == BinaryMessage
}

// NewJSONMessage wraps an encoded protocol message of the given kind
func NewJSONMessage(kind protocol.MessageType, data []byte) Message {
	return Message{Type: JSONMessage, Kind: kind, Data: data}
}

// NewPreviewMessage wraps a JPEG preview
func NewPreviewMessage(jpeg []byte) Message {
	return Message{Type: BinaryMessage, Data: jpeg}
}

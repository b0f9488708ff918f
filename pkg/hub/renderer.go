package hub

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/teslashibe/go-mimic/pkg/overlay"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/protocol"
)

// Renderer publishes frame results to a hub as protocol messages. It is a
// pipeline.FrameSink and a pipeline.OverlaySink.
type Renderer struct {
	hub        *Hub
	overlaySeq atomic.Uint64

	// JPEG previews are broadcast as binary messages when set
	Preview      bool
	PreviewStyle overlay.Style
	PreviewSize  [2]int
}

// NewRenderer creates a renderer sink over h
func NewRenderer(h *Hub) *Renderer {
	return &Renderer{
		hub:          h,
		PreviewStyle: overlay.DefaultStyle(),
		PreviewSize:  [2]int{640, 480},
	}
}

// HandleFrame broadcasts the frame's joint commands.
func (r *Renderer) HandleFrame(_ context.Context, res pipeline.Result) error {
	msg, err := protocol.NewJointsMessage(res.Seq, res.Source, res.Frame)
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	r.hub.Broadcast(NewJSONMessage(protocol.TypeJoints, data))
	return nil
}

// UpdateOverlay broadcasts the skeleton primitives, and a rendered JPEG
// when previews are on.
func (r *Renderer) UpdateOverlay(prims iter.Seq[overlay.Primitive]) {
	seq := r.overlaySeq.Add(1)
	msg, err := protocol.NewOverlayMessage(seq, prims)
	if err != nil {
		r.hub.logger.Warn("encode overlay", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	r.hub.Broadcast(NewJSONMessage(protocol.TypeOverlay, data))

	if !r.Preview {
		return
	}
	jpeg, err := overlay.RenderJPEG(r.PreviewSize[0], r.PreviewSize[1], prims, r.PreviewStyle)
	if err != nil {
		r.hub.logger.Warn("render preview", "error", err)
		return
	}
	r.hub.BroadcastPreview(jpeg)
}

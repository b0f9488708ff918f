package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-mimic/pkg/kinematics"
	"github.com/teslashibe/go-mimic/pkg/overlay"
	"github.com/teslashibe/go-mimic/pkg/record"
	"github.com/teslashibe/go-mimic/pkg/retarget"
)

// Status is the GET /api/status body
type Status struct {
	Robot       string        `json:"robot"`
	Description string        `json:"description"`
	Warnings    int           `json:"warnings"`
	Source      string        `json:"source"`
	Seq         uint64        `json:"seq"`
	State       string        `json:"state"`
	Failed      bool          `json:"failed"`
	LastFrame   *time.Time    `json:"last_frame,omitempty"`
	Uptime      string        `json:"uptime"`
	Renderers   int           `json:"renderers"`
	Estimators  int           `json:"estimators"`
	Remote      *remoteStatus `json:"remote,omitempty"`
}

type remoteStatus struct {
	Connected bool   `json:"connected"`
	Sent      uint64 `json:"sent"`
	Skipped   uint64 `json:"skipped"`
	Errors    uint64 `json:"errors"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// notFound answers 404 with the closest known name when there is one
func notFound(c *fiber.Ctx, kind, name string, candidates []string) error {
	body := fiber.Map{"error": kind + " not found: " + name}
	if s := suggest(name, candidates); s != "" {
		body["suggestion"] = s
	}
	return c.Status(fiber.StatusNotFound).JSON(body)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		Description: s.opts.Description,
		Warnings:    len(s.opts.Warnings),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	}

	if d := s.opts.Driver; d != nil {
		snap := d.Snapshot()
		st.Source = d.SourceID()
		st.Seq = snap.Seq
		st.State = string(snap.Frame.State)
		st.Failed = snap.Failed
		if !snap.At.IsZero() {
			st.LastFrame = &snap.At
		}
		d.WithTree(func(t *kinematics.Tree) { st.Robot = t.Name })
	}
	if s.opts.Renderers != nil {
		st.Renderers = s.opts.Renderers.ClientCount()
	}
	if s.opts.Estimators != nil {
		st.Estimators = s.opts.Estimators.Count()
	}
	if s.opts.Remote != nil {
		rs := s.opts.Remote.Stats()
		st.Remote = &remoteStatus{Connected: rs.Connected, Sent: rs.Sent, Skipped: rs.Skipped, Errors: rs.Errors}
	}
	return c.JSON(st)
}

func (s *Server) handleTree(c *fiber.Ctx) error {
	var view TreeView
	if s.opts.Driver == nil || !s.opts.Driver.WithTree(func(t *kinematics.Tree) { view = treeView(t) }) {
		return errorJSON(c, fiber.StatusServiceUnavailable, "no robot description loaded")
	}
	return c.JSON(fiber.Map{
		"tree":     view,
		"warnings": s.opts.Warnings,
	})
}

func (s *Server) handleJoints(c *fiber.Ctx) error {
	if s.opts.Driver == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "pipeline not running")
	}
	snap := s.opts.Driver.Snapshot()
	commands := snap.Frame.Commands
	if commands == nil {
		commands = []retarget.Command{}
	}

	values := map[string]float64{}
	s.opts.Driver.WithTree(func(t *kinematics.Tree) {
		for _, j := range t.Joints() {
			values[j.Name] = j.Value
		}
	})

	return c.JSON(fiber.Map{
		"seq":      snap.Seq,
		"state":    snap.Frame.State,
		"failed":   snap.Failed,
		"commands": commands,
		"tree":     values,
	})
}

// SetJointRequest is the POST /api/joints/:name body
type SetJointRequest struct {
	Value *float64 `json:"value"`
}

// handleSetJoint drives one joint directly, unclamped. The next processed
// frame overwrites controlled joints.
func (s *Server) handleSetJoint(c *fiber.Ctx) error {
	name := c.Params("name")

	var req SetJointRequest
	if err := c.BodyParser(&req); err != nil || req.Value == nil {
		return errorJSON(c, fiber.StatusBadRequest, `body must be {"value": <number>}`)
	}
	if s.opts.Driver == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "no robot description loaded")
	}

	var (
		found bool
		names []string
		view  JointView
		world WorldView
	)
	loaded := s.opts.Driver.UpdateTree(func(t *kinematics.Tree) {
		j, ok := t.Joint(name)
		if !ok {
			for _, j := range t.Joints() {
				names = append(names, j.Name)
			}
			return
		}
		found = true
		t.UpdateJoint(name, *req.Value)
		view = jointView(j)
		if tf, ok := t.WorldTransform(j.Child); ok {
			world = worldView(j.Child, tf)
		}
	})
	if !loaded {
		return errorJSON(c, fiber.StatusServiceUnavailable, "no robot description loaded")
	}
	if !found {
		return notFound(c, "joint", name, names)
	}

	s.logger.Debug("joint override", "joint", name, "value", *req.Value)
	return c.JSON(fiber.Map{
		"joint": view,
		"child": world,
	})
}

func (s *Server) handleLinkWorld(c *fiber.Ctx) error {
	name := c.Params("name")
	if s.opts.Driver == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "no robot description loaded")
	}

	var (
		found bool
		names []string
		view  WorldView
	)
	loaded := s.opts.Driver.WithTree(func(t *kinematics.Tree) {
		tf, ok := t.WorldTransform(name)
		if !ok {
			for _, l := range t.Links() {
				names = append(names, l.Name)
			}
			return
		}
		found = true
		view = worldView(name, tf)
	})
	if !loaded {
		return errorJSON(c, fiber.StatusServiceUnavailable, "no robot description loaded")
	}
	if !found {
		return notFound(c, "link", name, names)
	}
	return c.JSON(view)
}

func (s *Server) handleOverlay(c *fiber.Ctx) error {
	width := c.QueryInt("width", 640)
	height := c.QueryInt("height", 480)
	if width <= 0 || height <= 0 || width > 4096 || height > 4096 {
		return errorJSON(c, fiber.StatusBadRequest, "width and height must be in 1..4096")
	}

	style := overlay.DefaultStyle()
	style.ShowHidden = c.QueryBool("hidden", style.ShowHidden)

	prims := overlay.Primitives(nil)
	if s.opts.Driver != nil {
		prims = overlay.Primitives(s.opts.Driver.Snapshot().Landmarks)
	}

	jpeg, err := overlay.RenderJPEG(width, height, prims, style)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("jpg")
	return c.Send(jpeg)
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.opts.Store == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "recording disabled")
	}
	sessions, err := s.opts.Store.Sessions().List(c.QueryInt("limit", 100))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	if sessions == nil {
		sessions = []*record.Session{}
	}
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleSessionFrames(c *fiber.Ctx) error {
	if s.opts.Store == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "recording disabled")
	}
	id := c.Params("id")
	repo := s.opts.Store.Sessions()

	sess, err := repo.GetByID(id)
	if errors.Is(err, record.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "session not found: "+id)
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}

	after := c.QueryInt("after", 0)
	if after < 0 {
		after = 0
	}
	frames, err := repo.Frames(id, uint64(after), c.QueryInt("limit", 500))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	if frames == nil {
		frames = []record.Frame{}
	}
	return c.JSON(fiber.Map{
		"session": sess,
		"frames":  frames,
	})
}

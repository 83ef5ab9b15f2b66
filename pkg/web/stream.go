package web

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-grace/pkg/anim"
	"github.com/teslashibe/go-grace/pkg/assistant"
	"github.com/teslashibe/go-grace/pkg/hub"
	"github.com/teslashibe/go-grace/pkg/store"
	"github.com/teslashibe/go-grace/pkg/voice"
)

// stateEvent is the payload of a "state" event.
type stateEvent struct {
	State      voice.State `json:"state"`
	Status     string      `json:"status"`
	Processing bool        `json:"processing"`
}

// bind connects store changes to the animation controller and the event
// stream, and scheduler frames to the orb stream.
func (s *Server) bind() {
	s.unsubs = append(s.unsubs, s.store.Subscribe(func(st voice.State) {
		s.ctrl.OnStateChange(st)
		if err := s.eventHub.BroadcastEvent(hub.EventState, s.stateEvent(st)); err != nil {
			s.logger.Warn("failed to broadcast state", "error", err)
		}
	}))

	s.unsubs = append(s.unsubs, s.store.SubscribeHistory(func(e store.Entry) {
		if err := s.eventHub.BroadcastEvent(hub.EventHistory, e); err != nil {
			s.logger.Warn("failed to broadcast history", "error", err)
		}
	}))

	if s.sched != nil {
		s.unsubs = append(s.unsubs, s.sched.Subscribe(s.publishFrame))
	}
}

func (s *Server) stateEvent(st voice.State) stateEvent {
	return stateEvent{
		State:      st,
		Status:     assistant.StatusText(st),
		Processing: s.store.IsProcessing(),
	}
}

// publishFrame renders a frame for orb stream clients. Frames are not
// rendered while nobody is watching.
func (s *Server) publishFrame(f anim.Frame) {
	if s.orbHub.ClientCount() == 0 {
		return
	}
	scene := s.renderer.Render(f)
	if err := s.orbHub.BroadcastEvent(hub.EventFrame, scene); err != nil {
		s.logger.Warn("failed to broadcast frame", "error", err)
	}
}

func (s *Server) handleOrbWS(c *websocket.Conn) {
	s.orbHub.Attach(c)
}

func (s *Server) handleEventsWS(c *websocket.Conn) {
	// Greet the new client with the current state before it joins the
	// broadcast.
	data, err := json.Marshal(hub.Event{Type: hub.EventState, Data: s.stateEvent(s.store.State())})
	if err == nil {
		_ = c.WriteMessage(websocket.TextMessage, data)
	}
	s.eventHub.Attach(c)
}

// command is a control message sent by event stream clients.
type command struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
}

func (s *Server) handleInbound(data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.logger.Debug("ignoring malformed command", "error", err)
		return
	}

	ctx := context.Background()
	var err error
	switch cmd.Type {
	case "start":
		err = s.withConversation(func(c Conversation) error { return c.Start(ctx) })
	case "end":
		err = s.withConversation(func(c Conversation) error { return c.End(ctx) })
	case "toggle":
		err = s.withConversation(func(c Conversation) error { return c.Toggle(ctx) })
	case "state":
		var st voice.State
		st, err = voice.ParseStrict(cmd.State)
		if err == nil {
			s.store.SetState(st)
		}
	default:
		s.logger.Debug("unknown command", "type", cmd.Type)
		return
	}
	if err != nil {
		s.logger.Warn("command failed", "type", cmd.Type, "error", err)
	}
}

func (s *Server) withConversation(fn func(Conversation) error) error {
	if s.conv == nil {
		return errNoConversation
	}
	return fn(s.conv)
}

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanbriolat/bsky-video-dl/internal/session"
)

func messageFor(e session.Event) Message {
	m := Message{Kind: e.Kind()}
	switch e := e.(type) {
	case session.IntakeUpdated:
		m.Intake = &e.NewState
	case session.OrchestratorUpdated:
		m.Orchestrator = &e.NewState
	case session.URLValidated:
		m.URL = e.URL
		m.Address = e.Address
	}
	return m
}

// handleEvents streams a snapshot followed by every session event until the client goes away.
func (srv *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := srv.session.Subscribe()
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	defer events.Close()

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	log := srv.log.With("remote", r.RemoteAddr)
	log.Debug("client connected")
	defer log.Debug("client disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// Nothing is expected from the client, but reading is how a close is noticed
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap, err := srv.snapshot()
	if err != nil {
		log.Warnw("failed to take snapshot", "error", err)
		return
	}
	if err := srv.write(conn, Message{
		Kind:         "snapshot",
		Intake:       &snap.Intake,
		Orchestrator: &snap.Orchestrator,
		Address:      snap.Address,
	}); err != nil {
		return
	}

	ping := time.NewTicker(srv.config.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events.Receive():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(srv.config.WriteTimeout))
				return
			}
			if err := srv.write(conn, messageFor(e)); err != nil {
				log.Debugw("write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(srv.config.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (srv *Server) write(conn *websocket.Conn, m Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(srv.config.WriteTimeout))
	return conn.WriteJSON(m)
}

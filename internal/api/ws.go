package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacyplayer-go/internal/services/pubsub"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 10 * time.Second
	subBuffer    = 16
)

// Frame is one message pushed to a control surface.
type Frame struct {
	Topic pubsub.Topic `json:"topic"`
	Data  any          `json:"data"`
}

// snapshot is the current state of every topic, sent when a surface connects.
func (s *Server) snapshot() []Frame {
	return []Frame{
		{Topic: pubsub.TopicProject, Data: s.svc.Projects.Snapshot()},
		{Topic: pubsub.TopicPlayerState, Data: s.svc.Player.State()},
		{Topic: pubsub.TopicOutputs, Data: s.svc.Outputs.Status()},
		{Topic: pubsub.TopicBrightness, Data: s.svc.Brightness.Levels()},
	}
}

// handleWebSocket streams every pubsub topic to the client until it
// disconnects. Slow clients miss intermediate updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  WebSocket upgrade failed: %v", err)
		return
	}

	subs := make([]*pubsub.Subscriber, 0, len(pubsub.AllTopics))
	for _, topic := range pubsub.AllTopics {
		subs = append(subs, s.svc.Events.Subscribe(topic, subBuffer))
	}

	done := make(chan struct{})
	out := make(chan Frame, subBuffer)
	var forwarders sync.WaitGroup

	go s.readPump(conn, done)
	defer func() {
		_ = conn.Close()
		<-done
		for _, sub := range subs {
			s.svc.Events.Unsubscribe(sub)
		}
		forwarders.Wait()
	}()
	for _, sub := range subs {
		forwarders.Add(1)
		go func(sub *pubsub.Subscriber) {
			defer forwarders.Done()
			for msg := range sub.Channel {
				select {
				case out <- Frame{Topic: sub.Topic, Data: msg}:
				case <-done:
				}
			}
		}(sub)
	}

	for _, f := range s.snapshot() {
		if err := writeFrame(conn, f); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case f := <-out:
			if err := writeFrame(conn, f); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and closes done when the connection drops.
func (s *Server) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

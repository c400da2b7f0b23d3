package server

import (
	"context"
	"net/http"

	"gemfield/model"
	"gemfield/pipeline"
	"gemfield/runner"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Server exposes the generator over a websocket: a client adjusts parameters,
// starts a run and receives every step as it happens.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	runner   runner.Runner
	params   model.Params
	opts     pipeline.Options
}

func NewServer(addr string, upgrader websocket.Upgrader, r runner.Runner, params model.Params, opts pipeline.Options) *Server {
	return &Server{
		addr:     addr,
		upgrader: upgrader,
		runner:   r,
		params:   params,
		opts:     opts,
	}
}

// serveWs handles websocket requests from the peer.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(conn, s.runner, s.params, s.opts)
	written := make(chan struct{})
	go func() {
		hub.handleResponse()
		close(written)
	}()
	go hub.handleRequest(ctx)

	log.WithField("remote", r.RemoteAddr).Info("client connected")
	for {
		var msg model.Msg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("read from client")
			}
			break
		}
		hub.msg <- msg
	}
	close(hub.msg)
	<-written
	log.WithField("remote", r.RemoteAddr).Info("client disconnected")
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	return mux
}

func (s *Server) Serve() error {
	log.WithField("addr", s.addr).Info("serving websocket on /ws")
	return http.ListenAndServe(s.addr, s.Handler())
}

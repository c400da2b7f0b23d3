package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"gemfield/model"
	"gemfield/pipeline"
	"gemfield/runner"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Hub serves one client connection. At most one run is active per client.
type Hub struct {
	conn   *websocket.Conn
	runner runner.Runner
	opts   pipeline.Options
	params model.Params

	// request
	msg chan model.Msg
	// response
	reply chan model.Msg

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func NewHub(conn *websocket.Conn, r runner.Runner, params model.Params, opts pipeline.Options) *Hub {
	return &Hub{
		conn:   conn,
		runner: r,
		opts:   opts,
		params: params.Clone(),
		msg:    make(chan model.Msg, 10),
		reply:  make(chan model.Msg, 64),
	}
}

func (h *Hub) handleResponse() {
	for reply := range h.reply {
		if err := h.conn.WriteJSON(&reply); err != nil {
			log.WithError(err).Warn("write to client")
		}
	}
}

// handleRequest dispatches client messages until the connection is gone, then
// stops the active run and closes the reply stream.
func (h *Hub) handleRequest(ctx context.Context) {
	for msg := range h.msg {
		switch msg.Type {
		case model.MsgEnv:
			h.setEnv(msg.Content)
		case model.MsgStart:
			h.start(ctx)
		case model.MsgStop:
			h.stop()
			h.reply <- model.Msg{Type: model.MsgStopped, Content: "stopped"}
		default:
			log.WithField("type", msg.Type).Warn("no such type")
			h.reply <- model.Msg{Type: model.MsgError, Content: "no such type: " + msg.Type}
		}
	}
	h.stop()
	h.wg.Wait()
	close(h.reply)
}

// envPatch lists what a client may change. Folder, geometry files, tools
// and workers stay as the server was started with.
type envPatch struct {
	Type                   *string         `json:"type"`
	Geometry               *model.Geometry `json:"geometry"`
	Field                  *model.Field    `json:"field"`
	PermittivityDielectric *float64        `json:"permittivity_dielectric"`
	Mode                   *model.Mode     `json:"mode"`
}

// patchParams decodes content over a copy of p. Unknown keys are an error.
func patchParams(p model.Params, content string) (model.Params, error) {
	p = p.Clone()
	// 指向副本的字段，未出现的键保持原值
	patch := envPatch{
		Type:                   &p.Type,
		Geometry:               &p.Geometry,
		Field:                  &p.Field,
		PermittivityDielectric: &p.PermittivityDielectric,
		Mode:                   &p.Mode,
	}
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return model.Params{}, err
	}
	if patch.Type == nil || patch.Geometry == nil || patch.Field == nil ||
		patch.PermittivityDielectric == nil || patch.Mode == nil {
		return model.Params{}, errors.New("null is not a valid parameter value")
	}
	return p, nil
}

// setEnv patches the session parameters with the JSON in content.
func (h *Hub) setEnv(content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		h.reply <- model.Msg{Type: model.MsgError, Content: "cannot change parameters while running"}
		return
	}
	p, err := patchParams(h.params, content)
	if err != nil {
		log.WithError(err).Warn("reject env patch")
		h.reply <- model.Msg{Type: model.MsgError, Content: err.Error()}
		return
	}
	h.params = p
	data, _ := json.Marshal(p)
	h.reply <- model.Msg{Type: model.MsgEnvSet, Content: string(data)}
}

func (h *Hub) start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		h.reply <- model.Msg{Type: model.MsgError, Content: "already running"}
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.wg.Add(1)
	go h.run(ctx, h.params.Clone())
}

func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

func (h *Hub) run(ctx context.Context, p model.Params) {
	defer h.wg.Done()

	events := pipeline.NewHub()
	ch, unsubscribe := events.Subscribe(64)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for e := range ch {
			data, _ := json.Marshal(e)
			h.reply <- model.Msg{Type: model.MsgStep, Content: string(data)}
		}
	}()

	opts := h.opts
	opts.Hub = events
	report, err := pipeline.New(p, h.runner, opts).Run(ctx)
	unsubscribe()
	<-forwarded

	h.mu.Lock()
	h.running = false
	h.cancel()
	h.cancel = nil
	h.mu.Unlock()

	if err != nil {
		h.reply <- model.Msg{Type: model.MsgFailed, Content: err.Error()}
		return
	}
	data, _ := json.Marshal(report)
	h.reply <- model.Msg{Type: model.MsgFinished, Content: string(data)}
}

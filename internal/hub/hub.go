// Package hub owns broadcast groups. A group is a named set of local
// connections; broadcasts also traverse a publish/subscribe fanout so
// connections on other instances receive them.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"engage-ws/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Envelope is one group broadcast as it travels between instances.
type Envelope struct {
	Origin string          `json:"origin"`
	Group  string          `json:"group"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Fanout propagates envelopes to other instances. A nil Fanout leaves the
// hub in single-instance mode; broadcasts stay local.
type Fanout interface {
	Publish(ctx context.Context, env Envelope) error
}

// Socket is the write side of one client connection.
type Socket interface {
	WriteJSON(v interface{}) error
}

// Conn serializes writes to one socket. Fiber websocket connections do not
// tolerate concurrent writers.
type Conn struct {
	id   string
	sock Socket
	mu   sync.Mutex
}

func NewConn(id string, sock Socket) *Conn {
	return &Conn{id: id, sock: sock}
}

func (c *Conn) ID() string { return c.id }

// Send writes one server event to this connection.
func (c *Conn) Send(event string, data interface{}) error {
	return c.write(domain.ServerEvent{Event: event, Success: true, Data: data})
}

// SendError writes an error envelope; the connection stays open.
func (c *Conn) SendError(event, code, message string) error {
	return c.write(domain.ServerEvent{Event: event, Success: false, Code: code, Error: message})
}

func (c *Conn) write(v interface{}) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = nil // a torn-down socket is handled by the read loop
		}
	}()
	return c.sock.WriteJSON(v)
}

type Hub struct {
	log        *zap.Logger
	instanceID string
	fanout     Fanout

	mu     sync.RWMutex
	groups map[string]map[*Conn]struct{}
	conns  map[*Conn]map[string]struct{}
}

func New(log *zap.Logger, fanout Fanout) *Hub {
	return &Hub{
		log:        log,
		instanceID: uuid.New().String(),
		fanout:     fanout,
		groups:     make(map[string]map[*Conn]struct{}),
		conns:      make(map[*Conn]map[string]struct{}),
	}
}

func (h *Hub) InstanceID() string { return h.instanceID }

func (h *Hub) Join(group string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[*Conn]struct{})
	}
	h.groups[group][c] = struct{}{}

	if h.conns[c] == nil {
		h.conns[c] = make(map[string]struct{})
	}
	h.conns[c][group] = struct{}{}

	h.log.Debug("connection joined group",
		zap.String("conn", c.id), zap.String("group", group),
		zap.Int("members", len(h.groups[group])))
}

func (h *Hub) Leave(group string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(group, c)
}

func (h *Hub) leaveLocked(group string, c *Conn) {
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if groups, ok := h.conns[c]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(h.conns, c)
		}
	}
}

// LeaveAll removes a disconnected connection from every group it joined.
func (h *Hub) LeaveAll(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for group := range h.conns[c] {
		h.leaveLocked(group, c)
	}
	delete(h.conns, c)
}

// Broadcast emits an event to a group on every instance. The local members
// receive it under the canonical name and any legacy aliases; the fanout
// carries only the canonical name and remote instances re-expand it.
func (h *Hub) Broadcast(ctx context.Context, group, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error("failed to encode broadcast payload",
			zap.String("group", group), zap.String("event", event), zap.Error(err))
		return
	}

	h.deliverLocal(group, event, raw)

	if h.fanout == nil {
		return
	}
	env := Envelope{Origin: h.instanceID, Group: group, Event: event, Data: raw}
	if err := h.fanout.Publish(ctx, env); err != nil {
		h.log.Warn("fanout publish failed, broadcast stayed local",
			zap.String("group", group), zap.String("event", event), zap.Error(err))
	}
}

// HandleRemote applies an envelope received from another instance.
func (h *Hub) HandleRemote(env Envelope) {
	if env.Origin == h.instanceID {
		return
	}
	h.deliverLocal(env.Group, env.Event, env.Data)
}

func (h *Hub) deliverLocal(group, event string, raw json.RawMessage) {
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return
	}

	names := domain.EmitNames(event)

	var wg sync.WaitGroup
	for _, c := range members {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			for _, name := range names {
				if err := c.Send(name, raw); err != nil {
					h.log.Warn("failed to deliver broadcast, dropping member",
						zap.String("conn", c.id), zap.String("group", group), zap.Error(err))
					h.Leave(group, c)
					return
				}
			}
		}(c)
	}
	wg.Wait()
}

// GroupSize reports the local member count, used by tests and monitoring.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

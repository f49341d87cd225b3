package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"engage-ws/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSocket struct {
	mu     sync.Mutex
	events []domain.ServerEvent
	fail   bool
}

func (s *fakeSocket) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("write on closed socket")
	}
	s.events = append(s.events, v.(domain.ServerEvent))
	return nil
}

func (s *fakeSocket) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Event
	}
	return out
}

type fakeFanout struct {
	mu   sync.Mutex
	envs []Envelope
	err  error
}

func (f *fakeFanout) Publish(_ context.Context, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.envs = append(f.envs, env)
	return nil
}

func TestBroadcastReachesGroupMembers(t *testing.T) {
	h := New(zap.NewNop(), nil)

	a, b, outsider := &fakeSocket{}, &fakeSocket{}, &fakeSocket{}
	connA, connB := NewConn("a", a), NewConn("b", b)
	h.Join("company:c1", connA)
	h.Join("company:c1", connB)
	h.Join("company:c2", NewConn("x", outsider))

	h.Broadcast(context.Background(), "company:c1", domain.EventSessionUpdated, map[string]string{"sessionId": "s1"})

	assert.Equal(t, []string{domain.EventSessionUpdated}, a.names())
	assert.Equal(t, []string{domain.EventSessionUpdated}, b.names())
	assert.Empty(t, outsider.names())
}

func TestBroadcastEmitsLegacyAliases(t *testing.T) {
	h := New(zap.NewNop(), nil)
	s := &fakeSocket{}
	h.Join("visitor:v1", NewConn("a", s))

	h.Broadcast(context.Background(), "visitor:v1", domain.EventChatMessage, map[string]string{"text": "hi"})

	assert.Equal(t, []string{domain.EventChatMessage, "new-message"}, s.names())
}

func TestBroadcastPublishesToFanout(t *testing.T) {
	f := &fakeFanout{}
	h := New(zap.NewNop(), f)
	h.Join("company:c1", NewConn("a", &fakeSocket{}))

	h.Broadcast(context.Background(), "company:c1", domain.EventVisitorJoined, map[string]string{"visitorId": "v1"})

	require.Len(t, f.envs, 1)
	env := f.envs[0]
	assert.Equal(t, h.InstanceID(), env.Origin)
	assert.Equal(t, "company:c1", env.Group)
	assert.Equal(t, domain.EventVisitorJoined, env.Event)
}

func TestFanoutFailureStaysLocal(t *testing.T) {
	f := &fakeFanout{err: errors.New("bus unavailable")}
	h := New(zap.NewNop(), f)
	s := &fakeSocket{}
	h.Join("company:c1", NewConn("a", s))

	h.Broadcast(context.Background(), "company:c1", domain.EventSessionUpdated, map[string]string{})

	// Local delivery still happened.
	assert.Equal(t, []string{domain.EventSessionUpdated}, s.names())
}

func TestHandleRemote(t *testing.T) {
	h := New(zap.NewNop(), nil)
	s := &fakeSocket{}
	h.Join("company:c1", NewConn("a", s))

	raw, _ := json.Marshal(map[string]string{"visitorId": "v1"})

	// Own envelopes are skipped to avoid double delivery.
	h.HandleRemote(Envelope{Origin: h.InstanceID(), Group: "company:c1", Event: domain.EventVisitorJoined, Data: raw})
	assert.Empty(t, s.names())

	h.HandleRemote(Envelope{Origin: "other-instance", Group: "company:c1", Event: domain.EventVisitorJoined, Data: raw})
	assert.Equal(t, []string{domain.EventVisitorJoined, "session-created"}, s.names())
}

func TestDeadMemberIsEvicted(t *testing.T) {
	h := New(zap.NewNop(), nil)
	dead := &fakeSocket{fail: true}
	live := &fakeSocket{}
	h.Join("company:c1", NewConn("dead", dead))
	h.Join("company:c1", NewConn("live", live))

	h.Broadcast(context.Background(), "company:c1", domain.EventSessionUpdated, map[string]string{})

	assert.Equal(t, 1, h.GroupSize("company:c1"))
	assert.Len(t, live.names(), 1)
}

func TestLeaveAll(t *testing.T) {
	h := New(zap.NewNop(), nil)
	c := NewConn("a", &fakeSocket{})
	h.Join("visitor:v1", c)
	h.Join("company:c1", c)

	h.LeaveAll(c)

	assert.Zero(t, h.GroupSize("visitor:v1"))
	assert.Zero(t, h.GroupSize("company:c1"))
}

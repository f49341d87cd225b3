package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"engage-ws/internal/config"
	"engage-ws/internal/domain"
	"engage-ws/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	mu    sync.Mutex
	leads []domain.LeadCapture
}

func (s *fakeSink) Enqueue(lead domain.LeadCapture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
}

func (s *fakeSink) captured() []domain.LeadCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LeadCapture(nil), s.leads...)
}

func newTestServer(t *testing.T) (*Server, *store.Memory, *fakeSink) {
	t.Helper()
	env := newTestEnv(t)
	sink := &fakeSink{}
	cfg := &config.Config{Port: "0", Environment: "development"}
	srv := NewServer(cfg, env.store, env.manager.validate, env.manager, env.manager.metrics, nil, sink, zap.NewNop())
	return srv, env.store, sink
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.newApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestCreateLeadEndpoint(t *testing.T) {
	srv, mem, sink := newTestServer(t)

	status, body := doJSON(t, srv, "POST", "/api/leads", map[string]interface{}{
		"name":      "Ada Lovelace",
		"email":     "ada@example.com",
		"websiteId": "w1",
		"notes":     "asked about pricing",
	})
	require.Equal(t, 201, status, string(body))

	var lead domain.LeadCapture
	require.NoError(t, json.Unmarshal(body, &lead))
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, domain.LeadStatusNew, lead.Status)
	assert.Equal(t, domain.LeadSourceWebsite, lead.Source)

	saved, err := mem.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", saved.Name)

	// With no publisher the lead lands on the local webhook queue.
	captured := sink.captured()
	require.Len(t, captured, 1)
	assert.Equal(t, lead.ID, captured[0].ID)
}

func TestCreateLeadEndpointValidation(t *testing.T) {
	srv, mem, sink := newTestServer(t)

	status, _ := doJSON(t, srv, "POST", "/api/leads", map[string]interface{}{
		"name":  "Ada Lovelace",
		"email": "not-an-email",
	})
	assert.Equal(t, 400, status)

	n, err := mem.CountLeads(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.captured())
}

func TestUpdateLeadEndpoint(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	require.NoError(t, mem.SaveLead(context.Background(), &domain.LeadCapture{
		ID: "l1", Name: "Ada Lovelace", Status: domain.LeadStatusNew, CapturedAt: time.Now(),
	}))

	status, body := doJSON(t, srv, "PUT", "/api/leads/l1", map[string]interface{}{
		"status": "qualified",
		"notes":  "followed up by phone",
	})
	require.Equal(t, 200, status, string(body))

	saved, err := mem.GetLead(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, "qualified", saved.Status)
	assert.Equal(t, "followed up by phone", saved.Notes)
	assert.Equal(t, "Ada Lovelace", saved.Name, "omitted fields stay untouched")

	status, _ = doJSON(t, srv, "PUT", "/api/leads/missing", map[string]interface{}{"status": "qualified"})
	assert.Equal(t, 404, status)
}

func TestListVisitorsEndpoint(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveVisitor(ctx, &domain.Visitor{ID: "v1", CompanyID: "c1", Status: domain.StatusOnline}))
	require.NoError(t, mem.SaveVisitor(ctx, &domain.Visitor{ID: "v2", CompanyID: "c1", Status: domain.StatusOffline}))

	status, body := doJSON(t, srv, "GET", "/api/visitors?companyId=c1", nil)
	require.Equal(t, 200, status)

	var visitors []domain.Visitor
	require.NoError(t, json.Unmarshal(body, &visitors))
	require.Len(t, visitors, 1)
	assert.Equal(t, "v1", visitors[0].ID)

	status, _ = doJSON(t, srv, "GET", "/api/visitors", nil)
	assert.Equal(t, 400, status, "companyId is mandatory")
}

func TestChatEndpoints(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveChat(ctx, &domain.Chat{
		ChatID: "chat1", VisitorID: "v1", CompanyID: "c1", Status: domain.ChatOpen,
	}))
	require.NoError(t, mem.SaveMessage(ctx, &domain.Message{
		ID: "m1", VisitorID: "v1", Sender: domain.SenderVisitor, Text: "hello",
	}))

	status, body := doJSON(t, srv, "GET", "/api/chats/chat1/messages", nil)
	require.Equal(t, 200, status)
	var messages []domain.Message
	require.NoError(t, json.Unmarshal(body, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Text)

	status, body = doJSON(t, srv, "PATCH", "/api/chats/chat1/status", map[string]interface{}{"status": "closed"})
	require.Equal(t, 200, status, string(body))
	chat, err := mem.GetChat(ctx, "chat1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChatClosed, chat.Status)
	require.NotNil(t, chat.ClosedAt)

	status, _ = doJSON(t, srv, "PATCH", "/api/chats/chat1/status", map[string]interface{}{"status": "archived"})
	assert.Equal(t, 400, status)

	status, _ = doJSON(t, srv, "GET", "/api/chats/missing/messages", nil)
	assert.Equal(t, 404, status)
}

func TestAgentMessageEndpoint(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveVisitor(ctx, &domain.Visitor{ID: "v1", CompanyID: "c1", Status: domain.StatusOnline}))

	status, body := doJSON(t, srv, "POST", "/api/messages/agent", map[string]interface{}{
		"visitorId": "v1",
		"text":      "thanks for reaching out",
	})
	require.Equal(t, 201, status, string(body))

	msgs, err := mem.ListMessagesByVisitor(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.SenderAgent, msgs[0].Sender)

	status, _ = doJSON(t, srv, "POST", "/api/messages/agent", map[string]interface{}{
		"visitorId": "ghost",
		"text":      "anyone?",
	})
	assert.Equal(t, 404, status)
}

func TestCompanyMetricsEndpoint(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveVisitor(ctx, &domain.Visitor{ID: "v1", CompanyID: "c1", Status: domain.StatusOnline}))
	require.NoError(t, mem.SaveLead(ctx, &domain.LeadCapture{ID: "l1", CapturedAt: time.Now()}))
	require.NoError(t, mem.SaveSession(ctx, &domain.VisitorSession{SessionID: "s1", CompanyID: "c1", VisitorID: "v1", DurationSeconds: 12}))

	status, body := doJSON(t, srv, "GET", "/api/metrics?companyId=c1", nil)
	require.Equal(t, 200, status)

	var m domain.Metrics
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, int64(1), m.ActiveVisitors)
	assert.Equal(t, int64(1), m.TotalLeads)
	assert.Equal(t, int64(12), m.AvgSessionDurationSeconds)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	status, body := doJSON(t, srv, "GET", "/health", nil)
	require.Equal(t, 200, status)
	assert.Contains(t, string(body), `"status":"ok"`)
}

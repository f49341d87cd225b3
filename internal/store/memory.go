package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"engage-ws/internal/domain"
)

// Memory is an in-process Store. It backs local development when no Mongo
// URI is configured, and the handler tests.
type Memory struct {
	mu       sync.RWMutex
	visitors map[string]domain.Visitor
	sessions map[string]domain.VisitorSession
	chats    map[string]domain.Chat
	messages []domain.Message
	leads    map[string]domain.LeadCapture
	websites map[string]domain.Website
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		visitors: make(map[string]domain.Visitor),
		sessions: make(map[string]domain.VisitorSession),
		chats:    make(map[string]domain.Chat),
		leads:    make(map[string]domain.LeadCapture),
		websites: make(map[string]domain.Website),
	}
}

func (m *Memory) GetVisitor(_ context.Context, id string) (*domain.Visitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.visitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *Memory) GetVisitorByConnection(_ context.Context, connID string) (*domain.Visitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.visitors {
		if v.ConnectionID == connID {
			v := v
			return &v, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveVisitor(_ context.Context, v *domain.Visitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitors[v.ID] = *v
	return nil
}

func (m *Memory) UpdateVisitorContact(_ context.Context, id, name, email, phone string) (*domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	v.Name = name
	v.Email = email
	v.Phone = phone
	v.UpdatedAt = time.Now()
	m.visitors[id] = v
	return &v, nil
}

func (m *Memory) ListOnlineVisitors(_ context.Context, companyID string) ([]domain.Visitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Visitor
	for _, v := range m.visitors {
		if v.CompanyID == companyID && v.Status == domain.StatusOnline {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CountOnlineVisitors(ctx context.Context, companyID string) (int64, error) {
	online, err := m.ListOnlineVisitors(ctx, companyID)
	if err != nil {
		return 0, err
	}
	return int64(len(online)), nil
}

func (m *Memory) SaveSession(_ context.Context, s *domain.VisitorSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = *s
	return nil
}

func (m *Memory) GetSession(_ context.Context, sessionID string) (*domain.VisitorSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) TouchSession(_ context.Context, sessionID string, at time.Time) (*domain.VisitorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.DurationSeconds++
	s.LastActiveAt = at
	m.sessions[sessionID] = s
	return &s, nil
}

func (m *Memory) CloseSessionsForVisitor(_ context.Context, visitorID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.VisitorID == visitorID && s.IsActive {
			s.IsActive = false
			s.LastActiveAt = at
			m.sessions[id] = s
		}
	}
	return nil
}

func (m *Memory) ListSessionsByCompany(_ context.Context, companyID string) ([]domain.VisitorSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.VisitorSession
	for _, s := range m.sessions {
		if s.CompanyID == companyID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (m *Memory) AverageSessionDuration(ctx context.Context, companyID string) (float64, error) {
	sessions, err := m.ListSessionsByCompany(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, nil
	}
	var total int64
	for _, s := range sessions {
		total += s.DurationSeconds
	}
	return float64(total) / float64(len(sessions)), nil
}

func (m *Memory) FindOpenChat(_ context.Context, visitorID string) (*domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chats {
		if c.VisitorID == visitorID && c.Status == domain.ChatOpen {
			c := c
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveChat(_ context.Context, c *domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[c.ChatID] = *c
	return nil
}

func (m *Memory) GetChat(_ context.Context, chatID string) (*domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) SaveMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *Memory) CountMessagesByVisitor(_ context.Context, visitorID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, msg := range m.messages {
		if msg.VisitorID == visitorID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) HasSystemMessage(_ context.Context, visitorID, text string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages {
		if msg.VisitorID == visitorID && msg.Sender == domain.SenderSystem && msg.Text == text {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListMessagesByVisitor(_ context.Context, visitorID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.VisitorID == visitorID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveLead(_ context.Context, l *domain.LeadCapture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[l.ID] = *l
	return nil
}

func (m *Memory) GetLead(_ context.Context, id string) (*domain.LeadCapture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (m *Memory) ListLeads(_ context.Context) ([]domain.LeadCapture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.LeadCapture, 0, len(m.leads))
	for _, l := range m.leads {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out, nil
}

func (m *Memory) CountLeads(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.leads)), nil
}

func (m *Memory) GetWebsite(_ context.Context, id string) (*domain.Website, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.websites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

// SaveWebsite seeds collaborator data; the core itself never writes
// websites.
func (m *Memory) SaveWebsite(w *domain.Website) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.websites[w.ID] = *w
}

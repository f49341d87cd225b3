// Package engage arms the per-connection welcome timer. If a visitor has
// not exchanged any message within the dwell interval after joining, a
// system greeting is injected into their chat.
package engage

import (
	"context"
	"sync"
	"time"

	"engage-ws/internal/domain"
	"engage-ws/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of the document store the scheduler needs.
type Store interface {
	CountMessagesByVisitor(ctx context.Context, visitorID string) (int64, error)
	HasSystemMessage(ctx context.Context, visitorID, text string) (bool, error)
	SaveMessage(ctx context.Context, m *domain.Message) error
}

// Broadcaster fans the welcome out to the visitor and company groups.
type Broadcaster interface {
	Broadcast(ctx context.Context, group, event string, data interface{})
}

// DirectSender delivers to the originating connection only.
type DirectSender interface {
	Send(event string, data interface{}) error
}

// WelcomePayload is the shape delivered directly to the originating widget.
type WelcomePayload struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Scheduler struct {
	log     *zap.Logger
	store   Store
	hub     Broadcaster
	delay   time.Duration
	welcome string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler(store Store, hub Broadcaster, delay time.Duration, welcome string, log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:     log,
		store:   store,
		hub:     hub,
		delay:   delay,
		welcome: welcome,
		timers:  make(map[string]*time.Timer),
	}
}

// Arm schedules the welcome for a connection, replacing any timer already
// armed for it. A later Cancel for the same connection wins over the timer.
func (s *Scheduler) Arm(connID, visitorID, companyID string, direct DirectSender) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[connID]; ok {
		t.Stop()
	}
	s.timers[connID] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, connID)
		s.mu.Unlock()
		s.fire(visitorID, companyID, direct)
	})
}

// Cancel stops the pending welcome for a disconnecting connection.
func (s *Scheduler) Cancel(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[connID]; ok {
		t.Stop()
		delete(s.timers, connID)
	}
}

// Stop cancels every pending timer; used at shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Armed reports whether a timer is pending for the connection.
func (s *Scheduler) Armed(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[connID]
	return ok
}

// fire creates the welcome unless the visitor already has any message or a
// prior welcome. The checks make a stale timer from a reconnect harmless.
func (s *Scheduler) fire(visitorID, companyID string, direct DirectSender) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := s.store.CountMessagesByVisitor(ctx, visitorID)
	if err != nil {
		s.log.Error("welcome check failed", zap.String("visitorId", visitorID), zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	welcomed, err := s.store.HasSystemMessage(ctx, visitorID, s.welcome)
	if err != nil {
		s.log.Error("welcome check failed", zap.String("visitorId", visitorID), zap.Error(err))
		return
	}
	if welcomed {
		return
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		VisitorID: visitorID,
		Sender:    domain.SenderSystem,
		Text:      s.welcome,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		s.log.Error("failed to persist welcome message", zap.String("visitorId", visitorID), zap.Error(err))
		return
	}
	metrics.WelcomesSentTotal.Inc()

	if direct != nil {
		if err := direct.Send(domain.EventChatMessage, WelcomePayload{
			Type:      domain.SenderSystem,
			Content:   msg.Text,
			Timestamp: msg.CreatedAt,
		}); err != nil {
			s.log.Debug("direct welcome delivery failed", zap.String("visitorId", visitorID), zap.Error(err))
		}
	}

	s.hub.Broadcast(ctx, domain.VisitorGroup(visitorID), domain.EventChatMessage, msg)
	s.hub.Broadcast(ctx, domain.CompanyGroup(companyID), domain.EventChatMessage, msg)

	s.log.Info("proactive welcome sent",
		zap.String("visitorId", visitorID), zap.String("companyId", companyID))
}

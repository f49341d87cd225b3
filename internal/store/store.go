// Package store defines the document-store surface the engagement core
// depends on. Each operation is atomic per document; nothing here is
// transactional across documents.
package store

import (
	"context"
	"errors"
	"time"

	"engage-ws/internal/domain"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("document not found")

type Store interface {
	// Visitors
	GetVisitor(ctx context.Context, id string) (*domain.Visitor, error)
	GetVisitorByConnection(ctx context.Context, connID string) (*domain.Visitor, error)
	SaveVisitor(ctx context.Context, v *domain.Visitor) error
	UpdateVisitorContact(ctx context.Context, id, name, email, phone string) (*domain.Visitor, error)
	ListOnlineVisitors(ctx context.Context, companyID string) ([]domain.Visitor, error)
	CountOnlineVisitors(ctx context.Context, companyID string) (int64, error)

	// Sessions
	SaveSession(ctx context.Context, s *domain.VisitorSession) error
	GetSession(ctx context.Context, sessionID string) (*domain.VisitorSession, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) (*domain.VisitorSession, error)
	CloseSessionsForVisitor(ctx context.Context, visitorID string, at time.Time) error
	ListSessionsByCompany(ctx context.Context, companyID string) ([]domain.VisitorSession, error)
	AverageSessionDuration(ctx context.Context, companyID string) (float64, error)

	// Chats
	FindOpenChat(ctx context.Context, visitorID string) (*domain.Chat, error)
	SaveChat(ctx context.Context, c *domain.Chat) error
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)

	// Messages
	SaveMessage(ctx context.Context, m *domain.Message) error
	CountMessagesByVisitor(ctx context.Context, visitorID string) (int64, error)
	HasSystemMessage(ctx context.Context, visitorID, text string) (bool, error)
	ListMessagesByVisitor(ctx context.Context, visitorID string) ([]domain.Message, error)

	// Leads
	SaveLead(ctx context.Context, l *domain.LeadCapture) error
	GetLead(ctx context.Context, id string) (*domain.LeadCapture, error)
	ListLeads(ctx context.Context) ([]domain.LeadCapture, error)
	CountLeads(ctx context.Context) (int64, error)

	// Websites
	GetWebsite(ctx context.Context, id string) (*domain.Website, error)
}

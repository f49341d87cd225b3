package domain

import (
	"time"
)

// Visitor statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Message senders.
const (
	SenderVisitor = "visitor"
	SenderAgent   = "agent"
	SenderSystem  = "system"
)

// Chat statuses.
const (
	ChatOpen   = "open"
	ChatClosed = "closed"
)

// Lead pipeline defaults.
const (
	LeadStatusNew     = "new"
	LeadSourceWebsite = "website"
)

type Location struct {
	Country string `bson:"country" json:"country"`
	City    string `bson:"city" json:"city"`
	Region  string `bson:"region" json:"region"`
}

type Device struct {
	Type    string `bson:"type" json:"type"` // mobile, tablet, desktop
	Browser string `bson:"browser" json:"browser"`
	OS      string `bson:"os" json:"os"`
}

// Visitor is one tracked browser identity across sessions. At most one
// active connection id at a time; last join wins.
type Visitor struct {
	ID           string    `bson:"_id" json:"id"`
	CompanyID    string    `bson:"companyId" json:"companyId"`
	ConnectionID string    `bson:"connectionId" json:"connectionId"`
	Name         string    `bson:"name,omitempty" json:"name,omitempty"`
	Email        string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Status       string    `bson:"status" json:"status"`
	CurrentPage  string    `bson:"currentPage,omitempty" json:"currentPage,omitempty"`
	LastSeen     time.Time `bson:"lastSeen" json:"lastSeen"`
	UserAgent    string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	IP           string    `bson:"ip,omitempty" json:"ip,omitempty"`
	Location     Location  `bson:"location" json:"location"`
	Device       Device    `bson:"device" json:"device"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// VisitorSession is one bounded browsing episode for a Visitor. Exactly one
// row per session id; IsActive is forced false on disconnect.
type VisitorSession struct {
	SessionID       string    `bson:"_id" json:"sessionId"`
	CompanyID       string    `bson:"companyId" json:"companyId"`
	WebsiteID       string    `bson:"websiteId,omitempty" json:"websiteId,omitempty"`
	VisitorID       string    `bson:"visitorId" json:"visitorId"`
	PageURL         string    `bson:"pageUrl,omitempty" json:"pageUrl,omitempty"`
	IPAddress       string    `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	Country         string    `bson:"country,omitempty" json:"country,omitempty"`
	City            string    `bson:"city,omitempty" json:"city,omitempty"`
	Region          string    `bson:"region,omitempty" json:"region,omitempty"`
	Device          string    `bson:"device,omitempty" json:"device,omitempty"`
	Browser         string    `bson:"browser,omitempty" json:"browser,omitempty"`
	OS              string    `bson:"os,omitempty" json:"os,omitempty"`
	SessionStart    time.Time `bson:"sessionStart" json:"sessionStart"`
	LastActiveAt    time.Time `bson:"lastActiveAt" json:"lastActiveAt"`
	DurationSeconds int64     `bson:"durationSeconds" json:"durationSeconds"`
	IsActive        bool      `bson:"isActive" json:"isActive"`
}

// Chat binds a Visitor to a company's agents. At most one open Chat per
// visitor; created lazily on first lead capture or agent message.
type Chat struct {
	ChatID    string     `bson:"_id" json:"chatId"`
	SessionID string     `bson:"sessionId" json:"sessionId"`
	VisitorID string     `bson:"visitorId" json:"visitorId"`
	CompanyID string     `bson:"companyId" json:"companyId"`
	Status    string     `bson:"status" json:"status"`
	ClosedAt  *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
}

// Message is one chat utterance. Immutable once created apart from the read
// flag, which agent-side acknowledgment flips.
type Message struct {
	ID        string    `bson:"_id" json:"id"`
	CompanyID string    `bson:"companyId" json:"companyId"`
	VisitorID string    `bson:"visitorId" json:"visitorId"`
	Sender    string    `bson:"sender" json:"sender"`
	Text      string    `bson:"text" json:"text"`
	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`

	// TempID correlates an optimistic client-side message with the stored
	// one. Never persisted.
	TempID string `bson:"-" json:"tempId,omitempty"`
}

// LeadCapture is a qualified contact record derived from a visitor.
type LeadCapture struct {
	ID         string    `bson:"_id" json:"id"`
	WebsiteID  string    `bson:"websiteId,omitempty" json:"websiteId,omitempty"`
	ChatID     string    `bson:"chatId,omitempty" json:"chatId,omitempty"`
	SessionID  string    `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	Name       string    `bson:"name" json:"name"`
	Email      string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone      string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Company    string    `bson:"company,omitempty" json:"company,omitempty"`
	Role       string    `bson:"role,omitempty" json:"role,omitempty"`
	Status     string    `bson:"status" json:"status"`
	Source     string    `bson:"source" json:"source"`
	Notes      string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CapturedAt time.Time `bson:"capturedAt" json:"capturedAt"`
}

// Website is collaborator data; the core only reads the webhook callback URL.
type Website struct {
	ID         string `bson:"_id" json:"id"`
	CompanyID  string `bson:"companyId" json:"companyId"`
	Name       string `bson:"name" json:"name"`
	URL        string `bson:"url" json:"url"`
	WebhookURL string `bson:"webhookUrl,omitempty" json:"webhookUrl,omitempty"`
}

// Metrics is the on-demand engagement snapshot for a company dashboard.
// TotalLeads counts leads across all companies, matching the behavior the
// dashboards were built against.
type Metrics struct {
	ActiveVisitors            int64 `json:"activeVisitors"`
	TotalLeads                int64 `json:"totalLeads"`
	AvgSessionDurationSeconds int64 `json:"avgSessionDuration"`
}

// VisitorGroup names the broadcast group for one visitor's connections.
func VisitorGroup(visitorID string) string { return "visitor:" + visitorID }

// CompanyGroup names the broadcast group for a company's agent dashboards.
func CompanyGroup(companyID string) string { return "company:" + companyID }

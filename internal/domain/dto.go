package domain

import (
	"encoding/json"
)

// ClientEvent is the inbound envelope on the widget/dashboard connection.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the outbound envelope.
type ServerEvent struct {
	Event   string      `json:"event"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type JoinRequest struct {
	CompanyID         string `json:"companyId" validate:"required"`
	WebsiteID         string `json:"websiteId"`
	PageURL           string `json:"pageUrl" validate:"omitempty,uri"`
	UserAgent         string `json:"userAgent"`
	ExistingVisitorID string `json:"existingVisitorId"`
	SessionID         string `json:"sessionId"`
}

type JoinAck struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	VisitorID string `json:"visitorId"`
}

type HeartbeatRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type VisitorMessageRequest struct {
	VisitorID string `json:"visitorId" validate:"required"`
	CompanyID string `json:"companyId" validate:"required"`
	Text      string `json:"text" validate:"required,max=4000"`
	TempID    string `json:"tempId"`
}

type AgentMessageRequest struct {
	VisitorID string `json:"visitorId" validate:"required"`
	Text      string `json:"text" validate:"required,max=4000"`
}

type LeadCaptureRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
	VisitorID string `json:"visitorId" validate:"required"`
	CompanyID string `json:"companyId" validate:"required"`
	ChatID    string `json:"chatId"`
	WebsiteID string `json:"websiteId"`
}

type LeadAck struct {
	LeadID string `json:"leadId"`
}

type AgentJoinRequest struct {
	CompanyID string `json:"companyId" validate:"required"`
}

// SessionSnapshot is a session with its visitor attached, announced to the
// company group on join and refresh.
type SessionSnapshot struct {
	VisitorSession
	Visitor *Visitor `json:"visitor"`
}

// LeadBroadcast pairs a captured lead with the refreshed company metrics.
type LeadBroadcast struct {
	Lead    *LeadCapture `json:"lead"`
	Metrics Metrics      `json:"metrics"`
}

// ChatBroadcast pairs a lazily created chat with its visitor.
type ChatBroadcast struct {
	Chat    *Chat    `json:"chat"`
	Visitor *Visitor `json:"visitor"`
}

// WebhookPayload is the body POSTed to a website's callback URL.
type WebhookPayload struct {
	Event string       `json:"event"`
	Lead  *LeadCapture `json:"lead"`
}

// LeadCreateRequest is the record-keeping REST side channel body.
type LeadCreateRequest struct {
	WebsiteID string `json:"websiteId"`
	ChatID    string `json:"chatId"`
	SessionID string `json:"sessionId"`
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Company   string `json:"company"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	Source    string `json:"source"`
	Notes     string `json:"notes"`
}

// LeadUpdateRequest carries partial lead edits; nil fields are untouched.
type LeadUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Phone  *string `json:"phone" validate:"omitempty,phone"`
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

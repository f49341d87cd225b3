package delivery

import (
	"context"
	"errors"
	"time"

	"engage-ws/internal/domain"
	"engage-ws/internal/store"
	"engage-ws/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Server) handleListLeads(c *fiber.Ctx) error {
	leads, err := s.store.ListLeads(c.Context())
	if err != nil {
		return s.internalJSON(c, "failed to list leads", err)
	}
	return c.JSON(leads)
}

// handleCreateLead is the record-keeping side channel. A created lead is
// announced on the lead-events stream; the webhook dispatcher picks it up
// from there. The HTTP response never waits on either.
func (s *Server) handleCreateLead(c *fiber.Ctx) error {
	var req domain.LeadCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestJSON(c, "malformed body: "+err.Error())
	}
	if err := s.validate.Check(&req); err != nil {
		if validation.IsValidationError(err) {
			return badRequestJSON(c, err.Error())
		}
		return s.internalJSON(c, "lead validation failed", err)
	}

	lead := &domain.LeadCapture{
		ID:         uuid.New().String(),
		WebsiteID:  req.WebsiteID,
		ChatID:     req.ChatID,
		SessionID:  req.SessionID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Company:    req.Company,
		Role:       req.Role,
		Status:     req.Status,
		Source:     req.Source,
		Notes:      req.Notes,
		CapturedAt: time.Now(),
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}
	if lead.Source == "" {
		lead.Source = domain.LeadSourceWebsite
	}

	if err := s.store.SaveLead(c.Context(), lead); err != nil {
		return s.internalJSON(c, "failed to save lead", err)
	}

	s.announceLead(lead)

	return c.Status(fiber.StatusCreated).JSON(lead)
}

// announceLead hands the lead to the side channel without blocking or
// failing the response. Publish errors are logged; with no publisher the
// lead goes straight to the local webhook queue.
func (s *Server) announceLead(lead *domain.LeadCapture) {
	if s.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishLead(ctx, lead); err != nil {
			s.log.Error("failed to publish lead event", zap.String("leadId", lead.ID), zap.Error(err))
		}
		return
	}
	if s.leadSink != nil {
		s.leadSink.Enqueue(*lead)
	}
}

func (s *Server) handleUpdateLead(c *fiber.Ctx) error {
	lead, err := s.store.GetLead(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundJSON(c, "lead not found")
		}
		return s.internalJSON(c, "failed to load lead", err)
	}

	var req domain.LeadUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestJSON(c, "malformed body: "+err.Error())
	}
	if err := s.validate.Check(&req); err != nil {
		if validation.IsValidationError(err) {
			return badRequestJSON(c, err.Error())
		}
		return s.internalJSON(c, "lead validation failed", err)
	}

	if req.Name != nil {
		lead.Name = *req.Name
	}
	if req.Email != nil {
		lead.Email = *req.Email
	}
	if req.Phone != nil {
		lead.Phone = *req.Phone
	}
	if req.Status != nil {
		lead.Status = *req.Status
	}
	if req.Notes != nil {
		lead.Notes = *req.Notes
	}

	if err := s.store.SaveLead(c.Context(), lead); err != nil {
		return s.internalJSON(c, "failed to save lead", err)
	}
	return c.JSON(lead)
}

func (s *Server) handleListVisitors(c *fiber.Ctx) error {
	companyID := c.Query("companyId")
	if companyID == "" {
		return badRequestJSON(c, "companyId is required")
	}
	visitors, err := s.store.ListOnlineVisitors(c.Context(), companyID)
	if err != nil {
		return s.internalJSON(c, "failed to list visitors", err)
	}
	return c.JSON(visitors)
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	companyID := c.Query("companyId")
	if companyID == "" {
		return badRequestJSON(c, "companyId is required")
	}
	sessions, err := s.store.ListSessionsByCompany(c.Context(), companyID)
	if err != nil {
		return s.internalJSON(c, "failed to list sessions", err)
	}
	return c.JSON(sessions)
}

func (s *Server) handleChatMessages(c *fiber.Ctx) error {
	chat, err := s.store.GetChat(c.Context(), c.Params("chat_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundJSON(c, "chat not found")
		}
		return s.internalJSON(c, "failed to load chat", err)
	}

	messages, err := s.store.ListMessagesByVisitor(c.Context(), chat.VisitorID)
	if err != nil {
		return s.internalJSON(c, "failed to list messages", err)
	}
	return c.JSON(messages)
}

func (s *Server) handleChatStatus(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequestJSON(c, "malformed body: "+err.Error())
	}
	if body.Status != domain.ChatOpen && body.Status != domain.ChatClosed {
		return badRequestJSON(c, "status must be open or closed")
	}

	chat, err := s.store.GetChat(c.Context(), c.Params("chat_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundJSON(c, "chat not found")
		}
		return s.internalJSON(c, "failed to load chat", err)
	}

	chat.Status = body.Status
	if body.Status == domain.ChatClosed {
		now := time.Now()
		chat.ClosedAt = &now
	} else {
		chat.ClosedAt = nil
	}

	if err := s.store.SaveChat(c.Context(), chat); err != nil {
		return s.internalJSON(c, "failed to save chat", err)
	}
	return c.JSON(chat)
}

// handleAgentMessage is the server-side caller path for agent replies.
func (s *Server) handleAgentMessage(c *fiber.Ctx) error {
	var req domain.AgentMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestJSON(c, "malformed body: "+err.Error())
	}
	if err := s.validate.Check(&req); err != nil {
		if validation.IsValidationError(err) {
			return badRequestJSON(c, err.Error())
		}
		return s.internalJSON(c, "message validation failed", err)
	}

	msg, err := s.wsManager.SendAgentMessage(c.Context(), "", req.VisitorID, req.Text)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundJSON(c, "visitor not found")
		}
		return s.internalJSON(c, "failed to send agent message", err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (s *Server) handleCompanyMetrics(c *fiber.Ctx) error {
	companyID := c.Query("companyId")
	if companyID == "" {
		return badRequestJSON(c, "companyId is required")
	}
	return c.JSON(s.metrics.Compute(c.Context(), companyID))
}

func badRequestJSON(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

func notFoundJSON(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

func (s *Server) internalJSON(c *fiber.Ctx, msg string, err error) error {
	s.log.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "internal server error",
	})
}

package delivery

import (
	"context"
	"errors"
	"time"

	"engage-ws/internal/clientinfo"
	"engage-ws/internal/domain"
	"engage-ws/internal/engage"
	"engage-ws/internal/hub"
	"engage-ws/internal/metrics"
	"engage-ws/internal/ratelimit"
	"engage-ws/internal/store"
	"engage-ws/internal/validation"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const opTimeout = 10 * time.Second

// WSManager dispatches the widget/dashboard event loop. Each connection is
// read by exactly one goroutine; handlers run to completion on it.
type WSManager struct {
	log       *zap.Logger
	store     store.Store
	hub       *hub.Hub
	limiter   *ratelimit.Limiter
	validate  *validation.Validator
	scheduler *engage.Scheduler
	metrics   *metrics.Aggregator
	resolver  *clientinfo.Resolver
}

func NewWSManager(
	st store.Store,
	h *hub.Hub,
	limiter *ratelimit.Limiter,
	validate *validation.Validator,
	scheduler *engage.Scheduler,
	aggregator *metrics.Aggregator,
	resolver *clientinfo.Resolver,
	log *zap.Logger,
) *WSManager {
	return &WSManager{
		log:       log,
		store:     st,
		hub:       h,
		limiter:   limiter,
		validate:  validate,
		scheduler: scheduler,
		metrics:   aggregator,
		resolver:  resolver,
	}
}

// connState is the per-connection context: identity resolved at join time,
// plus everything the disconnect handler must tear down.
type connState struct {
	id   string
	conn *hub.Conn
	ip   string

	visitorID string
	companyID string
	sessionID string

	// agentCompany is set once an agent dashboard joins its company group;
	// agent-only events are refused on other connections.
	agentCompany string
}

// HandleConnection runs the event loop for one websocket until it closes.
func (m *WSManager) HandleConnection(c *websocket.Conn, forwardedFor, remoteAddr string) {
	defer c.Close()

	connID := uuid.New().String()
	st := &connState{
		id:   connID,
		conn: hub.NewConn(connID, c),
		ip:   m.resolver.ClientIP(forwardedFor, remoteAddr),
	}

	metrics.ActiveConnections.Inc()
	m.log.Info("client connected", zap.String("conn", st.id), zap.String("ip", st.ip))

	defer m.teardown(st)

	for {
		var evt domain.ClientEvent
		if err := c.ReadJSON(&evt); err != nil {
			m.log.Debug("read loop ended", zap.String("conn", st.id), zap.Error(err))
			return
		}

		// Only the offending event is refused; the connection stays open.
		if !m.limiter.Allow(st.id) {
			metrics.RateLimitedTotal.Inc()
			m.log.Warn("rate limit exceeded", zap.String("conn", st.id), zap.String("event", evt.Event))
			_ = st.conn.SendError(evt.Event, domain.CodeRateLimited, "rate limit exceeded")
			continue
		}
		metrics.EventsTotal.WithLabelValues(evt.Event).Inc()

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		m.dispatch(ctx, st, &evt)
		cancel()
	}
}

func (m *WSManager) dispatch(ctx context.Context, st *connState, evt *domain.ClientEvent) {
	switch evt.Event {
	case domain.EventVisitorJoin:
		m.handleJoin(ctx, st, evt)
	case domain.EventVisitorHeartbeat:
		m.handleHeartbeat(ctx, st, evt)
	case domain.EventVisitorMessage:
		m.handleVisitorMessage(ctx, st, evt)
	case domain.EventAgentMessage:
		m.handleAgentMessage(ctx, st, evt)
	case domain.EventLeadCapture:
		m.handleLeadCapture(ctx, st, evt)
	case domain.EventAgentJoin:
		m.handleAgentJoin(ctx, st, evt)
	default:
		m.log.Warn("unknown event", zap.String("conn", st.id), zap.String("event", evt.Event))
		_ = st.conn.SendError(evt.Event, domain.CodeValidationFailed, "unknown event: "+evt.Event)
	}
}

// handleJoin resolves or creates the Visitor, opens a VisitorSession, joins
// the visitor group, announces the session to the company group, and arms
// the welcome timer.
func (m *WSManager) handleJoin(ctx context.Context, st *connState, evt *domain.ClientEvent) {
	var req domain.JoinRequest
	if err := m.validate.Decode(evt.Data, &req); err != nil {
		_ = st.conn.SendError(evt.Event, domain.CodeValidationFailed, err.Error())
		return
	}

	now := time.Now()
	location := m.resolver.Location(st.ip)
	device := clientinfo.Device(req.UserAgent)

	// An invalid or unknown prior identifier means a brand-new visitor, not
	// an error.
	var visitor *domain.Visitor
	if req.ExistingVisitorID != "" {
		if _, err := uuid.Parse(req.ExistingVisitorID); err == nil {
			v, err := m.store.GetVisitor(ctx, req.ExistingVisitorID)
			switch {
			case err == nil:
				visitor = v
			case errors.Is(err, store.ErrNotFound):
				// fall through to creation
			default:
				m.internalError(st, evt.Event, "failed to load visitor", err)
				return
			}
		}
	}
	if visitor == nil {
		visitor = &domain.Visitor{ID: uuid.New().String(), CreatedAt: now}
	}

	visitor.CompanyID = req.CompanyID
	visitor.ConnectionID = st.id // last join wins
	visitor.Status = domain.StatusOnline
	visitor.CurrentPage = req.PageURL
	visitor.LastSeen = now
	visitor.UserAgent = req.UserAgent
	visitor.IP = st.ip
	visitor.Location = location
	visitor.Device = device
	visitor.UpdatedAt = now

	if err := m.store.SaveVisitor(ctx, visitor); err != nil {
		m.internalError(st, evt.Event, "failed to save visitor", err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = st.id
	}
	session := &domain.VisitorSession{
		SessionID:    sessionID,
		CompanyID:    req.CompanyID,
		WebsiteID:    req.WebsiteID,
		VisitorID:    visitor.ID,
		PageURL:      req.PageURL,
		IPAddress:    st.ip,
		Country:      location.Country,
		City:         location.City,
		Region:       location.Region,
		Device:       device.Type,
		Browser:      device.Browser,
		OS:           device.OS,
		SessionStart: now,
		LastActiveAt: now,
		IsActive:     true,
	}
	if err := m.store.SaveSession(ctx, session); err != nil {
		m.internalError(st, evt.Event, "failed to save session", err)
		return
	}

	st.visitorID = visitor.ID
	st.companyID = req.CompanyID
	st.sessionID = sessionID

	m.hub.Join(domain.VisitorGroup(visitor.ID), st.conn)

	_ = st.conn.Send(evt.Event, domain.JoinAck{Status: "ok", SessionID: sessionID, VisitorID: visitor.ID})
	_ = st.conn.Send(domain.EventVisitorRegistered, visitor)

	snapshot := domain.SessionSnapshot{VisitorSession: *session, Visitor: visitor}
	m.hub.Broadcast(ctx, domain.CompanyGroup(req.CompanyID), domain.EventVisitorJoined, snapshot)

	m.scheduler.Arm(st.id, visitor.ID, req.CompanyID, st.conn)

	m.log.Info("visitor joined",
		zap.String("conn", st.id),
		zap.String("visitorId", visitor.ID),
		zap.String("sessionId", sessionID),
		zap.String("companyId", req.CompanyID))
}

// handleHeartbeat is fire-and-forget: validation failures and unknown
// sessions are silently dropped.
func (m *WSManager) handleHeartbeat(ctx context.Context, st *connState, evt *domain.ClientEvent) {
	var req domain.HeartbeatRequest
	if err := m.validate.Decode(evt.Data, &req); err != nil {
		return
	}

	session, err := m.store.TouchSession(ctx, req.SessionID, time.Now())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Error("heartbeat update failed", zap.String("sessionId", req.SessionID), zap.Error(err))
		}
		return
	}

	m.hub.Broadcast(ctx, domain.CompanyGroup(session.CompanyID), domain.EventSessionUpdated, session)
}

func (m *WSManager) handleVisitorMessage(ctx context.Context, st *connState, evt *domain.ClientEvent) {
	var req domain.VisitorMessageRequest
	if err := m.validate.Decode(evt.Data, &req); err != nil {
		_ = st.conn.SendError(evt.Event, domain.CodeValidationFailed, err.Error())
		return
	}
	if !m.authorizeVisitor(st, evt.Event, req.VisitorID, req.CompanyID) {
		return
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		CompanyID: req.CompanyID,
		VisitorID: req.VisitorID,
		Sender:    domain.SenderVisitor,
		Text:      req.Text,
		CreatedAt: time.Now(),
	}
	if err := m.store.SaveMessage(ctx, msg); err != nil {
		m.internalError(st, evt.Event, "failed to save message", err)
		return
	}

	msg.TempID = req.TempID
	m.hub.Broadcast(ctx, domain.VisitorGroup(req.VisitorID), domain.EventChatMessage, msg)
	m.hub.Broadcast(ctx, domain.CompanyGroup(req.CompanyID), domain.EventChatMessage, msg)
}

func (m *WSManager) handleAgentMessage(ctx context.Context, st *connState, evt *domain.ClientEvent) {
	if st.agentCompany == "" {
		_ = st.conn.SendError(evt.Event, domain.CodeValidationFailed, "agent-join required before sending agent messages")
		return
	}

	var req domain.AgentMessageRequest
	if err := m.validate.Decode(evt.Data, &req); err != nil {
		_ = st.conn.SendError(evt.Event, domain.CodeValidationFailed, err.Error())
		return
	}

	msg, err := m.SendAgentMessage(ctx, st.agentCompany, req.VisitorID, req.Text)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = st.conn.SendError(evt.Event, domain.CodeNotFound, "visitor not found")
	case err != nil:
		m.internalError(st, evt.Event, "failed to send agent message", err)
	default:
		_ = st.conn.Send(evt.Event, msg)
	}
}

// SendAgentMessage routes text from an agent to a visitor. The company scope
// is checked here, at the handler boundary, not left to group membership.
// Cross-tenant targets are indistinguishable from unknown visitors.
func (m *WSManager) SendAgentMessage(ctx context.Context, companyID, visitorID, text string) (*domain.Message, error) {
	visitor, err := m.store.GetVisitor(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	if companyID != "" && visitor.CompanyID != companyID {
		return nil, store.ErrNotFound
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		CompanyID: visitor.CompanyID,
		VisitorID: visitor.ID,
		Sender:    domain.SenderAgent,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := m.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	m.hub.Broadcast(ctx, domain.VisitorGroup(visitor.ID), domain.EventChatMessage, msg)
	m.hub.Broadcast(ctx, domain.CompanyGroup(visitor.CompanyID), domain.EventChatMessage, msg)
	return msg, nil
}

// handleLeadCapture updates the visitor's contact fields, lazily opens a
// Chat, persists the lead, and pushes the refreshed metrics to the company
// dashboards.
func (m *WSManager) handleLeadCapture(ctx context.Context, st *connState, evt *domain.ClientEvent) {
	var req domain.LeadCaptureRequest
	if err := m.validate.Decode(evt.Data, &req); err != nil {
		_ = st.conn.SendError(evt.Event, domain.CodeValidationFailed, err.Error())
		return
	}
	if !m.authorizeVisitor(st, evt.Event, req.VisitorID, req.CompanyID) {
		return
	}

	visitor, err := m.store.UpdateVisitorContact(ctx, req.VisitorID, req.Name, req.Email, req.Phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = st.conn.SendError(evt.Event, domain.CodeNotFound, "visitor not found")
			return
		}
		m.internalError(st, evt.Event, "failed to update visitor", err)
		return
	}

	chat, err := m.store.FindOpenChat(ctx, req.VisitorID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		chat = &domain.Chat{
			ChatID:    uuid.New().String(),
			SessionID: st.sessionID,
			VisitorID: req.VisitorID,
			CompanyID: req.CompanyID,
			Status:    domain.ChatOpen,
			CreatedAt: time.Now(),
		}
		if chat.SessionID == "" {
			chat.SessionID = st.id
		}
		if err := m.store.SaveChat(ctx, chat); err != nil {
			m.internalError(st, evt.Event, "failed to create chat", err)
			return
		}
		m.hub.Broadcast(ctx, domain.CompanyGroup(req.CompanyID), domain.EventChatCreated,
			domain.ChatBroadcast{Chat: chat, Visitor: visitor})
	case err != nil:
		m.internalError(st, evt.Event, "failed to look up chat", err)
		return
	}

	lead := &domain.LeadCapture{
		ID:         uuid.New().String(),
		WebsiteID:  req.WebsiteID,
		ChatID:     chat.ChatID,
		SessionID:  chat.SessionID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Status:     domain.LeadStatusNew,
		Source:     domain.LeadSourceWebsite,
		CapturedAt: time.Now(),
	}
	if err := m.store.SaveLead(ctx, lead); err != nil {
		m.internalError(st, evt.Event, "failed to save lead", err)
		return
	}
	metrics.LeadsCapturedTotal.Inc()

	_ = st.conn.Send(domain.EventLeadConfirmation, domain.LeadAck{LeadID: lead.ID})

	snapshot := m.metrics.Compute(ctx, req.CompanyID)
	m.hub.Broadcast(ctx, domain.CompanyGroup(req.CompanyID), domain.EventLeadCaptured,
		domain.LeadBroadcast{Lead: lead, Metrics: snapshot})
	m.hub.Broadcast(ctx, domain.CompanyGroup(req.CompanyID), domain.EventVisitorUpdated, visitor)

	m.log.Info("lead captured",
		zap.String("leadId", lead.ID),
		zap.String("visitorId", req.VisitorID),
		zap.String("companyId", req.CompanyID))
}

// handleAgentJoin subscribes an agent dashboard to its company group and
// replies with the current engagement snapshot.
func (m *WSManager) handleAgentJoin(ctx context.Context, st *connState, evt *domain.ClientEvent) {
	var req domain.AgentJoinRequest
	if err := m.validate.Decode(evt.Data, &req); err != nil {
		_ = st.conn.SendError(evt.Event, domain.CodeValidationFailed, err.Error())
		return
	}

	st.agentCompany = req.CompanyID
	m.hub.Join(domain.CompanyGroup(req.CompanyID), st.conn)

	active, err := m.store.ListOnlineVisitors(ctx, req.CompanyID)
	if err != nil {
		m.internalError(st, evt.Event, "failed to list active visitors", err)
		return
	}
	_ = st.conn.Send(domain.EventActiveVisitors, active)
	_ = st.conn.Send(domain.EventDashboardMetrics, m.metrics.Compute(ctx, req.CompanyID))
}

// authorizeVisitor refuses events that reference a visitor or company other
// than the one bound to this connection at join time. Unjoined connections
// (REST-less widget embeds) are allowed through; they carry no binding to
// contradict.
func (m *WSManager) authorizeVisitor(st *connState, event, visitorID, companyID string) bool {
	if st.visitorID != "" && visitorID != st.visitorID {
		_ = st.conn.SendError(event, domain.CodeValidationFailed, "visitorId does not match this connection")
		return false
	}
	if st.companyID != "" && companyID != st.companyID {
		_ = st.conn.SendError(event, domain.CodeValidationFailed, "companyId does not match this connection")
		return false
	}
	return true
}

func (m *WSManager) internalError(st *connState, event, msg string, err error) {
	m.log.Error(msg, zap.String("conn", st.id), zap.Error(err))
	_ = st.conn.SendError(event, domain.CodeInternalError, "internal server error")
}

// teardown releases everything owned by the connection: the welcome timer,
// the rate-limiter window, group memberships, and finally the presence
// records.
func (m *WSManager) teardown(st *connState) {
	m.scheduler.Cancel(st.id)
	m.limiter.Remove(st.id)
	m.hub.LeaveAll(st.conn)
	metrics.ActiveConnections.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now()
	visitor, err := m.store.GetVisitorByConnection(ctx, st.id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Error("disconnect lookup failed", zap.String("conn", st.id), zap.Error(err))
		}
		m.log.Info("client disconnected", zap.String("conn", st.id))
		return
	}

	visitor.Status = domain.StatusOffline
	visitor.LastSeen = now
	visitor.UpdatedAt = now
	if err := m.store.SaveVisitor(ctx, visitor); err != nil {
		m.log.Error("failed to mark visitor offline", zap.String("visitorId", visitor.ID), zap.Error(err))
	}
	if err := m.store.CloseSessionsForVisitor(ctx, visitor.ID, now); err != nil {
		m.log.Error("failed to close sessions", zap.String("visitorId", visitor.ID), zap.Error(err))
	}

	m.hub.Broadcast(ctx, domain.CompanyGroup(visitor.CompanyID), domain.EventVisitorUpdated, visitor)

	m.log.Info("visitor disconnected",
		zap.String("conn", st.id), zap.String("visitorId", visitor.ID))
}

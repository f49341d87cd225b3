package delivery

import (
	"context"

	"engage-ws/internal/config"
	"engage-ws/internal/domain"
	"engage-ws/internal/metrics"
	"engage-ws/internal/store"
	"engage-ws/internal/validation"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// LeadPublisher is the record-keeping side channel for leads created over
// REST. May be nil when Kafka is not configured.
type LeadPublisher interface {
	PublishLead(ctx context.Context, lead *domain.LeadCapture) error
}

// LeadSink receives leads directly when no publisher is configured, so
// webhook dispatch still happens in single-process deployments.
type LeadSink interface {
	Enqueue(lead domain.LeadCapture)
}

type Server struct {
	config    *config.Config
	log       *zap.Logger
	store     store.Store
	validate  *validation.Validator
	wsManager *WSManager
	metrics   *metrics.Aggregator
	publisher LeadPublisher
	leadSink  LeadSink

	app *fiber.App
}

func NewServer(
	cfg *config.Config,
	st store.Store,
	validate *validation.Validator,
	wsManager *WSManager,
	aggregator *metrics.Aggregator,
	publisher LeadPublisher,
	leadSink LeadSink,
	log *zap.Logger,
) *Server {
	return &Server{
		config:    cfg,
		log:       log,
		store:     st,
		validate:  validate,
		wsManager: wsManager,
		metrics:   aggregator,
		publisher: publisher,
		leadSink:  leadSink,
	}
}

func (s *Server) Start() error {
	s.app = s.newApp()
	s.log.Info("server starting", zap.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Visitor Engagement Server",
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} ${latency}\n",
	}))

	corsConfig := cors.Config{
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With",
		AllowCredentials: s.config.AllowCredentials,
		MaxAge:           86400,
	}
	if s.config.IsProduction() {
		corsConfig.AllowOrigins = s.config.GetCORSOrigins()
	} else {
		corsConfig.AllowOrigins = "*"
		corsConfig.AllowCredentials = false // never allow credentials with wildcard origin
	}
	app.Use(cors.New(corsConfig))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"environment": s.config.Environment,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/leads", s.handleListLeads)
	api.Post("/leads", s.handleCreateLead)
	api.Put("/leads/:id", s.handleUpdateLead)
	api.Get("/visitors", s.handleListVisitors)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/chats/:chat_id/messages", s.handleChatMessages)
	api.Patch("/chats/:chat_id/status", s.handleChatStatus)
	api.Post("/messages/agent", s.handleAgentMessage)
	api.Get("/metrics", s.handleCompanyMetrics)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("forwardedFor", c.Get("X-Forwarded-For"))
			c.Locals("remoteAddr", c.Context().RemoteAddr().String())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		forwardedFor, _ := c.Locals("forwardedFor").(string)
		remoteAddr, _ := c.Locals("remoteAddr").(string)
		s.wsManager.HandleConnection(c, forwardedFor, remoteAddr)
	}))

	return app
}

// Shutdown closes the listener and waits for in-flight handlers.
func (s *Server) Shutdown() error {
	if s.app == nil {
		return nil
	}
	return s.app.Shutdown()
}

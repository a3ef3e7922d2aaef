package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payam-chat/config"
	"payam-chat/internal/handler"
	"payam-chat/internal/middleware"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	"payam-chat/internal/websocket"
	"payam-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Groups        *handler.GroupHandler
	Admin         *handler.AdminHandler
	WebSocket     *websocket.Handler
}

// Dependencies are the cross-cutting pieces the middleware chain needs.
// Limiter is optional.
type Dependencies struct {
	Tokens   middleware.TokenParser
	Presence middleware.PresenceToucher
	Limiter  middleware.Limiter
	Clock    services.Clock
	Health   func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware(deps.Clock))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	authRequired := middleware.AuthMiddleware(deps.Tokens, deps.Presence, s.logger)
	var authLimit, messageLimit gin.HandlerFunc = passThrough, passThrough
	if deps.Limiter != nil {
		authLimit = middleware.AuthRateLimitMiddleware(deps.Limiter, s.logger)
		messageLimit = middleware.MessageRateLimitMiddleware(deps.Limiter, s.logger)
	}

	v1 := s.engine.Group("/v1")

	auth := v1.Group("/auth", authLimit)
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	users := v1.Group("/users", authRequired)
	{
		users.GET("/me", handlers.Users.Me)
		users.GET("/search", handlers.Users.Search)
	}

	conversations := v1.Group("/conversations", authRequired)
	{
		conversations.GET("", handlers.Conversations.List)
		conversations.POST("", handlers.Conversations.Resolve)
		conversations.GET("/:id/messages", handlers.Messages.List)
		conversations.POST("/:id/messages", messageLimit, handlers.Messages.Send)
		conversations.POST("/:id/attachments", messageLimit, handlers.Messages.Upload)
		conversations.GET("/:id/unread", handlers.Messages.Unread)
	}

	v1.GET("/messages/unread", authRequired, handlers.Messages.PollUnread)

	groups := v1.Group("/groups", authRequired)
	{
		groups.GET("", handlers.Groups.List)
		groups.POST("", handlers.Groups.Create)
		groups.POST("/join", handlers.Groups.Join)
		groups.GET("/:id/members", handlers.Groups.Members)
		groups.POST("/:id/members", handlers.Groups.AddMember)
		groups.DELETE("/:id/members/me", handlers.Groups.Leave)
		groups.GET("/:id/messages", handlers.Groups.Messages)
		groups.POST("/:id/messages", messageLimit, handlers.Groups.Send)
		groups.POST("/:id/attachments", messageLimit, handlers.Groups.Upload)
	}

	v1.POST("/admin/login", authLimit, handlers.Admin.Login)
	admin := v1.Group("/admin", middleware.AdminAuthMiddleware(deps.Tokens))
	{
		admin.GET("/stats", handlers.Admin.Stats)
		admin.GET("/users", handlers.Admin.Users)
		admin.POST("/users/deactivate", handlers.Admin.DeactivateUsers)
		admin.POST("/users/:id/deactivate", handlers.Admin.DeactivateUser)
		admin.GET("/messages", handlers.Admin.Messages)
		admin.DELETE("/messages/:id", handlers.Admin.DeleteMessage)
	}

	if handlers.WebSocket != nil {
		s.engine.GET("/ws", handlers.WebSocket.Connect)
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}

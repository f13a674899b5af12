package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gradeflow/gradeflow/pkg/apiserver/handlers"
	"github.com/gradeflow/gradeflow/pkg/apiserver/middleware"
	"github.com/gradeflow/gradeflow/pkg/auth"
	"github.com/gradeflow/gradeflow/pkg/config"
)

// Deps are the collaborators the HTTP layer drives. They are interfaces
// so tests can run the full router against in-memory implementations.
type Deps struct {
	Pipeline    handlers.Processor
	Submissions handlers.SubmissionReader
	Audits      handlers.AuditReader
	Failures    handlers.FailedWebhookReader
	Retries     handlers.RetryRunner
}

type Server struct {
	router *gin.Engine
	cfg    *config.Config
	logger *zap.Logger
	tokens *auth.TokenManager
	deps   Deps
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		tokens: auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		deps:   deps,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The webhook endpoint authenticates with the HMAC signature, not a
	// bearer token.
	webhookHandler := handlers.NewWebhookHandler(s.deps.Pipeline, s.cfg.Webhook.SignatureHeader, s.logger)
	r.POST("/webhooks/autograder/", webhookHandler.Receive)

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.tokens))

		submissionHandler := handlers.NewSubmissionHandler(s.deps.Submissions, s.deps.Audits, s.logger)
		api.GET("/submissions/:id", submissionHandler.Get)
		api.GET("/submissions/:id/audit", submissionHandler.ListAudit)

		adminHandler := handlers.NewAdminHandler(s.deps.Failures, s.deps.Retries, s.logger)
		api.GET("/failed-webhooks", adminHandler.ListFailedWebhooks)
		api.POST("/retries/run", adminHandler.RunRetries)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Tokens() *auth.TokenManager {
	return s.tokens
}

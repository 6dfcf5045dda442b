// Package server exposes the outreach engine over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/ai"
	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/eligibility"
	"github.com/spigell/hh-outreach/internal/filtering"
	"github.com/spigell/hh-outreach/internal/outreach"
	"github.com/spigell/hh-outreach/internal/session"
)

const (
	sessionHeader   = "X-Session-ID"
	shutdownTimeout = 10 * time.Second
)

// Engine is the part of the orchestrator the API drives.
type Engine interface {
	Send(ctx context.Context, d outreach.Draft) (*outreach.Outcome, error)
	FollowUp(ctx context.Context, contactID string, d outreach.Draft) (*outreach.Outcome, error)
	Generate(ctx context.Context, contactID string, settings ai.Settings, d outreach.Draft) (outreach.Draft, error)
	History(ctx context.Context, contactID string) (conversation.Thread, error)
	Eligibility(ctx context.Context, contacts []conversation.Contact, cfg *filtering.Config) (*eligibility.Report, error)
	FollowUpsDue(ctx context.Context, cfg *filtering.Config) ([]conversation.Contact, error)
}

// Contacts is the contact store.
type Contacts interface {
	ListContacts(ctx context.Context) ([]conversation.Contact, error)
	CreateContact(ctx context.Context, c *conversation.Contact) error
	ContactsWithSentEmail(ctx context.Context) ([]conversation.Contact, error)
	ContactsWithConversation(ctx context.Context) ([]conversation.Contact, error)
}

type Server struct {
	engine   Engine
	contacts Contacts
	filters  *filtering.Config
	views    *session.Registry[conversation.Thread]
	logger   *zap.Logger
	router   *gin.Engine
}

func New(engine Engine, contacts Contacts, filters *filtering.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   engine,
		contacts: contacts,
		filters:  filters,
		views:    session.NewRegistry[conversation.Thread](),
		logger:   logger,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.accessLog())
	s.routes()

	return s
}

func (s *Server) routes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.GET("/contacts", s.listContacts)
		api.POST("/contacts", s.createContact)
		api.GET("/contacts/:id/thread", s.thread)
		api.GET("/eligibility", s.eligibility)
		api.GET("/follow-ups", s.followUpsDue)

		api.POST("/preview", s.preview)
		api.POST("/generate", s.generate)
		api.POST("/send", s.send)
		api.POST("/follow-up", s.followUp)

		view := api.Group("/view")
		{
			view.GET("", s.currentView)
			view.POST("/select/:id", s.selectView)
		}
	}
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("api shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Debug("api request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

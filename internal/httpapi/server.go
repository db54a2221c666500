// Package httpapi exposes the conversation store over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dialogue/internal/port"
	"dialogue/internal/usecase"
)

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Store     port.ConversationStore
	Saver     *usecase.SaveUseCase
	Searcher  port.Searcher
	Feedback  *usecase.FeedbackUseCase
	Evaluator *usecase.Evaluator
	Stats     *usecase.StatsUseCase
	ListLimit int
	Logger    *slog.Logger
}

type Server struct {
	deps   Deps
	engine *gin.Engine
}

func New(deps Deps) *Server {
	if deps.ListLimit <= 0 {
		deps.ListLimit = 20
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{deps: deps}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger(deps.Logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/", s.home)

	conversations := r.Group("/conversations")
	{
		conversations.GET("", s.listConversations)
		conversations.POST("", s.createConversation)
		conversations.GET("/:id", s.getConversation)
		conversations.PATCH("/:id/feedback", s.updateFeedback)
	}

	r.GET("/search", s.search)
	r.POST("/evaluate", s.evaluate)
	r.GET("/stats", s.stats)

	// routes kept for clients of the first API version
	r.GET("/list-conversations", s.listConversations)
	r.GET("/search-conversations", s.search)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.deps.Logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", attrs...)
		default:
			logger.Debug("request", attrs...)
		}
	}
}

// Package server is the ggufdeck HTTP control panel: a JSON API over one
// model session plus a small embedded web page.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/internal/config"
	"github.com/ThatCatDev/ggufdeck/internal/hub"
	"github.com/ThatCatDev/ggufdeck/internal/models"
	"github.com/ThatCatDev/ggufdeck/internal/recall"
	"github.com/ThatCatDev/ggufdeck/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Deps are the components a Server routes requests to. Recall is optional.
type Deps struct {
	Session *session.Session
	Models  *models.Store
	Chats   *chats.Store
	Hub     *hub.Client
	Recall  *recall.Index
	Logger  *logrus.Logger
	Version string
}

// Server is the ggufdeck HTTP API server.
type Server struct {
	cfg    *config.Config
	deps   Deps
	log    *logrus.Logger
	engine *gin.Engine
	http   *http.Server
}

// New creates a Server. Missing stores are built from cfg.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Models == nil {
		deps.Models = models.NewStore(cfg.ModelsDir)
	}
	if deps.Chats == nil {
		deps.Chats = chats.NewStore(cfg.OutputsDir)
	}
	if deps.Hub == nil {
		deps.Hub = hub.NewClient(
			hub.WithEndpoint(cfg.Hub.Endpoint),
			hub.WithToken(cfg.Hub.Token),
			hub.WithGitBinary(cfg.Hub.GitBinary),
			hub.WithLogger(deps.Logger),
		)
	}
	if deps.Session == nil {
		deps.Session = session.New(session.Options{
			BinDir:        cfg.BinDir,
			HealthTimeout: cfg.HealthTimeout(),
			Logger:        deps.Logger,
		})
	}

	if deps.Logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
	}

	s.engine = gin.New()
	s.engine.HandleMethodNotAllowed = true
	s.engine.Use(gin.Recovery(), withLogging(s.log), withCORS())
	s.registerRoutes(s.engine)

	s.http = &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.engine,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Session returns the model session requests are served from.
func (s *Server) Session() *session.Session {
	return s.deps.Session
}

// Start serves until ctx is cancelled, then shuts down gracefully and
// unloads any loaded model.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"addr":    s.http.Addr,
		"models":  s.cfg.ModelsDir,
		"outputs": s.cfg.OutputsDir,
	}).Info("ggufdeck listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("server shutdown")
		}
		return nil
	})

	err = g.Wait()
	s.close()
	return err
}

func (s *Server) close() {
	if err := s.deps.Session.Unload(); err != nil && !errors.Is(err, session.ErrNotLoaded) {
		s.log.WithError(err).Warn("unload on shutdown")
	}
	if s.deps.Recall != nil {
		if err := s.deps.Recall.Close(); err != nil {
			s.log.WithError(err).Warn("close recall index")
		}
	}
}

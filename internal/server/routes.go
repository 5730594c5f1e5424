package server

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/ggufdeck/internal/server/handlers"
)

//go:embed web/index.html
var indexHTML []byte

func (s *Server) registerRoutes(r *gin.Engine) {
	var index handlers.ChatIndex
	if s.deps.Recall != nil {
		index = s.deps.Recall
	}
	maxTokens := s.cfg.Model.MaxTokens

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})

	health := &handlers.HealthHandler{Session: s.deps.Session, Version: s.deps.Version}
	r.GET("/health", health.Health)

	api := r.Group("/api")

	m := &handlers.ModelsHandler{Store: s.deps.Models, Session: s.deps.Session, Defaults: s.cfg.Model}
	api.GET("/models", m.List)
	api.GET("/models/current", m.Current)
	api.POST("/models/load", m.Load)
	api.POST("/models/unload", m.Unload)

	gen := &handlers.GenerateHandler{
		Session:   s.deps.Session,
		Chats:     s.deps.Chats,
		Index:     index,
		MaxTokens: maxTokens,
		Log:       s.log,
	}
	api.POST("/generate", gen.Generate)

	ch := &handlers.ChatsHandler{Store: s.deps.Chats, Index: index, Log: s.log}
	api.GET("/chats", ch.List)
	api.GET("/chats/search", ch.Search)
	api.GET("/chats/:name", ch.Get)

	h := &handlers.HubHandler{Client: s.deps.Hub, ModelsDir: s.deps.Models.Dir()}
	api.GET("/hub/search", h.Search)
	api.GET("/hub/files", h.Files)
	api.GET("/hub/card", h.Card)
	api.POST("/hub/download", h.Download)
	api.POST("/hub/pull", h.Pull)

	v := &handlers.VisualHandler{Session: s.deps.Session}
	api.GET("/visualization", v.Payload)
	api.GET("/visualization/graph", v.Graph)
	api.GET("/visualization/layout", v.Layout)
	api.GET("/visualization/layers/:index", v.Layer)
	api.GET("/visualization/points", v.Points)
	api.POST("/visualization/text", v.Text)

	x := &handlers.ExperimentsHandler{Session: s.deps.Session, MaxTokens: maxTokens}
	api.GET("/experiments", x.Kinds)
	api.POST("/experiments/:kind", x.Run)
}

func withLogging(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond),
		}).Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

func withCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

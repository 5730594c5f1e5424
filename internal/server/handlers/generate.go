package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/internal/recall"
	"github.com/ThatCatDev/ggufdeck/internal/session"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// ChatIndex is the part of the recall index the handlers use.
type ChatIndex interface {
	Add(ctx context.Context, e recall.Entry) error
	Search(ctx context.Context, query string, limit int) ([]recall.SearchResult, error)
}

// GenerateHandler handles POST /api/generate: one completion, saved as a
// chat file unless the request opts out.
type GenerateHandler struct {
	Session   *session.Session
	Chats     *chats.Store
	Index     ChatIndex // optional
	MaxTokens int
	Log       *logrus.Logger
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	if req.Prompt == "" {
		badRequest(c, "prompt field is required")
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = h.MaxTokens
	}

	text, err := h.Session.Generate(c.Request.Context(), req.Prompt, session.GenerateOptions{
		MaxTokens: maxTokens,
		Stop:      req.Stop,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	resp := api.GenerateResponse{Response: text}
	if !req.NoSave {
		name, err := h.Chats.Save(req.Prompt, text)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		resp.Chat = name
		h.index(name, req.Prompt, text)
	}
	c.JSON(http.StatusOK, resp)
}

// index adds the saved chat to the recall index in the background.
func (h *GenerateHandler) index(name, prompt, response string) {
	if h.Index == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		err := h.Index.Add(ctx, recall.Entry{ID: name, Prompt: prompt, Response: response, Timestamp: time.Now()})
		if err != nil && h.Log != nil {
			h.Log.WithError(err).WithField("chat", name).Warn("could not index chat")
		}
	}()
}

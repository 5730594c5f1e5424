package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

// ChatsHandler serves saved chat sessions.
type ChatsHandler struct {
	Store *chats.Store
	Index ChatIndex // optional
	Log   *logrus.Logger
}

// List handles GET /api/chats.
func (h *ChatsHandler) List(c *gin.Context) {
	infos, err := h.Store.Infos()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]api.ChatInfo, 0, len(infos))
	for _, i := range infos {
		out = append(out, api.ChatInfo{Name: i.Name, Created: i.Created, Size: i.Size})
	}
	c.JSON(http.StatusOK, api.ChatListResponse{Chats: out})
}

// Get handles GET /api/chats/:name.
func (h *ChatsHandler) Get(c *gin.Context) {
	name := c.Param("name")
	rec, err := h.Store.Load(name)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	turns, err := h.Store.History(name)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	history := make([]api.ChatTurn, 0, len(turns))
	for _, t := range turns {
		history = append(history, api.ChatTurn{Prompt: t.Prompt, Response: t.Response})
	}
	c.JSON(http.StatusOK, api.ChatResponse{
		Name:     name,
		Prompt:   rec.Prompt,
		Response: rec.Response,
		History:  history,
	})
}

// Search handles GET /api/chats/search?q=...&limit=N. The recall index is
// used when configured; a failure there falls back to a keyword scan.
func (h *ChatsHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		badRequest(c, "q parameter is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if h.Index != nil {
		results, err := h.Index.Search(c.Request.Context(), q, limit)
		if err == nil {
			hits := make([]api.ChatHit, 0, len(results))
			for _, r := range results {
				hits = append(hits, api.ChatHit{
					Name:     r.Entry.ID,
					Prompt:   r.Entry.Prompt,
					Response: r.Entry.Response,
					Score:    r.CombinedScore,
				})
			}
			c.JSON(http.StatusOK, api.ChatSearchResponse{Mode: "semantic", Results: hits})
			return
		}
		if h.Log != nil {
			h.Log.WithError(err).Warn("recall search failed, falling back to keyword scan")
		}
	}

	matches, err := h.Store.Grep(q, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	hits := make([]api.ChatHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, api.ChatHit{Name: m.Name, Prompt: m.Record.Prompt, Response: m.Record.Response})
	}
	c.JSON(http.StatusOK, api.ChatSearchResponse{Mode: "keyword", Results: hits})
}

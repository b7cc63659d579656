package chathandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatrelaygo/internal/store"
)

type Handler struct {
	st store.MessageStore
}

func New(st store.MessageStore) *Handler { return &Handler{st: st} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms/:id/messages", h.history)
	r.GET("/healthz", h.health)
}

// history returns the stored messages for one room, oldest first. With the
// store disabled it answers an empty list, same as the websocket history
// push.
func (h *Handler) history(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	msgs, err := h.st.History(c.Request.Context(), c.Param("id"), q.Limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable"})
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Messages: msgs})
}

func (h *Handler) health(c *gin.Context) {
	mode := "postgres"
	if !h.st.Enabled() {
		mode = "disabled"
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: mode})
}

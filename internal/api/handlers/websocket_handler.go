package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/llm"
	"github.com/docchat/backend/internal/query"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
	"github.com/docchat/backend/pkg/logger"
)

// WebSocketHandler serves the chat channel: one question message in, one
// complete answer message out. Answers are not streamed token by token.
type WebSocketHandler struct {
	db      *sqlite.Client
	engine  *query.Engine
	llm     *llm.Factory
	ledgers *session.Registry
	locks   *session.Locks
}

func NewWebSocketHandler(db *sqlite.Client, engine *query.Engine, factory *llm.Factory, ledgers *session.Registry, locks *session.Locks) *WebSocketHandler {
	return &WebSocketHandler{
		db:      db,
		engine:  engine,
		llm:     factory,
		ledgers: ledgers,
		locks:   locks,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Username string `json:"username"`
			Content  string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "question" || msg.Username == "" || msg.Content == "" {
			h.sendError(c, "Expected a question message with username and content")
			continue
		}

		sess, err := resolveSession(h.db, msg.Username)
		if err != nil {
			h.sendError(c, "User not registered or API key missing")
			continue
		}

		h.send(c, "status", "Generating answer...")

		unlock := h.locks.Lock(sess.User)
		exchange, passages, err := h.engine.Answer(
			context.Background(), sess, msg.Content, h.llm.ClientFor(sess.APIKey), h.ledgers.For(sess.User),
		)
		unlock()

		if err != nil {
			logger.Error("WebSocket question failed",
				zap.String("username", sess.User),
				zap.Error(err),
			)
			_, reason := pipelineStatus(err)
			h.sendError(c, reason)
			continue
		}

		sources := make([]string, 0, len(passages))
		for _, p := range passages {
			sources = append(sources, p.SourceFile)
		}

		c.WriteJSON(map[string]interface{}{
			"type":    "answer",
			"id":      exchange.ID,
			"content": exchange.Answer,
			"model":   exchange.Model,
			"sources": sources,
		})
	}
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) {
	c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

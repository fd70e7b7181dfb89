package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/llm"
	"github.com/docchat/backend/internal/query"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
	"github.com/docchat/backend/pkg/logger"
)

type QueryHandler struct {
	db      *sqlite.Client
	engine  *query.Engine
	llm     *llm.Factory
	ledgers *session.Registry
	locks   *session.Locks
}

func NewQueryHandler(db *sqlite.Client, engine *query.Engine, factory *llm.Factory, ledgers *session.Registry, locks *session.Locks) *QueryHandler {
	return &QueryHandler{
		db:      db,
		engine:  engine,
		llm:     factory,
		ledgers: ledgers,
		locks:   locks,
	}
}

// Ask answers a single question from the user's indexed documents.
func (h *QueryHandler) Ask(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Username == "" || req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username and question are required",
		})
	}

	sess, err := resolveSession(h.db, req.Username)
	if err != nil {
		return sessionError(c, err)
	}

	unlock := h.locks.Lock(sess.User)
	defer unlock()

	exchange, passages, err := h.engine.Answer(
		c.Context(), sess, req.Question, h.llm.ClientFor(sess.APIKey), h.ledgers.For(sess.User),
	)
	if err != nil {
		logger.Error("Failed to answer question",
			zap.String("username", sess.User),
			zap.Error(err),
		)
		return pipelineError(c, err)
	}

	return c.JSON(fiber.Map{
		"id":       exchange.ID,
		"question": exchange.Question,
		"answer":   exchange.Answer,
		"model":    exchange.Model,
		"passages": passages,
	})
}

// History lists the session's exchanges in recording order.
func (h *QueryHandler) History(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	sess, err := resolveSession(h.db, username)
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"username": sess.User,
		"history":  h.ledgers.For(sess.User).History(),
	})
}

// ExportHistory downloads the session history as a CSV file.
func (h *QueryHandler) ExportHistory(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	sess, err := resolveSession(h.db, username)
	if err != nil {
		return sessionError(c, err)
	}

	var buf bytes.Buffer
	if err := h.ledgers.For(sess.User).ExportCSV(&buf); err != nil {
		logger.Error("Failed to export history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export history",
		})
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="conversation_history.csv"`)
	return c.Send(buf.Bytes())
}

// ClearHistory drops the session's exchanges.
func (h *QueryHandler) ClearHistory(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	sess, err := resolveSession(h.db, username)
	if err != nil {
		return sessionError(c, err)
	}

	h.ledgers.For(sess.User).Clear()
	return c.JSON(fiber.Map{
		"status": "cleared",
	})
}

// Passages dumps the user's indexed passages with provenance.
func (h *QueryHandler) Passages(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	sess, err := resolveSession(h.db, username)
	if err != nil {
		return sessionError(c, err)
	}

	passages, err := h.engine.ExportPassages(sess)
	if err != nil {
		return pipelineError(c, err)
	}

	return c.JSON(fiber.Map{
		"username": sess.User,
		"count":    len(passages),
		"passages": passages,
	})
}

package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/ingestion"
	"github.com/docchat/backend/internal/llm"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
	"github.com/docchat/backend/pkg/logger"
)

type DocumentHandler struct {
	db        *sqlite.Client
	processor *ingestion.Processor
	llm       *llm.Factory
	locks     *session.Locks
}

func NewDocumentHandler(db *sqlite.Client, processor *ingestion.Processor, factory *llm.Factory, locks *session.Locks) *DocumentHandler {
	return &DocumentHandler{
		db:        db,
		processor: processor,
		llm:       factory,
		locks:     locks,
	}
}

// Upload receives PDF files as multipart form data, stores their extracted
// text, and rebuilds the user's index from the complete stored set.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	username := c.FormValue("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	sess, err := resolveSession(h.db, username)
	if err != nil {
		return sessionError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files uploaded",
		})
	}

	files := make([]ingestion.UploadedFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			logger.Warn("Failed to open uploaded file",
				zap.String("filename", header.Filename),
				zap.Error(err),
			)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			logger.Warn("Failed to read uploaded file",
				zap.String("filename", header.Filename),
				zap.Error(err),
			)
			continue
		}
		files = append(files, ingestion.UploadedFile{Name: header.Filename, Data: data})
	}

	unlock := h.locks.Lock(sess.User)
	defer unlock()

	report, err := h.processor.ProcessUploads(c.Context(), sess, files, h.llm.ClientFor(sess.APIKey))
	if err != nil {
		logger.Error("Upload processing failed",
			zap.String("username", sess.User),
			zap.Error(err),
		)
		// The report still tells the caller which files were stored.
		status, msg := pipelineStatus(err)
		return c.Status(status).JSON(fiber.Map{
			"error":  msg,
			"report": report,
		})
	}

	return c.JSON(fiber.Map{
		"status": "processed",
		"report": report,
	})
}

// Reindex rebuilds the user's index from their stored documents without
// uploading anything new.
func (h *DocumentHandler) Reindex(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username is required",
		})
	}

	sess, err := resolveSession(h.db, req.Username)
	if err != nil {
		return sessionError(c, err)
	}

	unlock := h.locks.Lock(sess.User)
	defer unlock()

	report, err := h.processor.BuildIndex(c.Context(), sess, h.llm.ClientFor(sess.APIKey))
	if err != nil {
		logger.Error("Reindex failed",
			zap.String("username", sess.User),
			zap.Error(err),
		)
		return pipelineError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "indexed",
		"report": report,
	})
}

// List returns the user's stored filenames, most recent first.
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	filenames, err := h.db.ListFilenames(username)
	if err != nil {
		logger.Error("Failed to list filenames", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load documents",
		})
	}

	return c.JSON(fiber.Map{
		"username":  username,
		"filenames": filenames,
	})
}

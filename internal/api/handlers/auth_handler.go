package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/storage/sqlite"
	"github.com/docchat/backend/pkg/logger"
)

type AuthHandler struct {
	db *sqlite.Client
}

func NewAuthHandler(db *sqlite.Client) *AuthHandler {
	return &AuthHandler{db: db}
}

// Register creates the user if needed and stores or replaces their API key.
// It is also the recovery path for an existing user whose key is missing.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		APIKey   string `json:"api_key"`
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
	if req.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "API key is required",
		})
	}

	if err := h.db.AddUser(req.Username); err != nil {
		logger.Error("Failed to add user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register user",
		})
	}
	if err := h.db.SetAPIKey(req.Username, req.APIKey); err != nil {
		logger.Error("Failed to set API key", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store API key",
		})
	}

	return c.JSON(fiber.Map{
		"username": req.Username,
		"status":   "registered",
	})
}

// Login checks that the user exists and has a stored credential, and
// returns their processed filenames.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
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
		if !errors.Is(err, errUnknownUser) && !errors.Is(err, errCredentialMissing) {
			logger.Error("Failed to resolve session", zap.Error(err))
		}
		return sessionError(c, err)
	}

	filenames, err := h.db.ListFilenames(sess.User)
	if err != nil {
		logger.Error("Failed to list filenames", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load documents",
		})
	}

	return c.JSON(fiber.Map{
		"username":  sess.User,
		"status":    "ok",
		"filenames": filenames,
	})
}

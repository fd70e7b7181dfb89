package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/docchat/backend/internal/index"
	"github.com/docchat/backend/internal/ingestion"
	"github.com/docchat/backend/internal/llm"
	"github.com/docchat/backend/internal/session"
	"github.com/docchat/backend/internal/storage/sqlite"
)

var (
	errUnknownUser       = errors.New("unknown user")
	errCredentialMissing = errors.New("credential missing")
)

// resolveSession looks up the user's stored credential and builds the
// session value threaded into the pipeline. A user who exists without a key
// is an explicit credential-missing state requiring key resubmission, not a
// silent failure.
func resolveSession(db *sqlite.Client, username string) (session.Session, error) {
	user, err := db.GetUser(username)
	if err != nil {
		return session.Session{}, err
	}
	if user == nil {
		return session.Session{}, errUnknownUser
	}
	if user.APIKey == "" {
		return session.Session{}, errCredentialMissing
	}
	return session.Session{User: user.Username, APIKey: user.APIKey}, nil
}

func sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errUnknownUser):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status": "unknown_user",
			"error":  "Unknown user. Register first.",
		})
	case errors.Is(err, errCredentialMissing):
		return c.Status(fiber.StatusPreconditionRequired).JSON(fiber.Map{
			"status": "credential_missing",
			"error":  "API key missing. Please provide it.",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve user",
		})
	}
}

// pipelineStatus maps pipeline failures to an HTTP status and user-facing
// message.
func pipelineStatus(err error) (int, string) {
	var embedErr *llm.EmbeddingError
	var genErr *llm.GenerationError
	var persistErr *index.PersistenceError

	switch {
	case errors.Is(err, index.ErrNotFound):
		return fiber.StatusConflict, "No index found. Upload and process documents first."
	case errors.Is(err, index.ErrDimensionMismatch):
		return fiber.StatusConflict, "Index was built with a different embedding model. Reprocess your documents."
	case errors.Is(err, ingestion.ErrEmptyCorpus):
		return fiber.StatusUnprocessableEntity, "No indexable text found in any of your documents."
	case errors.As(err, &embedErr):
		return fiber.StatusBadGateway, "Embedding service failed. Check your API key and try again."
	case errors.As(err, &genErr):
		return fiber.StatusBadGateway, "Generation service failed. Check your API key and try again."
	case errors.As(err, &persistErr):
		return fiber.StatusInternalServerError, "Failed to persist index."
	default:
		return fiber.StatusInternalServerError, "Internal error"
	}
}

func pipelineError(c *fiber.Ctx, err error) error {
	status, msg := pipelineStatus(err)
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		api_key TEXT
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		filename TEXT NOT NULL,
		extracted_text TEXT NOT NULL,
		uploaded_at INTEGER NOT NULL,
		UNIQUE (username, filename),
		FOREIGN KEY (username) REFERENCES users (username)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_username ON documents (username);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// GetUser returns nil without error when the user does not exist. A user
// row with a NULL api_key yields an empty APIKey.
func (c *Client) GetUser(username string) (*models.User, error) {
	var user models.User
	var apiKey sql.NullString

	err := c.db.QueryRow(
		"SELECT username, api_key FROM users WHERE username = ?", username,
	).Scan(&user.Username, &apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.APIKey = apiKey.String
	return &user, nil
}

func (c *Client) AddUser(username string) error {
	_, err := c.db.Exec(
		"INSERT OR IGNORE INTO users (username, api_key) VALUES (?, NULL)", username,
	)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

func (c *Client) SetAPIKey(username, apiKey string) error {
	_, err := c.db.Exec(`
		INSERT INTO users (username, api_key) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET api_key = excluded.api_key
	`, username, apiKey)
	if err != nil {
		return fmt.Errorf("failed to set api key: %w", err)
	}

	logger.Info("API key updated", zap.String("username", username))
	return nil
}

// AddDocument inserts an extracted document. A filename already stored for
// the user is rejected: the existing row is kept and inserted is false.
func (c *Client) AddDocument(username, filename, text string) (bool, error) {
	res, err := c.db.Exec(`
		INSERT OR IGNORE INTO documents (username, filename, extracted_text, uploaded_at)
		VALUES (?, ?, ?, ?)
	`, username, filename, text, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to add document: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to add document: %w", err)
	}
	inserted := rows > 0

	if inserted {
		logger.Debug("Document record added",
			zap.String("username", username),
			zap.String("filename", filename),
		)
	} else {
		logger.Debug("Duplicate filename skipped",
			zap.String("username", username),
			zap.String("filename", filename),
		)
	}
	return inserted, nil
}

func (c *Client) ListFilenames(username string) ([]string, error) {
	rows, err := c.db.Query(
		"SELECT filename FROM documents WHERE username = ? ORDER BY uploaded_at DESC, id DESC", username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list filenames: %w", err)
	}
	defer rows.Close()

	var filenames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		filenames = append(filenames, name)
	}
	return filenames, rows.Err()
}

// ListDocuments returns the user's documents in insertion order, the order
// the indexer consumes them in.
func (c *Client) ListDocuments(username string) ([]models.Document, error) {
	rows, err := c.db.Query(`
		SELECT id, username, filename, extracted_text, uploaded_at
		FROM documents WHERE username = ? ORDER BY id ASC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var uploadedAt int64
		if err := rows.Scan(&doc.ID, &doc.Username, &doc.Filename, &doc.Text, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.UploadedAt = time.Unix(uploadedAt, 0)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *Client) CountDocuments(username string) (int, error) {
	var count int
	err := c.db.QueryRow(
		"SELECT COUNT(*) FROM documents WHERE username = ?", username,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

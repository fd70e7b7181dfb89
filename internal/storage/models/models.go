package models

import "time"

// User is an account row. APIKey is empty when the user registered but has
// not supplied a credential yet.
type User struct {
	Username string
	APIKey   string
}

// Document is an uploaded file's extracted text. Rows are immutable:
// re-uploading the same filename for the same owner is rejected and the
// existing row kept.
type Document struct {
	ID         int64
	Username   string
	Filename   string
	Text       string
	UploadedAt time.Time
}

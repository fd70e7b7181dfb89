package utils

import (
	"crypto/md5"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// SafeName maps an arbitrary identifier to a filesystem-safe directory name.
// Identifiers that are already plain alphanumerics pass through unchanged so
// on-disk layout stays readable; anything else falls back to a hash. A
// leading dot is hashed too, so "." and ".." can never name a directory.
func SafeName(input string) string {
	if input == "" || input[0] == '.' {
		return HashString(input)
	}
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return HashString(input)
		}
	}
	return input
}

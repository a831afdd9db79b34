// Package util contains any functions used across the application that don't match
// any other package
package util

import (
	"path"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewID returns a random identifier used for rows exposed through the API.
func NewID() (string, error) {
	return gonanoid.Generate(charset, 16)
}

// ObjectKey builds a fresh object key for a file uploaded into a project.
// The original extension is kept so the stored object stays recognizable.
func ObjectKey(project, name string) (string, error) {
	id, err := gonanoid.Generate(charset, 21)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\?#") {
		ext = ""
	}

	return project + "/" + id + ext, nil
}

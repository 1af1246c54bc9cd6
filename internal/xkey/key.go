package xkey

import (
	"net/url"
	"path"
	"strings"

	"github.com/gofrs/uuid"
)

// New crafts an unguessable object key for the given filename:
// `<random prefix>/<sanitized filename>'.
func New(filename string) string {
	return uuid.Must(uuid.NewV4()).String() + "/" + Sanitize(filename)
}

// Sanitize keeps only the base name of the given client-supplied filename.
func Sanitize(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(path.Clean("/" + filename))
	if filename == "/" || filename == "." {
		return "unnamed"
	}
	return filename
}

// Entities takes the path p and extracts the prefix and the filename.
func Entities(p string) (prefix, filename string) {
	cp, err := url.PathUnescape(p)
	if err == nil {
		p = cp
	}

	artifacts := strings.Split(p, "/")
	if len(artifacts) < 2 {
		return artifacts[0], ""
	}
	return artifacts[0], path.Join(artifacts[1:]...)
}

// Join rebuilds a key from its prefix and filename.
func Join(prefix, filename string) string {
	return prefix + "/" + filename
}

package quota

import (
	"path"
	"strings"
)

// allowedTypes is the media type allow-list.
var allowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"image/svg+xml":   true,
	"application/pdf": true,
	"application/zip": true,
	"application/json": true,
	"text/plain":      true,
	"text/markdown":   true,
	"text/csv":        true,
	"audio/mpeg":      true,
	"video/mp4":       true,
}

// allowedExtensions is the fallback allow-list when the declared media type
// is not recognized.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
	".pdf":  true,
	".zip":  true,
	".json": true,
	".txt":  true,
	".md":   true,
	".csv":  true,
	".mp3":  true,
	".mp4":  true,
}

// Allowed reports whether the file can enter the gateway. A file passes when
// its declared media type is allow-listed, or its extension is, or its
// declared type is empty/generic. The last case is deliberately permissive:
// client-supplied types are inconsistent and an empty type must not produce
// a false negative.
func Allowed(filename, mediatype string) bool {
	mediatype = strings.ToLower(strings.TrimSpace(mediatype))
	if i := strings.IndexByte(mediatype, ';'); i >= 0 {
		mediatype = strings.TrimSpace(mediatype[:i])
	}

	if allowedTypes[mediatype] {
		return true
	}
	if allowedExtensions[strings.ToLower(path.Ext(filename))] {
		return true
	}
	return mediatype == "" || mediatype == "application/octet-stream"
}

package model

import "time"

// An Object represents the metadata sidecar of a blob held by the storage backend.
// The payload bytes are immutable once written; only Pinned, Confirmed and
// LastAccessed are mutated afterwards.
type Object struct {
	Base `json:",inline" storm:"inline"`

	// Key is `<random prefix>/<original filename>'. Never reused.
	Key  string `json:"key" storm:"unique"`
	Size int64  `json:"size"`

	ContentType        string `json:"content_type"`
	ContentDisposition string `json:"content_disposition"`
	Checksum           string `json:"checksum"`

	// Pinned objects are exempt from the retention sweep.
	Pinned bool `json:"pinned"`
	// Confirmed guards the usage counter against double increments.
	Confirmed bool `json:"confirmed"`
	// LastAccessed zero value means never stamped and makes the object
	// sweep-eligible.
	LastAccessed time.Time `json:"last_accessed" storm:"index"`
}

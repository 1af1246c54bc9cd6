package model

import "time"

// A PendingBatch is a short-lived snapshot of presigned uploads that are not
// confirmed yet. It is a reconciliation hint, not a source of truth: confirm
// must work without it.
type PendingBatch struct {
	Base `json:",inline" storm:"inline"`

	Keys       []string  `json:"keys"`
	TotalBytes int64     `json:"total_bytes"`
	Pin        bool      `json:"pin"`
	ExpiresAt  time.Time `json:"expires_at" storm:"index"`
}

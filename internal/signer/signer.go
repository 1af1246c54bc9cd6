// Package signer implements SigV4-style query presigning for direct-to-bucket
// uploads. A presigned URL is scoped to one method, one object key and one
// validity window; the long-term secret never leaves the gateway, only the
// derived signature does.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	algorithm       = "AWS4-HMAC-SHA256"
	service         = "s3"
	terminator      = "aws4_request"
	unsignedPayload = "UNSIGNED-PAYLOAD"
	timeFormat      = "20060102T150405Z"
	dateFormat      = "20060102"

	// MaxExpires caps the validity window of a presigned URL.
	MaxExpires = 7 * 24 * time.Hour
)

// Signing errors.
var (
	// ErrNotConfigured is a server-side misconfiguration, not a client error.
	ErrNotConfigured = errors.New("signing credentials are not configured")
	ErrExpired       = errors.New("presigned URL is expired")
	ErrMismatch      = errors.New("signature mismatch")
)

// A Signer produces and verifies time-limited signed URLs.
type Signer struct {
	AccessKey string
	SecretKey string
	Region    string
}

// Configured returns true when the signing credentials are set.
func (s *Signer) Configured() bool {
	return s.AccessKey != "" && s.SecretKey != "" && s.Region != ""
}

// Presign crafts a signed URL authorizing `method' on `upath' until
// `now + expires'. The expiry window is clamped to MaxExpires.
func (s *Signer) Presign(method, scheme, host, upath string, expires time.Duration, now time.Time) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	if expires <= 0 || expires > MaxExpires {
		expires = MaxExpires
	}

	now = now.UTC()
	scope := strings.Join([]string{now.Format(dateFormat), s.Region, service, terminator}, "/")

	query := url.Values{}
	query.Set("X-Amz-Algorithm", algorithm)
	query.Set("X-Amz-Credential", s.AccessKey+"/"+scope)
	query.Set("X-Amz-Date", now.Format(timeFormat))
	query.Set("X-Amz-Expires", strconv.FormatInt(int64(expires/time.Second), 10))
	query.Set("X-Amz-SignedHeaders", "host")

	signature := s.signature(method, host, upath, query, now)

	return fmt.Sprintf("%s://%s%s?%s&X-Amz-Signature=%s",
		scheme, host, escapePath(upath), canonicalQuery(query), signature), nil
}

// Verify recomputes the signature of an inbound presigned request and checks
// the validity window. Any difference in method, path or query parameters
// from what was signed yields a mismatch.
func (s *Signer) Verify(r *http.Request, now time.Time) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	query := r.URL.Query()
	provided := query.Get("X-Amz-Signature")
	if provided == "" || query.Get("X-Amz-Algorithm") != algorithm {
		return ErrMismatch
	}
	if query.Get("X-Amz-SignedHeaders") != "host" {
		return ErrMismatch
	}

	issued, err := time.Parse(timeFormat, query.Get("X-Amz-Date"))
	if err != nil {
		return ErrMismatch
	}
	seconds, err := strconv.ParseInt(query.Get("X-Amz-Expires"), 10, 64)
	if err != nil || seconds <= 0 || seconds > int64(MaxExpires/time.Second) {
		return ErrMismatch
	}
	if now.UTC().After(issued.Add(time.Duration(seconds) * time.Second)) {
		return ErrExpired
	}

	scope := strings.Join([]string{issued.Format(dateFormat), s.Region, service, terminator}, "/")
	if query.Get("X-Amz-Credential") != s.AccessKey+"/"+scope {
		return ErrMismatch
	}

	query.Del("X-Amz-Signature")
	expected := s.signature(r.Method, r.Host, r.URL.Path, query, issued)

	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrMismatch
	}
	return nil
}

// signature builds the canonical request and runs the four-step key
// derivation chain over its string-to-sign.
func (s *Signer) signature(method, host, upath string, query url.Values, t time.Time) string {
	canonical := strings.Join([]string{
		method,
		escapePath(upath),
		canonicalQuery(query),
		"host:" + host + "\n",
		"host",
		unsignedPayload,
	}, "\n")

	hashed := sha256.Sum256([]byte(canonical))
	scope := strings.Join([]string{t.Format(dateFormat), s.Region, service, terminator}, "/")
	stringToSign := strings.Join([]string{
		algorithm,
		t.Format(timeFormat),
		scope,
		hex.EncodeToString(hashed[:]),
	}, "\n")

	key := hmacSHA256([]byte("AWS4"+s.SecretKey), t.Format(dateFormat))
	key = hmacSHA256(key, s.Region)
	key = hmacSHA256(key, service)
	key = hmacSHA256(key, terminator)

	return hex.EncodeToString(hmacSHA256(key, stringToSign))
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// canonicalQuery serializes the query with sorted keys and strict RFC3986
// escaping. Reordering or re-encoding a parameter changes the signature.
func canonicalQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, value := range values {
			pairs = append(pairs, escape(key)+"="+escape(value))
		}
	}
	return strings.Join(pairs, "&")
}

// escape percent-encodes everything but the RFC3986 unreserved characters.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// escapePath percent-encodes the path, segment by segment, keeping the
// separators.
func escapePath(upath string) string {
	segments := strings.Split(upath, "/")
	for i, segment := range segments {
		segments[i] = escape(segment)
	}
	return strings.Join(segments, "/")
}

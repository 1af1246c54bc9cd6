package signer

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner() *Signer {
	return &Signer{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "wJalrXUtnFEMI",
		Region:    "auto",
	}
}

func TestSignerPresign(t *testing.T) {
	s := testSigner()
	issued := time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC)

	signed, err := s.Presign("PUT", "http", "example.org", "/storage/prefix/report.pdf", 600*time.Second, issued)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "example.org", u.Host)
	assert.Equal(t, "/storage/prefix/report.pdf", u.Path)

	query := u.Query()
	assert.Equal(t, "AWS4-HMAC-SHA256", query.Get("X-Amz-Algorithm"))
	assert.Equal(t, "AKIDEXAMPLE/20240512/auto/s3/aws4_request", query.Get("X-Amz-Credential"))
	assert.Equal(t, "20240512T103000Z", query.Get("X-Amz-Date"))
	assert.Equal(t, "600", query.Get("X-Amz-Expires"))
	assert.Equal(t, "host", query.Get("X-Amz-SignedHeaders"))
	assert.NotEmpty(t, query.Get("X-Amz-Signature"))
	assert.NotContains(t, signed, s.SecretKey)
}

func TestSignerPresignClampsExpiry(t *testing.T) {
	s := testSigner()
	issued := time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC)

	signed, err := s.Presign("PUT", "http", "example.org", "/storage/p/f", 30*24*time.Hour, issued)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "604800", u.Query().Get("X-Amz-Expires"))
}

func TestSignerPresignNotConfigured(t *testing.T) {
	s := &Signer{}

	_, err := s.Presign("PUT", "http", "example.org", "/storage/p/f", time.Hour, time.Now())
	assert.Equal(t, ErrNotConfigured, err)
}

func TestSignerVerify(t *testing.T) {
	s := testSigner()
	issued := time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC)

	signed, err := s.Presign("PUT", "http", "example.org", "/storage/prefix/report.pdf", 600*time.Second, issued)
	require.NoError(t, err)

	r := httptest.NewRequest("PUT", signed, nil)
	assert.NoError(t, s.Verify(r, issued.Add(599*time.Second)))
	assert.Equal(t, ErrExpired, s.Verify(r, issued.Add(601*time.Second)))
}

func TestSignerVerifyTampering(t *testing.T) {
	s := testSigner()
	issued := time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC)
	now := issued.Add(time.Minute)

	signed, err := s.Presign("PUT", "http", "example.org", "/storage/prefix/report.pdf", 600*time.Second, issued)
	require.NoError(t, err)

	// Wrong method.
	r := httptest.NewRequest("DELETE", signed, nil)
	assert.Equal(t, ErrMismatch, s.Verify(r, now))

	// Signature replayed against a different object key.
	r = httptest.NewRequest("PUT", strings.Replace(signed, "report.pdf", "other.pdf", 1), nil)
	assert.Equal(t, ErrMismatch, s.Verify(r, now))

	// Widened expiry window.
	r = httptest.NewRequest("PUT", strings.Replace(signed, "X-Amz-Expires=600", "X-Amz-Expires=6000", 1), nil)
	assert.Equal(t, ErrMismatch, s.Verify(r, now))

	// Wrong host.
	r = httptest.NewRequest("PUT", strings.Replace(signed, "example.org", "evil.example.org", 1), nil)
	assert.Equal(t, ErrMismatch, s.Verify(r, now))
}

func TestSignerVerifyForeignCredential(t *testing.T) {
	issued := time.Date(2024, 5, 12, 10, 30, 0, 0, time.UTC)

	other := &Signer{AccessKey: "OTHER", SecretKey: "othersecret", Region: "auto"}
	signed, err := other.Presign("PUT", "http", "example.org", "/storage/p/f", 600*time.Second, issued)
	require.NoError(t, err)

	r := httptest.NewRequest("PUT", signed, nil)
	assert.Equal(t, ErrMismatch, testSigner().Verify(r, issued.Add(time.Second)))
}

func TestSignerVerifyNotConfigured(t *testing.T) {
	s := &Signer{}

	r := httptest.NewRequest("PUT", "http://example.org/storage/p/f", nil)
	assert.Equal(t, ErrNotConfigured, s.Verify(r, time.Now()))
}

package tests

import (
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadFlow(t *testing.T) {
	g, cleanup := setup(1 << 20)
	defer cleanup()

	// Fresh gateway, empty usage.
	status, document := request(t, http.MethodGet, g.URL+"/api/quota", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), document["usedBytes"])
	assert.Equal(t, float64(1<<20), document["limitBytes"])
	assert.Equal(t, true, document["okToUpload"])

	//

	uploads := presignFiles(t, g, false,
		file("notes.txt", 100, "text/plain"),
		file("photo.png", 250, "image/png"),
	)
	require.Len(t, uploads, 2)

	assert.Equal(t, http.StatusCreated, upload(t, uploads["notes.txt"]["url"], "text/plain", content(100)))
	assert.Equal(t, http.StatusCreated, upload(t, uploads["photo.png"]["url"], "image/png", content(250)))

	//

	status, document = request(t, http.MethodPost, g.URL+"/api/confirm", map[string]interface{}{
		"keys": []string{uploads["notes.txt"]["key"], uploads["photo.png"]["key"]},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, document["ok"])
	assert.Equal(t, float64(2), document["updated"])
	assert.Equal(t, float64(350), document["totalBytes"])

	//

	status, document = request(t, http.MethodGet, g.URL+"/api/quota", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(350), document["usedBytes"])

	// Download what was stored.
	res, err := http.Get(g.URL + "/storage/" + uploads["notes.txt"]["key"])
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/plain")

	payload, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, content(100), string(payload))
}

func TestUploadFlowConfirmIsIdempotent(t *testing.T) {
	g, cleanup := setup(1 << 20)
	defer cleanup()

	uploads := presignFiles(t, g, false, file("notes.txt", 100, "text/plain"))
	require.Equal(t, http.StatusCreated, upload(t, uploads["notes.txt"]["url"], "text/plain", content(100)))

	keys := map[string]interface{}{"keys": []string{uploads["notes.txt"]["key"]}}

	status, document := request(t, http.MethodPost, g.URL+"/api/confirm", keys)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), document["updated"])
	assert.Equal(t, float64(100), document["totalBytes"])

	// Confirming again re-stamps the metadata but never double-increments
	// the usage counter.
	status, document = request(t, http.MethodPost, g.URL+"/api/confirm", keys)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), document["updated"])
	assert.Equal(t, float64(0), document["totalBytes"])

	status, document = request(t, http.MethodGet, g.URL+"/api/quota", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), document["usedBytes"])
}

func TestUploadFlowSkipsNeverUploadedKeys(t *testing.T) {
	g, cleanup := setup(1 << 20)
	defer cleanup()

	uploads := presignFiles(t, g, false,
		file("notes.txt", 100, "text/plain"),
		file("photo.png", 250, "image/png"),
	)

	// Only one file of the batch is actually uploaded.
	require.Equal(t, http.StatusCreated, upload(t, uploads["notes.txt"]["url"], "text/plain", content(100)))

	status, document := request(t, http.MethodPost, g.URL+"/api/confirm", map[string]interface{}{
		"keys": []string{uploads["notes.txt"]["key"], uploads["photo.png"]["key"]},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), document["updated"])
	assert.Equal(t, float64(100), document["totalBytes"])
}

func TestUploadRejectsTamperedSignature(t *testing.T) {
	g, cleanup := setup(1 << 20)
	defer cleanup()

	uploads := presignFiles(t, g, false, file("notes.txt", 100, "text/plain"))

	// Replaying the signed URL against a different key must fail.
	tampered, err := url.Parse(uploads["notes.txt"]["url"])
	require.NoError(t, err)
	tampered.Path = "/storage/other-prefix/other.txt"

	assert.Equal(t, http.StatusForbidden, upload(t, tampered.String(), "text/plain", content(100)))
}

func TestUploadRejectsUnsignedPut(t *testing.T) {
	g, cleanup := setup(1 << 20)
	defer cleanup()

	assert.Equal(t, http.StatusForbidden, upload(t, g.URL+"/storage/some-prefix/notes.txt", "text/plain", "hello"))
}

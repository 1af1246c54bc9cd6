package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/quota"
	"github.com/mdouchement/quotagate/internal/signer"
	"github.com/mdouchement/quotagate/internal/storage"
	"github.com/mdouchement/quotagate/internal/sweeper"
	"github.com/mdouchement/quotagate/internal/webserver"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const sweepToken = "cron"

type gateway struct {
	URL     string
	Ctrl    webserver.Controller
	Counter *quota.Counter
	DB      database.Client
}

func setup(limit int64) (*gateway, func()) {
	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   false,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(io.Discard)

	//

	dbname, err := os.CreateTemp(os.TempDir(), "quotagate.db.")
	if err != nil {
		panic(err)
	}

	db, err := database.StormOpen(dbname.Name())
	if err != nil {
		panic(err)
	}

	//

	workspace, err := os.MkdirTemp(os.TempDir(), "quotagate.")
	if err != nil {
		panic(err)
	}

	//

	l := logger.WrapLogrus(log)
	backend := storage.NewFileSystem(workspace)
	counter := quota.NewCounter(db, backend, l)

	ctrl := webserver.Controller{
		Version:  "test",
		Logger:   l,
		Database: db,
		Storage:  backend,
		Counter:  counter,
		Gate:     quota.NewGate(counter, limit),
		Signer: &signer.Signer{
			AccessKey: "AKIDTEST",
			SecretKey: "sekrit",
			Region:    "auto",
		},
		Sweeper:    sweeper.New(db, backend, counter, l),
		SweepToken: sweepToken,
	}
	engine := webserver.EchoEngine(ctrl)

	server := httptest.NewUnstartedServer(engine)
	server.Config.ReadTimeout = 20 * time.Second
	server.Config.WriteTimeout = 20 * time.Second
	server.Start()

	//

	g := &gateway{
		URL:     server.URL,
		Ctrl:    ctrl,
		Counter: counter,
		DB:      db,
	}

	return g, func() {
		server.Close()
		db.Close()
		dbname.Close()

		os.RemoveAll(dbname.Name())
		os.RemoveAll(workspace)
	}
}

//
// HTTP helpers
//

func request(t *testing.T, method, url string, payload interface{}) (int, map[string]interface{}) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	document := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&document))
	return res.StatusCode, document
}

func upload(t *testing.T, url, contentType, content string) int {
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader([]byte(content)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	return res.StatusCode
}

// presignFiles requests upload URLs for the given files and returns the
// mapping of filename to `{key, url}'.
func presignFiles(t *testing.T, g *gateway, pin bool, files ...map[string]interface{}) map[string]map[string]string {
	status, document := request(t, http.MethodPost, g.URL+"/api/upload-urls", map[string]interface{}{
		"files": files,
		"pin":   pin,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, document["ok"])

	uploads := map[string]map[string]string{}
	for _, raw := range document["uploads"].([]interface{}) {
		entry := raw.(map[string]interface{})
		uploads[entry["name"].(string)] = map[string]string{
			"key": entry["key"].(string),
			"url": entry["url"].(string),
		}
	}
	return uploads
}

func file(name string, size int, mediatype string) map[string]interface{} {
	return map[string]interface{}{
		"name": name,
		"size": size,
		"type": mediatype,
	}
}

func content(size int) string {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	return string(data)
}

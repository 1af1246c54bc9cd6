package webserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/model"
	"github.com/mdouchement/quotagate/internal/quota"
	"github.com/mdouchement/quotagate/internal/signer"
	"github.com/mdouchement/quotagate/internal/webserver/weberror"
	"github.com/mdouchement/quotagate/internal/xkey"
)

// uploadURLExpiry bounds the validity of the presigned URLs and of the
// pending batch snapshot.
const uploadURLExpiry = time.Hour

type upload struct {
	logger  logger.Logger
	db      database.Client
	counter *quota.Counter
	gate    *quota.Gate
	signer  *signer.Signer
}

func (h *upload) Quota(c echo.Context) error {
	c.Set("handler_method", "upload.Quota")

	used, err := h.counter.UsedBytes()
	if err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"usedBytes":  used,
		"limitBytes": h.gate.LimitBytes(),
		"okToUpload": used < h.gate.LimitBytes(),
	})
}

func (h *upload) Presign(c echo.Context) error {
	c.Set("handler_method", "upload.Presign")

	var params struct {
		Files []quota.File `json:"files"`
		Pin   bool         `json:"pin"`
	}
	if err := c.Bind(&params); err != nil {
		return weberror.New(http.StatusBadRequest, "malformed payload")
	}

	if err := quota.ValidateBatch(params.Files); err != nil {
		return batchError(err)
	}

	var batchBytes int64
	for _, f := range params.Files {
		if f.Size < 0 {
			return weberror.New(http.StatusBadRequest, "negative file size")
		}
		batchBytes += f.Size
	}

	admission, err := h.gate.Admit(batchBytes)
	if err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}
	if !admission.Allowed {
		return weberror.WithReason(
			http.StatusRequestEntityTooLarge,
			fmt.Sprintf("quota exceeded: %d of %d bytes used", admission.UsedBytes, admission.LimitBytes),
			"quota_exceeded",
		)
	}

	//

	now := time.Now()
	scheme := c.Scheme()
	host := c.Request().Host

	type uploadResponse struct {
		Key  string `json:"key"`
		URL  string `json:"url"`
		Name string `json:"name"`
		Size int64  `json:"size"`
		Type string `json:"type"`
	}

	uploads := make([]uploadResponse, 0, len(params.Files))
	keys := make([]string, 0, len(params.Files))
	for _, f := range params.Files {
		key := xkey.New(f.Name)

		url, err := h.signer.Presign(http.MethodPut, scheme, host, "/storage/"+key, uploadURLExpiry, now)
		if err != nil {
			// Missing credentials are a server-side misconfiguration.
			return weberror.New(http.StatusInternalServerError, err.Error())
		}

		uploads = append(uploads, uploadResponse{
			Key:  key,
			URL:  url,
			Name: f.Name,
			Size: f.Size,
			Type: f.Type,
		})
		keys = append(keys, key)
	}

	// Snapshot of the batch for later reconciliation. A hint only: losing it
	// must never block confirm.
	batch := &model.PendingBatch{
		Keys:       keys,
		TotalBytes: batchBytes,
		Pin:        params.Pin,
		ExpiresAt:  now.Add(uploadURLExpiry).UTC(),
	}
	if err := h.db.Save(batch); err != nil {
		h.logger.Errorf("could not snapshot pending batch: %s", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":      true,
		"uploads": uploads,
		"pin":     params.Pin,
	})
}

func (h *upload) Confirm(c echo.Context) error {
	c.Set("handler_method", "upload.Confirm")

	var params struct {
		Keys []string `json:"keys"`
		Pin  bool     `json:"pin"`
	}
	if err := c.Bind(&params); err != nil {
		return weberror.New(http.StatusBadRequest, "malformed payload")
	}

	now := time.Now().UTC()

	var updated int
	var totalBytes int64
	for _, key := range params.Keys {
		object, err := h.db.FindObjectByKey(key)
		if err != nil {
			// Never uploaded or wrong key: skipped, not errored, so an
			// unconfirmed batch cannot inflate the counter.
			if !h.db.IsNotFound(err) {
				h.logger.Errorf("confirm %s: %s", key, err)
			}
			continue
		}

		first := !object.Confirmed
		object.Confirmed = true
		object.Pinned = params.Pin
		object.LastAccessed = now

		if err := h.db.Save(object); err != nil {
			h.logger.Errorf("confirm %s: %s", key, err)
			continue
		}

		updated++
		if first {
			totalBytes += object.Size
		}
	}

	if totalBytes > 0 {
		h.counter.Adjust(totalBytes)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":         true,
		"updated":    updated,
		"totalBytes": totalBytes,
	})
}

// batchError maps validation failures on their HTTP status.
func batchError(err error) error {
	switch err := err.(type) {
	case *quota.TypeNotAllowedError:
		return weberror.WithReason(http.StatusUnsupportedMediaType, err.Error(), "unsupported_type")
	default:
		if err == quota.ErrTooManyFiles {
			return weberror.WithReason(http.StatusRequestEntityTooLarge, err.Error(), "too_many_files")
		}
		return weberror.New(http.StatusBadRequest, err.Error())
	}
}

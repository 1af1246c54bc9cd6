package webserver

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/model"
	"github.com/mdouchement/quotagate/internal/signer"
	"github.com/mdouchement/quotagate/internal/storage"
	"github.com/mdouchement/quotagate/internal/webserver/weberror"
)

// bucket serves the object endpoint of the filesystem-hosted bucket: direct
// PUT authorized by a presigned URL, and payload download.
type bucket struct {
	logger  logger.Logger
	db      database.Client
	storage storage.Backend
	signer  *signer.Signer
}

func (h *bucket) Upload(c echo.Context) error {
	c.Set("handler_method", "bucket.Upload")

	switch err := h.signer.Verify(c.Request(), time.Now()); err {
	case nil:
	case signer.ErrNotConfigured:
		return weberror.New(http.StatusInternalServerError, err.Error())
	default:
		return weberror.New(http.StatusForbidden, err.Error())
	}

	key := objectKey(c)

	object, err := h.db.FindObjectByKey(key)
	if err != nil {
		if !h.db.IsNotFound(err) {
			return weberror.New(http.StatusInternalServerError, err.Error())
		}
		object = new(model.Object)
	}
	object.Key = key
	object.ContentType = c.Request().Header.Get("Content-Type")
	if object.ContentType == "" {
		object.ContentType = echo.MIMEOctetStream
	}
	object.ContentDisposition = c.Request().Header.Get("Content-Disposition")

	//

	wc, err := h.storage.Writer(key)
	if err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	checksum := md5.New()
	n, err := io.Copy(io.MultiWriter(checksum, wc), c.Request().Body)
	if err != nil {
		wc.Close()
		return weberror.New(http.StatusInternalServerError, err.Error())
	}
	if err = wc.Close(); err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}
	object.Size = n
	object.Checksum = hex.EncodeToString(checksum.Sum(nil))

	//

	if err := h.db.Save(object); err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set("Etag", object.Checksum)
	return c.NoContent(http.StatusCreated)
}

func (h *bucket) Download(c echo.Context) error {
	c.Set("handler_method", "bucket.Download")

	object, err := h.db.FindObjectByKey(objectKey(c))
	if err != nil {
		if h.db.IsNotFound(err) {
			return weberror.New(http.StatusNotFound, "object not found")
		}
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	r, err := h.storage.Reader(object.Key)
	if err != nil {
		return weberror.New(http.StatusUnprocessableEntity, "object payload unavailable")
	}
	defer r.Close()

	if object.ContentDisposition != "" {
		c.Response().Header().Set("Content-Disposition", object.ContentDisposition)
	}
	c.Response().Header().Set("Etag", object.Checksum)
	return c.Stream(http.StatusOK, object.ContentType, r)
}

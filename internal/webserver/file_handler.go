package webserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/model"
	"github.com/mdouchement/quotagate/internal/quota"
	"github.com/mdouchement/quotagate/internal/storage"
	"github.com/mdouchement/quotagate/internal/webserver/weberror"
	"github.com/mdouchement/quotagate/internal/xkey"
)

type file struct {
	logger  logger.Logger
	db      database.Client
	storage storage.Backend
	counter *quota.Counter
}

func (h *file) Touch(c echo.Context) error {
	c.Set("handler_method", "file.Touch")

	object, err := h.load(c)
	if err != nil {
		return err
	}

	object.LastAccessed = time.Now().UTC()
	if err := h.db.Save(object); err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":            true,
		"key":           object.Key,
		"last_accessed": object.LastAccessed.Format(time.RFC3339),
	})
}

func (h *file) Pin(c echo.Context) error {
	c.Set("handler_method", "file.Pin")

	var params struct {
		Pinned bool `json:"pinned"`
	}
	if err := c.Bind(&params); err != nil {
		return weberror.New(http.StatusBadRequest, "malformed payload")
	}

	object, err := h.load(c)
	if err != nil {
		return err
	}

	object.Pinned = params.Pinned
	if err := h.db.Save(object); err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":     true,
		"key":    object.Key,
		"pinned": object.Pinned,
	})
}

func (h *file) Delete(c echo.Context) error {
	c.Set("handler_method", "file.Delete")

	// Metadata-only lookup first: deleting an unknown key is a not found
	// error with no side effects.
	object, err := h.load(c)
	if err != nil {
		return err
	}

	if err := h.storage.Remove(object.Key); err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}
	if err := h.db.DeleteObject(object.ID); err != nil {
		return weberror.New(http.StatusInternalServerError, err.Error())
	}

	h.counter.Adjust(-object.Size)

	return c.JSON(http.StatusOK, echo.Map{
		"ok": true,
	})
}

func (h *file) load(c echo.Context) (*model.Object, error) {
	object, err := h.db.FindObjectByKey(objectKey(c))
	if err != nil {
		if h.db.IsNotFound(err) {
			return nil, weberror.New(http.StatusNotFound, "object not found")
		}
		return nil, weberror.New(http.StatusInternalServerError, err.Error())
	}
	return object, nil
}

// objectKey rebuilds the object key from the route parameters.
func objectKey(c echo.Context) string {
	prefix, filename := xkey.Entities(c.Param("prefix") + "/" + c.Param("filename"))
	return xkey.Join(prefix, filename)
}

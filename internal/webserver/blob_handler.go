package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/mdouchement/padbank/internal/webserver/weberror"
)

type blob struct {
	logger  logger.Logger
	service *service.Service
}

func (h *blob) Download(c echo.Context) error {
	c.Set("handler_method", "blob.Download")

	kind := model.Kind(c.Param("kind"))
	if !kind.Valid() {
		return weberror.New(http.StatusBadRequest, "invalid blob kind")
	}

	data, ok, err := h.service.Blob(c.Param("id"), kind)
	if err != nil {
		return err
	}
	if !ok {
		return weberror.New(http.StatusNotFound, "blob not found")
	}

	//

	return c.Blob(http.StatusOK, contentType(kind, data), data)
}

func contentType(kind model.Kind, data []byte) string {
	if kind == model.KindAudio {
		switch audio.Detect(data) {
		case audio.FormatWAV:
			return "audio/wav"
		case audio.FormatMP3:
			return "audio/mpeg"
		}
	}
	return http.DetectContentType(data)
}

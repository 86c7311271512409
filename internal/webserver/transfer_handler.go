package webserver

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/mdouchement/padbank/internal/storage"
	"github.com/mdouchement/padbank/internal/webserver/serializer"
	"github.com/mdouchement/padbank/internal/webserver/weberror"
	"github.com/pkg/errors"
)

// PublicContainer holds the archives of anonymous users.
const PublicContainer = "public"

type transfer struct {
	logger  logger.Logger
	service *service.Service
	storage storage.Backend
}

type adminExportPayload struct {
	AddToDatabase bool   `json:"add_to_database"`
	AllowExport   bool   `json:"allow_export"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Color         string `json:"color"`
}

// Import restores a bank from, in order of precedence, a stored archive named by
// the `archive' query param, a multipart `file' or the raw request body.
func (h *transfer) Import(c echo.Context) error {
	c.Set("handler_method", "transfer.Import")

	data, filename, err := h.source(c)
	if err != nil {
		return err
	}

	result, err := h.service.ImportBank(c.Request().Context(), data, service.ImportOptions{
		Filename: filename,
		Progress: h.progress("import " + filename),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, serializer.Import(result))
}

func (h *transfer) Export(c echo.Context) error {
	c.Set("handler_method", "transfer.Export")

	export, err := h.service.ExportBank(c.Request().Context(), c.Param("id"), h.progress("export "+c.Param("id")))
	if err != nil {
		return err
	}

	return h.deliver(c, export)
}

func (h *transfer) AdminExport(c echo.Context) error {
	c.Set("handler_method", "transfer.AdminExport")

	var payload adminExportPayload
	if err := c.Bind(&payload); err != nil {
		return weberror.New(http.StatusBadRequest, "invalid payload")
	}

	export, err := h.service.ExportAdminBank(c.Request().Context(), c.Param("id"), service.AdminExportOptions{
		AddToDatabase: payload.AddToDatabase,
		AllowExport:   payload.AllowExport,
		Title:         payload.Title,
		Description:   payload.Description,
		Color:         payload.Color,
	}, h.progress("admin export "+c.Param("id")))
	if err != nil {
		return err
	}

	return h.deliver(c, export)
}

func (h *transfer) Archives(c echo.Context) error {
	c.Set("handler_method", "transfer.Archives")

	if h.storage == nil {
		return weberror.New(http.StatusNotImplemented, "no archive storage configured")
	}

	names, err := h.storage.FilenamesFrom(c.Request().Context(), container(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"archives": names,
	})
}

func (h *transfer) RemoveArchive(c echo.Context) error {
	c.Set("handler_method", "transfer.RemoveArchive")

	if h.storage == nil {
		return weberror.New(http.StatusNotImplemented, "no archive storage configured")
	}

	if err := h.storage.Remove(c.Request().Context(), container(c), c.Param("name")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

//
//
//

func (h *transfer) source(c echo.Context) ([]byte, string, error) {
	if name := c.QueryParam("archive"); name != "" {
		if h.storage == nil {
			return nil, "", weberror.New(http.StatusNotImplemented, "no archive storage configured")
		}

		r, err := h.storage.Reader(c.Request().Context(), container(c), name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, "", weberror.New(http.StatusNotFound, err.Error())
			}
			return nil, "", err
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		return data, name, errors.Wrap(err, "could not read archive")
	}

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, "", errors.Wrap(err, "could not open upload")
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		return data, fh.Filename, errors.Wrap(err, "could not read upload")
	}

	data, err := io.ReadAll(c.Request().Body)
	return data, c.QueryParam("filename"), errors.Wrap(err, "could not read body")
}

// deliver stores the archive when the `store' query param is set, otherwise it is sent as an attachment.
func (h *transfer) deliver(c echo.Context, export *service.Export) error {
	if store, _ := strconv.ParseBool(c.QueryParam("store")); store {
		if h.storage == nil {
			return weberror.New(http.StatusNotImplemented, "no archive storage configured")
		}

		w, err := h.storage.Writer(c.Request().Context(), container(c), export.Filename)
		if err != nil {
			return err
		}
		if _, err = w.Write(export.Data); err != nil {
			w.Close()
			return errors.Wrap(err, "could not write archive")
		}
		if err = w.Close(); err != nil {
			return errors.Wrap(err, "could not write archive")
		}

		return c.JSON(http.StatusCreated, serializer.Export(export))
	}

	//

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Response().Header().Set("X-Bank-Encrypted", strconv.FormatBool(export.Encrypted))
	if export.BankID != "" {
		c.Response().Header().Set("X-Bank-ID", export.BankID)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, export.Data)
}

func (h *transfer) progress(step string) service.Progress {
	return func(percent int) {
		h.logger.Debugf("%s: %d%%", step, percent)
	}
}

// container returns the archive container of the current user.
func container(c echo.Context) string {
	if u, ok := service.UserFrom(c.Request().Context()); ok {
		return u.ID
	}
	return PublicContainer
}

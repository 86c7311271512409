package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/mdouchement/padbank/internal/webserver/serializer"
)

type bank struct {
	logger  logger.Logger
	service *service.Service
}

func (h *bank) List(c echo.Context) error {
	c.Set("handler_method", "bank.List")

	banks, err := h.service.ListBanks()
	if err != nil {
		return err
	}

	//

	if c.Request().Header.Get("Accept") == "text/plain" {
		return c.String(http.StatusOK, serializer.TextBanks(banks))
	}
	return c.JSON(http.StatusOK, serializer.Banks(banks))
}

func (h *bank) Show(c echo.Context) error {
	c.Set("handler_method", "bank.Show")

	bank, err := h.service.FindBank(c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Bank(bank))
}

func (h *bank) Transferable(c echo.Context) error {
	c.Set("handler_method", "bank.Transferable")

	bank, err := h.service.FindBank(c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"transferable": service.CanTransferFromBank(bank),
		"exportable":   service.CanExportBank(bank),
	})
}

func (h *bank) Delete(c echo.Context) error {
	c.Set("handler_method", "bank.Delete")

	if err := h.service.DeleteBank(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *bank) Quota(c echo.Context) error {
	c.Set("handler_method", "bank.Quota")

	quota, err := h.service.Quota()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, serializer.Quota(quota))
}

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"city-planner/backend/internal/validation"
)

// ListSchemas names the request schemas
// (GET /api/v1/schemas)
func (h *Handler) ListSchemas(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"schemas": h.validator.Names()})
}

// GetSchema serves the JSON Schema a request body is validated against
// (GET /api/v1/schemas/:name)
func (h *Handler) GetSchema(c echo.Context) error {
	raw, err := h.validator.Schema(c.Param("name"))
	if errors.Is(err, validation.ErrUnknownSchema) {
		return writeProblem(c, http.StatusNotFound, "Unknown Schema", err.Error())
	}
	if err != nil {
		return writeProblem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.Blob(http.StatusOK, "application/schema+json", raw)
}

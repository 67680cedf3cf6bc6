// README: Shared handler utilities: JSON helpers and error-to-status mapping.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parkman/internal/modules/billing"
	"parkman/internal/modules/garage"
)

// timestampLayout matches the webhook simulator's millisecond UTC format.
const timestampLayout = "2006-01-02T15:04:05.000Z"

type apiError struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, apiError{Message: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, garage.ErrSpotNotFound):
		writeError(c, http.StatusNotFound, "spot not found")
	case errors.Is(err, garage.ErrSectorNotFound):
		writeError(c, http.StatusConflict, "sector not found")
	case errors.Is(err, garage.ErrEmptyImport):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, billing.ErrMissingBasePrice):
		writeError(c, http.StatusInternalServerError, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal server error")
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timestampLayout)
	return &v
}

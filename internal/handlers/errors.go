package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrBadRequest wraps request bodies that could not be bound
var ErrBadRequest = errors.New("malformed request body")

type errorStatus struct {
	target error
	status int
	code   string
}

// errorStatuses is checked in order; the first match wins.
var errorStatuses = []errorStatus{
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrAlreadyExists, http.StatusUnprocessableEntity, "already_exists"},
	{models.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
	{models.ErrDiscardedEntity, http.StatusGone, "discarded"},
	{filter.ErrFilter, http.StatusBadRequest, "invalid_filter"},
	{filter.ErrSort, http.StatusBadRequest, "invalid_sort"},
	{filter.ErrPagination, http.StatusBadRequest, "invalid_pagination"},
	{models.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{models.ErrInvalidIdentifier, http.StatusBadRequest, "invalid_identifier"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
}

// statusFor maps an error to its HTTP status and error code
func statusFor(err error) (int, string) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.target) {
			return es.status, es.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes the error body. Internal errors are logged but not echoed.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	fields := logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"status": status,
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).WithFields(fields).WithError(err).Error("Request failed")
		message = "An unexpected error occurred"
	} else {
		logger.FromContext(c.Request.Context()).WithFields(fields).WithError(err).Debug("Request rejected")
	}

	c.JSON(status, models.ErrorResponse{Error: code, Message: message})
}

func bindError(err error) error {
	return fmt.Errorf("%w: %v", ErrBadRequest, err)
}

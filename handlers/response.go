package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"intake-backend/service"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: message, Code: code})
}

// respondError maps a service error to a status code and error body.
func respondError(c *gin.Context, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Error:   "internal error",
			Code:    "INTERNAL_ERROR",
			Details: err.Error(),
		})
		return
	}

	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch se.Kind {
	case service.KindValidation:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case service.KindNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case service.KindConflict:
		status, code = http.StatusConflict, "CONFLICT"
	case service.KindProvider:
		code = "PROVIDER_ERROR"
	case service.KindParse:
		code = "PARSE_ERROR"
	case service.KindStorage:
		code = "STORAGE_ERROR"
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorBody{
		Error:   se.Message,
		Code:    code,
		Details: se.Details(),
		Fields:  se.Fields,
	})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abort(c, http.StatusBadRequest, "INVALID_ID", "invalid "+name)
		return 0, false
	}
	return id, true
}

// parsePatient reads an optional patient id. Blank input yields fallback.
func parsePatient(raw string, fallback *uuid.UUID) (*uuid.UUID, error) {
	if raw == "" {
		return fallback, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

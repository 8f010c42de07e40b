// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string             `json:"error"`
	Details string             `json:"details,omitempty"`
	Fields  []model.FieldError `json:"fields,omitempty"`
}

// WriteJSONError aborts the request with a JSON error payload.
func WriteJSONError(c *gin.Context, status int, code, details string, fields ...model.FieldError) {
	c.AbortWithStatusJSON(status, jsonError{Error: code, Details: details, Fields: fields})
}

// statusFor maps an orchestrator or store error to a status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrNoRecord):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrDuplicateKey):
		return http.StatusConflict, "conflict"
	}
	switch catalog.KindOf(err) {
	case catalog.KindValidation:
		return http.StatusBadRequest, "bad_input"
	case catalog.KindForbidden:
		return http.StatusForbidden, "forbidden"
	case catalog.KindNotFound:
		return http.StatusNotFound, "not_found"
	case catalog.KindConflict:
		return http.StatusConflict, "conflict"
	case catalog.KindAssetStore, catalog.KindPersistence, catalog.KindPublish:
		return http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError renders err. Details of 5xx errors stay in the log.
func writeServiceError(c *gin.Context, err error) {
	status, code := statusFor(err)
	var verr model.ValidationError
	if errors.As(err, &verr) {
		WriteJSONError(c, status, code, "validation failed", verr...)
		return
	}
	if status >= http.StatusInternalServerError {
		obs.Logger.Error("request_failed",
			"request_id", obs.RequestID(c.Request.Context()),
			"status", status,
			"error", err,
		)
		WriteJSONError(c, status, code, "")
		return
	}
	WriteJSONError(c, status, code, err.Error())
}

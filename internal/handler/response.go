package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"pvsf-admin/internal/model"
	"pvsf-admin/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func classifyError(err error) (int, *model.APIError) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var retentionErr *model.RetentionWindowError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.As(err, &retentionErr) {
		status = http.StatusConflict
		body.Code = "RETENTION_WINDOW"
		body.Message = "Retention window has not elapsed"
		body.Details = fmt.Sprintf("days_since_deleted=%d required_days=%d", retentionErr.DaysSinceDeleted, retentionErr.RequiredDays)
	} else if errors.Is(err, model.ErrNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Document not found"
	} else if errors.Is(err, model.ErrLogEntryNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Log entry not found"
	} else if errors.Is(err, model.ErrAlreadyDeleted) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Document is already soft-deleted"
	} else if errors.Is(err, model.ErrNotDeleted) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Document is not soft-deleted"
	} else if errors.Is(err, model.ErrNotSoftDeleted) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Document must be soft-deleted before permanent deletion"
	} else if errors.Is(err, model.ErrUnsupportedOperation) {
		status = http.StatusUnprocessableEntity
		body.Code = "UNSUPPORTED_OPERATION"
		body.Message = "This log entry cannot be restored"
	} else if errors.Is(err, model.ErrEmptyInput) {
		status = http.StatusBadRequest
		body.Code = "EMPTY_INPUT"
		body.Message = "At least one id is required"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
		body.Code = "STORE_UNAVAILABLE"
		body.Message = "Document store is unavailable; retry the whole operation"
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	return status, body
}

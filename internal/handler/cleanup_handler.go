package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pvsf-admin/internal/model"
	"pvsf-admin/internal/service"
	"pvsf-admin/pkg/apierror"
)

type CleanupHandler struct {
	cleanup *service.CleanupService
}

func NewCleanupHandler(cleanup *service.CleanupService) *CleanupHandler {
	return &CleanupHandler{cleanup: cleanup}
}

func (h *CleanupHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	collection := strings.TrimSpace(query.Get("collection"))
	if collection == "" {
		writeError(w, apierror.New("BAD_REQUEST", "collection is required", "", http.StatusBadRequest))
		return
	}

	rawBefore := strings.TrimSpace(query.Get("before"))
	if rawBefore == "" {
		writeError(w, apierror.New("BAD_REQUEST", "before is required", "", http.StatusBadRequest))
		return
	}
	before, err := model.ParseTimestamp(rawBefore)
	if err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid 'before' datetime format", rawBefore, http.StatusBadRequest))
		return
	}

	scanType := strings.TrimSpace(query.Get("type"))
	if scanType == "" {
		scanType = model.CleanupTypeFlat
	}

	items, err := h.cleanup.FindStale(r.Context(), model.CleanupSearch{
		Collection: collection,
		Before:     before,
		Type:       scanType,
		DateField:  strings.TrimSpace(query.Get("date_field")),
		SlotsField: strings.TrimSpace(query.Get("slots_field")),
		Limit:      parseIntOrDefault(query.Get("limit"), 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.CleanupCandidatesData{Items: items}, nil)
}

func (h *CleanupHandler) BatchSoftDelete(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.BatchSoftDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.Collection) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "collection is required", "", http.StatusBadRequest))
		return
	}

	count, err := h.cleanup.BatchSoftDelete(r.Context(), payload.Collection, payload.IDs, actorFromRequest(r))
	if err != nil {
		// A partial failure still carries the completed count so the
		// caller can resume from the right offset.
		var batchErr *model.BatchError
		if errors.As(err, &batchErr) {
			status, body := classifyError(batchErr.Err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(model.APIResponse{
				Success: false,
				Data:    model.BatchSoftDeleteResponse{Count: batchErr.Count},
				Error:   body,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.BatchSoftDeleteResponse{Count: count}, nil)
}

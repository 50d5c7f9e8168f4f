package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"pvsf-admin/internal/model"
	"pvsf-admin/internal/service"
	"pvsf-admin/pkg/apierror"
)

type LifecycleHandler struct {
	lifecycle *service.LifecycleService
}

func NewLifecycleHandler(lifecycle *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle}
}

func (h *LifecycleHandler) ListDeleted(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	collection := strings.TrimSpace(query.Get("collection"))
	if collection == "" {
		writeError(w, apierror.New("BAD_REQUEST", "collection is required", "", http.StatusBadRequest))
		return
	}

	newestFirst := true
	if raw := strings.TrimSpace(query.Get("newest_first")); raw != "" {
		newestFirst = raw != "false" && raw != "0"
	}

	limit := parseIntOrDefault(query.Get("limit"), 0)
	items, nextCursor, err := h.lifecycle.ListDeleted(r.Context(), collection, newestFirst, limit, query.Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}

	meta := &model.Meta{Limit: limit, Count: len(items), NextCursor: nextCursor}
	writeSuccess(w, http.StatusOK, model.DeletedListData{Items: items}, meta)
}

func (h *LifecycleHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.SoftDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.Collection) == "" || strings.TrimSpace(payload.ID) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "collection and id are required", "", http.StatusBadRequest))
		return
	}

	if err := h.lifecycle.SoftDelete(r.Context(), payload.Collection, payload.ID, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, nil)
}

func (h *LifecycleHandler) Restore(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RestoreDeletedRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.Collection) == "" || strings.TrimSpace(payload.ID) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "collection and id are required", "", http.StatusBadRequest))
		return
	}

	if err := h.lifecycle.Restore(r.Context(), payload.Collection, payload.ID, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, nil)
}

func (h *LifecycleHandler) PermanentDelete(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.PermanentDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.Collection) == "" || strings.TrimSpace(payload.ID) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "collection and id are required", "", http.StatusBadRequest))
		return
	}

	if err := h.lifecycle.PermanentDelete(r.Context(), payload.Collection, payload.ID, actorFromRequest(r), payload.Force); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, nil)
}

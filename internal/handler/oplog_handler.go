package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"pvsf-admin/internal/model"
	"pvsf-admin/internal/service"
	"pvsf-admin/pkg/apierror"
)

type OplogHandler struct {
	oplog   *service.OplogService
	restore *service.RestoreService
}

func NewOplogHandler(oplog *service.OplogService, restore *service.RestoreService) *OplogHandler {
	return &OplogHandler{oplog: oplog, restore: restore}
}

func (h *OplogHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if opType := strings.TrimSpace(query.Get("operation_type")); opType != "" {
		if !model.OperationType(opType).Valid() {
			writeError(w, apierror.New("BAD_REQUEST", "unknown operation_type", opType, http.StatusBadRequest))
			return
		}
	}

	limit := parseIntOrDefault(query.Get("limit"), 0)
	items, nextCursor, err := h.oplog.List(r.Context(), model.OperationLogFilter{
		Collection:    strings.TrimSpace(query.Get("collection")),
		OperationType: strings.TrimSpace(query.Get("operation_type")),
		DocID:         strings.TrimSpace(query.Get("doc_id")),
	}, limit, query.Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}

	meta := &model.Meta{Limit: limit, Count: len(items), NextCursor: nextCursor}
	writeSuccess(w, http.StatusOK, model.LogListData{Items: items}, meta)
}

func (h *OplogHandler) RestoreFromLog(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RestoreFromLogRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.LogEntryID) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "log_entry_id is required", "", http.StatusBadRequest))
		return
	}

	docID, err := h.restore.RestoreFromLog(r.Context(), payload.LogEntryID, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.RestoreFromLogResponse{RestoredDocID: docID}, nil)
}

func (h *OplogHandler) Purge(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.oplog.PurgeExpired(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.PurgeResponse{DeletedCount: deleted}, nil)
}

func parseIntOrDefault(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}

	v, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return v
}

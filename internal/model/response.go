package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta carries cursor-style paging info. NextCursor is empty on the last page.
type Meta struct {
	Limit      int    `json:"limit"`
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type LogListData struct {
	Items []OperationLogEntry `json:"items"`
}

type RestoreFromLogResponse struct {
	RestoredDocID string `json:"restored_doc_id"`
}

type PurgeResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

// DeletedItem is one soft-deleted document as shown in the deleted-items view.
type DeletedItem struct {
	Collection       string   `json:"collection"`
	ID               string   `json:"id"`
	DeletedAt        string   `json:"deleted_at"`
	DeletedBy        string   `json:"deleted_by,omitempty"`
	DaysSinceDeleted int      `json:"days_since_deleted"`
	Data             Document `json:"data"`
}

type DeletedListData struct {
	Items []DeletedItem `json:"items"`
}

type CleanupCandidatesData struct {
	Items []CleanupCandidate `json:"items"`
}

type BatchSoftDeleteResponse struct {
	Count int `json:"count"`
}

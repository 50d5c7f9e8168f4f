package model

type RestoreFromLogRequest struct {
	LogEntryID string `json:"log_entry_id"`
}

type SoftDeleteRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type RestoreDeletedRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type PermanentDeleteRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Force      bool   `json:"force"`
}

type BatchSoftDeleteRequest struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

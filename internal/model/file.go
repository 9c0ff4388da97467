package model

import "time"

// StoredFile is an uploaded file as it exists in the storage directory.
// The filename is the storage key; re-uploading a name replaces the content.
type StoredFile struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// Print statuses reported by the print bridge.
const (
	PrintStatusSent   = "sent"
	PrintStatusFailed = "failed"
)

// PrintResult describes the outcome of forwarding one stored file to the printer share.
// It is never persisted.
type PrintResult struct {
	File     string `json:"file"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code,omitempty"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether the print job did not reach the share.
func (r PrintResult) Failed() bool {
	return r.Status != PrintStatusSent
}

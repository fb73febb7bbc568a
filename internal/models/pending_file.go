package models

import (
	"path/filepath"
	"strings"
)

// PendingFile describes a file selected for upload. It is immutable once
// created; the orchestrator removes it from the queue when its lifecycle
// reaches a terminal state.
type PendingFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimeType"`
}

// InvalidFile pairs a rejected selection with the reason it was excluded
// from the queue.
type InvalidFile struct {
	File   PendingFile `json:"file"`
	Reason string      `json:"reason"`
}

// mimeByExtension maps the transcript formats the backend accepts.
var mimeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".csv":  "text/csv",
}

// DetectMIMEType returns the declared media type for a filename based on its
// extension, or an empty string for unknown extensions.
func DetectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return mimeByExtension[ext]
}

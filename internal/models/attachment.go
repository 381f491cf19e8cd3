package models

import "time"

// FileAttachment is a file owned by a document, identified by the composite
// key (OwnerSyncID, FileName). At least one of LocalPath / RemoteKey is set
// after creation; RemoteKey is only set once an upload has been confirmed.
type FileAttachment struct {
	OwnerSyncID string
	FileName    string
	LocalPath   string
	RemoteKey   string
	FileSize    int64
	AddedAt     time.Time
	Label       string
}

// NeedsDownload reports whether the attachment exists remotely but has no
// local copy yet.
func (a *FileAttachment) NeedsDownload() bool {
	return a.RemoteKey != "" && a.LocalPath == ""
}

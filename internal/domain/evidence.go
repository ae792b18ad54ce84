package domain

import "time"

// EvidenceReference stores metadata for a document backing a case. The file
// itself lives in external storage; only the storage key is kept here.
type EvidenceReference struct {
	ID         string
	CaseID     string
	UploadedBy string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}

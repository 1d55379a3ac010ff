package models

import (
	"time"
)

// DocumentMetadataRecord is the row written once per successful upload.
// UploadedAt is assigned by the document store, never by the caller.
type DocumentMetadataRecord struct {
	ID         string    `json:"id,omitempty" firestore:"-"`
	UID        string    `json:"uid" firestore:"uid"`
	Name       string    `json:"name" firestore:"name"`
	URL        string    `json:"url" firestore:"url"`
	UploadedAt time.Time `json:"uploadedAt" firestore:"uploadedAt"`
}

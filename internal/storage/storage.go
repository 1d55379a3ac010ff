// Package storage persists the metadata record written for every uploaded PDF.
package storage

import (
	"context"
	"errors"

	"github.com/lumeno-study/lumeno/internal/models"
)

// CollectionPDFs is the collection upload records are written to.
const CollectionPDFs = "pdfs"

var errEmptyCollection = errors.New("collection name is required")

// Store is the document store contract. Insert assigns ID (when empty)
// and UploadedAt, and returns the record as stored.
type Store interface {
	Insert(ctx context.Context, collection string, record models.DocumentMetadataRecord) (models.DocumentMetadataRecord, error)
	ListByOwner(ctx context.Context, collection, uid string) ([]models.DocumentMetadataRecord, error)
	Close() error
}

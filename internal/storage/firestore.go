package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/lumeno-study/lumeno/internal/models"
)

// FirestoreStore writes records as Firestore documents. uploadedAt is the
// server timestamp of the write.
type FirestoreStore struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	logger.Info("connected to Firestore", "project", projectID)
	return &FirestoreStore{client: client, logger: logger.With("component", "firestore")}, nil
}

func (f *FirestoreStore) Insert(ctx context.Context, collection string, record models.DocumentMetadataRecord) (models.DocumentMetadataRecord, error) {
	if collection == "" {
		return models.DocumentMetadataRecord{}, errEmptyCollection
	}
	data := map[string]interface{}{
		"uid":        record.UID,
		"name":       record.Name,
		"url":        record.URL,
		"uploadedAt": firestore.ServerTimestamp,
	}

	col := f.client.Collection(collection)
	var (
		ref *firestore.DocumentRef
		wr  *firestore.WriteResult
		err error
	)
	if record.ID == "" {
		ref, wr, err = col.Add(ctx, data)
	} else {
		ref = col.Doc(record.ID)
		wr, err = ref.Create(ctx, data)
	}
	if err != nil {
		f.logger.Error("failed to add document", "collection", collection, "uid", record.UID, "error", err)
		return models.DocumentMetadataRecord{}, fmt.Errorf("failed to add document: %w", err)
	}

	record.ID = ref.ID
	record.UploadedAt = wr.UpdateTime
	return record, nil
}

func (f *FirestoreStore) ListByOwner(ctx context.Context, collection, uid string) ([]models.DocumentMetadataRecord, error) {
	iter := f.client.Collection(collection).Where("uid", "==", uid).Documents(ctx)
	defer iter.Stop()

	records := []models.DocumentMetadataRecord{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		var r models.DocumentMetadataRecord
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", doc.Ref.ID, err)
		}
		r.ID = doc.Ref.ID
		records = append(records, r)
	}

	// No composite index on (uid, uploadedAt) is assumed; sort in memory.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
	return records, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

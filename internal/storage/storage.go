package storage

import "context"

// ObjectStore is the durable storage contract the ingestion pipeline depends
// on. It never assumes a particular backend, only this save contract.
type ObjectStore interface {
	Save(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/saku-tracker/internal/blob"
)

// DefaultKey is the name the durable image is stored under.
const DefaultKey = "saku_sqlite.db"

// Persister reads and writes the full durable image of the store.
type Persister interface {
	// Load returns the last saved image, or nil with no error when nothing
	// has been saved yet.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the durable image.
	Save(ctx context.Context, image []byte) error
}

// BlobPersister keeps the image as one object in a blob store.
type BlobPersister struct {
	Store blob.Store
	Key   string
}

func NewBlobPersister(s blob.Store, key string) *BlobPersister {
	if key == "" {
		key = DefaultKey
	}
	return &BlobPersister{Store: s, Key: key}
}

func (p *BlobPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := p.Store.Get(ctx, p.Key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BlobPersister.Load: %w", err)
	}
	return data, nil
}

func (p *BlobPersister) Save(ctx context.Context, image []byte) error {
	if err := p.Store.Put(ctx, p.Key, image); err != nil {
		return fmt.Errorf("BlobPersister.Save: %w", err)
	}
	return nil
}

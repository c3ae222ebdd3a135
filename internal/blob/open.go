package blob

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendGCS      = "gcs"
	BackendS3       = "s3"
	BackendAzure    = "azblob"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config selects and configures one backend.
type Config struct {
	Backend string

	Dir string

	GCSBucket      string
	GCSPrefix      string
	GCSCredentials string

	S3Bucket   string
	S3Region   string
	S3Endpoint string

	AzureURL       string
	AzureContainer string

	MongoURI        string
	MongoDB         string
	MongoCollection string

	DatabaseURL string
}

// Open constructs the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (Store, error) {
	log.Debug().Str("backend", cfg.Backend).Msg("opening blob store")

	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile, "":
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		return NewFile(dir)
	case BackendGCS:
		return NewGCS(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentials)
	case BackendS3:
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	case BackendAzure:
		return NewAzureBlob(ctx, cfg.AzureURL, cfg.AzureContainer, log)
	case BackendMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
	case BackendPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("Open: unknown blob backend %q", cfg.Backend)
}

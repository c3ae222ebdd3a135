package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rs/zerolog"
)

// Standard Azurite account name and key.
const (
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// AzureBlob stores objects as block blobs in one container.
type AzureBlob struct {
	client    *azblob.Client
	container string
}

// NewAzureBlob connects to serviceURL. An http:// URL is treated as a local
// Azurite emulator and uses its shared key; anything else uses the default
// Azure credential chain.
func NewAzureBlob(ctx context.Context, serviceURL, container string, log zerolog.Logger) (*AzureBlob, error) {
	if serviceURL == "" {
		return nil, fmt.Errorf("NewAzureBlob: service URL cannot be empty")
	}
	if container == "" {
		return nil, fmt.Errorf("NewAzureBlob: container cannot be empty")
	}

	var client *azblob.Client
	if strings.HasPrefix(serviceURL, "http://") {
		cred, err := azblob.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if err != nil {
			return nil, fmt.Errorf("NewAzureBlob: shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("NewAzureBlob: client with shared key: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("NewAzureBlob: default azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("NewAzureBlob: create client: %w", err)
		}
	}

	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		log.Warn().Err(err).Str("container", container).Msg("failed to create container (may already exist)")
	}

	return &AzureBlob{client: client, container: container}, nil
}

func (a *AzureBlob) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("AzureBlob.Get: download %s/%s: %w", a.container, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("AzureBlob.Get: read content: %w", err)
	}
	return data, nil
}

func (a *AzureBlob) Put(ctx context.Context, key string, data []byte) error {
	if _, err := a.client.UploadBuffer(ctx, a.container, key, data, nil); err != nil {
		return fmt.Errorf("AzureBlob.Put: upload %s/%s: %w", a.container, key, err)
	}
	return nil
}

func (a *AzureBlob) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("AzureBlob.Delete: %w", err)
	}
	return nil
}

func (a *AzureBlob) Close() error { return nil }

package mirror

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/studiopipe/kitsu-fetch/internal/config"
)

// AzureUploader writes blobs to one container. The service URL carries
// its own SAS token.
type AzureUploader struct {
	client    *azblob.Client
	container string
}

// NewAzureUploader creates an uploader for cfg.AzureServiceURL, e.g.
// https://account.blob.core.windows.net/?sv=...
func NewAzureUploader(cfg config.MirrorConfig, httpClient *nethttp.Client) (*AzureUploader, error) {
	if cfg.AzureServiceURL == "" || cfg.AzureContainer == "" {
		return nil, errors.New("azure mirror requires a service url and a container")
	}

	var opts *azblob.ClientOptions
	if httpClient != nil {
		opts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Transport: httpClient,
			},
		}
	}
	client, err := azblob.NewClientWithNoCredential(cfg.AzureServiceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return &AzureUploader{client: client, container: cfg.AzureContainer}, nil
}

func (u *AzureUploader) Target() string {
	return "azure://" + u.container
}

func (u *AzureUploader) Stat(ctx context.Context, key string) (int64, bool, error) {
	blob := u.client.ServiceClient().NewContainerClient(u.container).NewBlobClient(key)
	resp, err := blob.GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	var size int64
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return size, true, nil
}

func (u *AzureUploader) Upload(ctx context.Context, key, localPath string, size int64) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.UploadFile(ctx, u.container, key, f, nil)
	return err
}

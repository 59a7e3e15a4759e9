package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

var _ BlobStore = (*AzureStore)(nil)

// AzureStore stores blobs as block blobs. A single-shot block blob upload
// commits atomically, so readers see either the old or the new content.
type AzureStore struct {
	client *azblob.Client
}

func NewAzureStore(connectionString string) (*AzureStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("new azure blob client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

func (as *AzureStore) Put(ctx context.Context, container, key string, data []byte, contentType string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "azureStore.put")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("blob.container", container),
		attribute.String("blob.key", key),
		attribute.Int("blob.size", len(data)),
	)

	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}

	if _, err := as.client.UploadBuffer(ctx, container, key, data, opts); err != nil {
		return newPersistenceError("put", container, key, err)
	}

	log.Debugf("azure store: uploaded %s/%s (%d bytes)", container, key, len(data))
	return nil
}

func (as *AzureStore) Get(ctx context.Context, container, key string) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "azureStore.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("blob.container", container),
		attribute.String("blob.key", key),
	)

	resp, err := as.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, newPersistenceError("get", container, key, ErrNotFound)
		}
		return nil, newPersistenceError("get", container, key, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warnf("azure store: close body of %s/%s: %s", container, key, closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newPersistenceError("get", container, key, err)
	}
	return data, nil
}

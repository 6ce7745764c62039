// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cloudstorage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/purchaseloader/internal/azureclient"
)

// azureClient implements the Client interface for Azure Blob Storage. The
// bucket is the container name.
type azureClient struct {
	blobClient *azureclient.BlobClient
}

// ReadObject downloads a blob into memory.
func (c *azureClient) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, span := c.blobClient.Tracer.Start(ctx, "cloudstorage.azureReadObject",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	resp, err := c.blobClient.Client.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			recordDownloadError(ctx, ProviderAzure, bucket, "not_found")
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		recordDownloadError(ctx, ProviderAzure, bucket, "unknown")
		return nil, fmt.Errorf("download blob %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		recordDownloadError(ctx, ProviderAzure, bucket, "copy_failed")
		return nil, fmt.Errorf("read blob content: %w", err)
	}

	recordDownload(ctx, ProviderAzure, bucket, len(data))
	return data, nil
}

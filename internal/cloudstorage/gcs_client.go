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
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/purchaseloader/internal/gcpclient"
)

// gcsClient implements the Client interface for Google Cloud Storage.
type gcsClient struct {
	storageClient *gcpclient.StorageClient
}

// ReadObject downloads an object from GCS into memory.
func (c *gcsClient) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, span := c.storageClient.Tracer.Start(ctx, "cloudstorage.gcsReadObject",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	reader, err := c.storageClient.Client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		if errors.Is(err, storage.ErrObjectNotExist) {
			recordDownloadError(ctx, ProviderGCS, bucket, "not_found")
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, key)
		}
		recordDownloadError(ctx, ProviderGCS, bucket, "unknown")
		return nil, fmt.Errorf("download gs://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		recordDownloadError(ctx, ProviderGCS, bucket, "copy_failed")
		return nil, fmt.Errorf("read object content: %w", err)
	}

	recordDownload(ctx, ProviderGCS, bucket, len(data))
	return data, nil
}

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

	"github.com/cardinalhq/purchaseloader/internal/awsclient"
	"github.com/cardinalhq/purchaseloader/internal/azureclient"
	"github.com/cardinalhq/purchaseloader/internal/gcpclient"
)

// CloudManagers holds the cloud provider managers and implements
// ClientProvider. Managers are created lazily so that a process configured
// for one provider never loads credentials for the others.
type CloudManagers struct {
	GCP   *gcpclient.Manager
	AWS   *awsclient.Manager
	Azure *azureclient.Manager
}

var _ ClientProvider = (*CloudManagers)(nil)

// NewCloudManagers returns an empty set of managers.
func NewCloudManagers() *CloudManagers {
	return &CloudManagers{}
}

// NewClient creates a storage Client for the given settings.
func (m *CloudManagers) NewClient(ctx context.Context, settings Settings) (Client, error) {
	switch settings.Provider {
	case ProviderGCS, "":
		if m.GCP == nil {
			mgr, err := gcpclient.NewManager(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create GCP manager: %w", err)
			}
			m.GCP = mgr
		}
		var opts []gcpclient.StorageOption
		if settings.ImpersonateServiceAccount != "" {
			opts = append(opts, gcpclient.WithImpersonateServiceAccount(settings.ImpersonateServiceAccount))
		}
		storageClient, err := m.GCP.GetStorage(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		return &gcsClient{storageClient: storageClient}, nil

	case ProviderS3:
		if m.AWS == nil {
			mgr, err := awsclient.NewManager(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create AWS manager: %w", err)
			}
			m.AWS = mgr
		}
		awsS3Client, err := m.AWS.GetS3(ctx, s3Options(settings)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{awsS3Client: awsS3Client}, nil

	case ProviderAzure:
		if m.Azure == nil {
			mgr, err := azureclient.NewManager(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create Azure manager: %w", err)
			}
			m.Azure = mgr
		}
		opts := []azureclient.BlobOption{azureclient.WithBlobStorageAccount(settings.StorageAccount)}
		if settings.Endpoint != "" {
			opts = append(opts, azureclient.WithBlobEndpoint(settings.Endpoint))
		}
		blobClient, err := m.Azure.GetBlob(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return &azureClient{blobClient: blobClient}, nil

	case ProviderFile:
		if settings.Root == "" {
			return nil, fmt.Errorf("file provider requires a root directory")
		}
		return NewFileClient(settings.Root), nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", settings.Provider)
	}
}

func s3Options(settings Settings) []awsclient.S3Option {
	var opts []awsclient.S3Option
	if settings.Region != "" {
		opts = append(opts, awsclient.WithRegion(settings.Region))
	}
	if settings.Role != "" {
		opts = append(opts, awsclient.WithRole(settings.Role))
	}
	if settings.Endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(settings.Endpoint))
	}
	if settings.PathStyle {
		opts = append(opts, awsclient.WithPathStyle())
	}
	if settings.InsecureTLS {
		opts = append(opts, awsclient.WithInsecureTLS())
	}
	return opts
}

// Close releases clients held by managers that were created.
func (m *CloudManagers) Close() error {
	if m.GCP != nil {
		return m.GCP.Close()
	}
	return nil
}

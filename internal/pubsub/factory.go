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

package pubsub

import (
	"context"
	"fmt"

	"github.com/cardinalhq/purchaseloader/internal/azureclient"
	"github.com/cardinalhq/purchaseloader/internal/gcpclient"
)

// BackendSettings carries the settings for every pull backend; only the one
// matching the requested type is read.
type BackendSettings struct {
	GCP   GCPPubSubSettings  `mapstructure:"gcp"`
	Azure AzureQueueSettings `mapstructure:"azure"`
}

// NewBackend creates a new Backend implementation based on the specified type
func NewBackend(ctx context.Context, backendType BackendType, settings BackendSettings, handler *Handler) (Backend, error) {
	switch backendType {
	case BackendTypeGCPPubSub:
		mgr, err := gcpclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP manager: %w", err)
		}
		return NewGCPPubSubService(ctx, mgr, settings.GCP, handler)
	case BackendTypeAzure:
		mgr, err := azureclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure manager: %w", err)
		}
		return NewAzureQueueService(ctx, mgr, settings.Azure, handler)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", backendType)
	}
}

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

package gcpclient

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
)

// Manager handles GCP client creation and caching using Application Default Credentials.
type Manager struct {
	sync.RWMutex
	storageClients map[clientKey]*StorageClient
	pubsubClients  map[pubsubClientKey]*PubSubClient
	tracer         trace.Tracer
}

// clientKey is used for caching clients per impersonated principal.
type clientKey struct {
	ServiceAccountEmail string
}

// NewManager creates a new GCP client manager.
func NewManager(ctx context.Context) (*Manager, error) {
	tracer := otel.Tracer("github.com/cardinalhq/purchaseloader/internal/gcpclient")
	return &Manager{
		storageClients: make(map[clientKey]*StorageClient),
		pubsubClients:  make(map[pubsubClientKey]*PubSubClient),
		tracer:         tracer,
	}, nil
}

// Close releases every cached client.
func (m *Manager) Close() error {
	m.Lock()
	defer m.Unlock()

	var firstErr error
	for k, c := range m.storageClients {
		if err := c.Client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.storageClients, k)
	}
	for k, c := range m.pubsubClients {
		if err := c.Client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.pubsubClients, k)
	}
	return firstErr
}

func credentialOptions(ctx context.Context, serviceAccountEmail string, scopes ...string) ([]option.ClientOption, error) {
	if serviceAccountEmail == "" {
		return nil, nil
	}
	ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
		TargetPrincipal: serviceAccountEmail,
		Scopes:          scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("creating impersonated token source: %w", err)
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}

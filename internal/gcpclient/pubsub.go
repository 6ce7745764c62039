// Copyright (C) 2025-2026 CardinalHQ, Inc
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
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel/trace"
)

// PubSubClient wraps a Pub/Sub client bound to one project.
type PubSubClient struct {
	Client *pubsub.Client
	Tracer trace.Tracer
}

type pubsubClientKey struct {
	ProjectID           string
	ServiceAccountEmail string
}

type pubsubConfig struct {
	ServiceAccountEmail string
}

// PubSubOption is a functional option for GetPubSub.
type PubSubOption func(*pubsubConfig)

// WithPubSubImpersonation sets the service account email to impersonate.
func WithPubSubImpersonation(email string) PubSubOption {
	return func(c *pubsubConfig) {
		c.ServiceAccountEmail = email
	}
}

// GetPubSub returns a cached Pub/Sub client for projectID.
func (m *Manager) GetPubSub(ctx context.Context, projectID string, opts ...PubSubOption) (*PubSubClient, error) {
	if projectID == "" {
		return nil, errors.New("project ID is required")
	}
	cfg := pubsubConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	key := pubsubClientKey{ProjectID: projectID, ServiceAccountEmail: cfg.ServiceAccountEmail}
	m.RLock()
	client, ok := m.pubsubClients[key]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()

	if client, ok = m.pubsubClients[key]; ok {
		return client, nil
	}

	clientOpts, err := credentialOptions(ctx, cfg.ServiceAccountEmail, pubsub.ScopePubSub)
	if err != nil {
		return nil, err
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCP pubsub client: %w", err)
	}

	client = &PubSubClient{Client: psClient, Tracer: m.tracer}
	m.pubsubClients[key] = client
	return client, nil
}

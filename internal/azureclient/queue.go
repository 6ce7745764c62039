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

package azureclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel/trace"
)

type QueueClient struct {
	QueueClient *azqueue.QueueClient
	Tracer      trace.Tracer
}

type queueConfig struct {
	StorageAccount string
	Endpoint       string
}

type QueueOption func(*queueConfig)

func WithQueueStorageAccount(storageAccount string) QueueOption {
	return func(c *queueConfig) {
		c.StorageAccount = storageAccount
	}
}

// WithQueueEndpoint overrides the queue service endpoint (eg Azurite).
func WithQueueEndpoint(endpoint string) QueueOption {
	return func(c *queueConfig) {
		c.Endpoint = endpoint
	}
}

type queueClientKey struct {
	Endpoint  string
	QueueName string
}

// GetQueue returns a cached client for one storage queue.
func (m *Manager) GetQueue(ctx context.Context, queueName string, opts ...QueueOption) (*QueueClient, error) {
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	qc := queueConfig{}
	for _, o := range opts {
		o(&qc)
	}
	if qc.StorageAccount == "" && qc.Endpoint == "" {
		return nil, errors.New("storage account or endpoint is required")
	}
	if qc.Endpoint == "" {
		qc.Endpoint = fmt.Sprintf("https://%s.queue.core.windows.net/", qc.StorageAccount)
	}

	key := queueClientKey{Endpoint: qc.Endpoint, QueueName: queueName}
	m.RLock()
	client, ok := m.queueClients[key]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.queueClients[key]; ok {
		return client, nil
	}

	queueURL := strings.TrimSuffix(qc.Endpoint, "/") + "/" + queueName
	q, err := azqueue.NewQueueClient(queueURL, m.baseCred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}

	client = &QueueClient{QueueClient: q, Tracer: m.tracer}
	m.queueClients[key] = client
	return client, nil
}

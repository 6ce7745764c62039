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
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/purchaseloader/internal/azureclient"
	"github.com/cardinalhq/purchaseloader/internal/constants"
)

// AzureQueueSettings configures the storage queue poller.
type AzureQueueSettings struct {
	StorageAccount string `mapstructure:"storage_account"`
	Endpoint       string `mapstructure:"endpoint"`
	QueueName      string `mapstructure:"queue_name"`
}

type AzureQueueService struct {
	tracer      trace.Tracer
	queueClient *azureclient.QueueClient
	queueName   string
	handler     *Handler
}

var _ Backend = (*AzureQueueService)(nil)

func NewAzureQueueService(ctx context.Context, mgr *azureclient.Manager, settings AzureQueueSettings, handler *Handler) (*AzureQueueService, error) {
	if settings.QueueName == "" {
		return nil, errors.New("azure queue name is required")
	}
	opts := []azureclient.QueueOption{azureclient.WithQueueStorageAccount(settings.StorageAccount)}
	if settings.Endpoint != "" {
		opts = append(opts, azureclient.WithQueueEndpoint(settings.Endpoint))
	}
	queueClient, err := mgr.GetQueue(ctx, settings.QueueName, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Queue client: %w", err)
	}

	return &AzureQueueService{
		tracer:      otel.Tracer("github.com/cardinalhq/purchaseloader/internal/pubsub/azure"),
		queueClient: queueClient,
		queueName:   settings.QueueName,
		handler:     handler,
	}, nil
}

func (ps *AzureQueueService) GetName() string {
	return string(BackendTypeAzure)
}

func (ps *AzureQueueService) Run(doneCtx context.Context) error {
	slog.Info("Starting Azure Queue Storage pubsub service", slog.String("queue", ps.queueName))

	for {
		select {
		case <-doneCtx.Done():
			slog.Info("Azure Queue polling loop stopped")
			return nil
		default:
		}

		ctx, cancel := context.WithTimeout(doneCtx, 30*time.Second)
		numberOfMessages := constants.AzureDequeueBatch
		visibilityTimeout := int32(constants.AzureVisibilityTimeout / time.Second)
		result, err := ps.queueClient.QueueClient.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
			NumberOfMessages:  &numberOfMessages,
			VisibilityTimeout: &visibilityTimeout,
		})
		cancel()

		if err != nil {
			if doneCtx.Err() != nil {
				return nil
			}
			slog.Error("Failed to receive messages from Azure Queue", slog.Any("error", err))
			sleepCtx(doneCtx, constants.AzurePollErrorDelay)
			continue
		}

		for _, message := range result.Messages {
			if message.MessageID == nil || message.PopReceipt == nil {
				continue
			}
			text := ""
			if message.MessageText != nil {
				text = *message.MessageText
			}
			if !ps.processMessage(doneCtx, *message.MessageID, text) {
				continue
			}

			ctx, cancel := context.WithTimeout(doneCtx, 10*time.Second)
			_, err := ps.queueClient.QueueClient.DeleteMessage(ctx, *message.MessageID, *message.PopReceipt, nil)
			cancel()
			if err != nil {
				slog.Error("Failed to delete Azure Queue message",
					slog.Any("error", err),
					slog.String("message_id", *message.MessageID))
			}
		}

		if len(result.Messages) == 0 {
			sleepCtx(doneCtx, constants.AzurePollIdleDelay)
		}
	}
}

// processMessage runs one queue message and reports whether it should be
// deleted. Failed invocations stay queued and reappear after the visibility
// timeout.
func (ps *AzureQueueService) processMessage(ctx context.Context, messageID, text string) bool {
	ctx, span := ps.tracer.Start(ctx, "azure_queue.message_handler",
		trace.WithAttributes(attribute.String("message_id", messageID)))
	defer span.End()

	err := ps.handler.HandleMessage(ctx, decodeIfBase64(text))
	switch {
	case err == nil:
		return true
	case IsMalformed(err):
		slog.Warn("Dropping malformed Azure Queue message",
			slog.Any("error", err),
			slog.String("message_id", messageID))
		return true
	default:
		span.RecordError(err)
		slog.Error("Failed to handle Azure Queue message",
			slog.Any("error", err),
			slog.String("message_id", messageID))
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Azure Events are base64 encoded from a few event sources
func decodeIfBase64(s string) []byte {
	if len(s)%4 != 0 {
		return []byte(s)
	}

	for _, c := range s {
		if !(('A' <= c && c <= 'Z') ||
			('a' <= c && c <= 'z') ||
			('0' <= c && c <= '9') ||
			c == '+' || c == '/' || c == '=') {
			return []byte(s)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return []byte(s)
	}

	return decoded
}

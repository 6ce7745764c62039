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
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/purchaseloader/internal/gcpclient"
)

// GCPPubSubSettings configures the pull subscriber.
type GCPPubSubSettings struct {
	ProjectID                 string `mapstructure:"project_id"`
	SubscriptionID            string `mapstructure:"subscription_id"`
	ImpersonateServiceAccount string `mapstructure:"impersonate_service_account"`
	MaxOutstandingMessages    int    `mapstructure:"max_outstanding_messages"`
}

type GCPPubSubService struct {
	tracer  trace.Tracer
	client  *gcpclient.PubSubClient
	sub     *pubsub.Subscription
	handler *Handler
}

// Ensure GCPPubSubService implements Backend interface
var _ Backend = (*GCPPubSubService)(nil)

func NewGCPPubSubService(ctx context.Context, mgr *gcpclient.Manager, settings GCPPubSubSettings, handler *Handler) (*GCPPubSubService, error) {
	if settings.ProjectID == "" {
		return nil, errors.New("GCP project ID is required")
	}
	if settings.SubscriptionID == "" {
		return nil, errors.New("GCP subscription ID is required")
	}

	var opts []gcpclient.PubSubOption
	if settings.ImpersonateServiceAccount != "" {
		opts = append(opts, gcpclient.WithPubSubImpersonation(settings.ImpersonateServiceAccount))
	}
	client, err := mgr.GetPubSub(ctx, settings.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	sub := client.Client.Subscription(settings.SubscriptionID)
	if settings.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = settings.MaxOutstandingMessages
	}

	slog.Info("GCP Pub/Sub service initialized",
		slog.String("project", settings.ProjectID),
		slog.String("subscription", settings.SubscriptionID))

	return &GCPPubSubService{
		tracer:  otel.Tracer("github.com/cardinalhq/purchaseloader/internal/pubsub/gcp-pubsub"),
		client:  client,
		sub:     sub,
		handler: handler,
	}, nil
}

func (ps *GCPPubSubService) GetName() string {
	return string(BackendTypeGCPPubSub)
}

func (ps *GCPPubSubService) Run(doneCtx context.Context) error {
	slog.Info("Starting GCP Pub/Sub service for Cloud Storage events")

	err := ps.sub.Receive(doneCtx, ps.messageHandler)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("GCP Pub/Sub receive error: %w", err)
	}
	return nil
}

// acker is the subset of *pubsub.Message the handler settles.
type acker interface {
	Ack()
	Nack()
}

func (ps *GCPPubSubService) messageHandler(ctx context.Context, msg *pubsub.Message) {
	ctx, span := ps.tracer.Start(ctx, "gcp_pubsub.message_handler",
		trace.WithAttributes(
			attribute.String("message_id", msg.ID),
			attribute.String("publish_time", msg.PublishTime.String()),
		))
	defer span.End()

	err := ps.handler.HandleMessage(ctx, msg.Data)
	settle(msg, msg.ID, err)
	if err != nil {
		span.RecordError(err)
	}
}

// settle acks processed, rejected and malformed messages and nacks the rest
// so Pub/Sub redelivers them.
func settle(msg acker, messageID string, err error) {
	switch {
	case err == nil:
		msg.Ack()
	case IsMalformed(err):
		slog.Warn("Dropping malformed Pub/Sub message",
			slog.Any("error", err),
			slog.String("message_id", messageID))
		msg.Ack()
	default:
		slog.Error("Failed to handle Cloud Storage event",
			slog.Any("error", err),
			slog.String("message_id", messageID))
		msg.Nack()
	}
}

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/purchaseloader/internal/event"
	"github.com/cardinalhq/purchaseloader/internal/logctx"
)

// ErrMalformedMessage marks a message that can never be processed. Transports
// acknowledge such messages instead of asking for redelivery.
var ErrMalformedMessage = errors.New("malformed message")

var (
	messagesReceived metric.Int64Counter
	eventsHandled    metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/purchaseloader/internal/pubsub")

	var err error
	messagesReceived, err = meter.Int64Counter(
		"purchaseloader.pubsub.messages",
		metric.WithDescription("Total number of trigger messages received"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create messagesReceived counter: %w", err))
	}

	eventsHandled, err = meter.Int64Counter(
		"purchaseloader.pubsub.events",
		metric.WithDescription("Total number of trigger events handed to the pipeline"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create eventsHandled counter: %w", err))
	}
}

// Handler turns raw trigger messages into pipeline invocations.
type Handler struct {
	runner Runner
	source string
	stats  *StatsAggregator
}

// NewHandler returns a Handler tagging its work with source. stats may be nil.
func NewHandler(runner Runner, source string, stats *StatsAggregator) *Handler {
	return &Handler{runner: runner, source: source, stats: stats}
}

// HandleMessage decodes msg into trigger events and runs each in order.
// Rejected events are not errors. Pipeline failures are joined and returned
// so the caller can request redelivery; an undecodable message returns an
// error wrapping ErrMalformedMessage.
func (h *Handler) HandleMessage(ctx context.Context, msg []byte) error {
	logger := logctx.FromContext(ctx).With(slog.String("source", h.source))
	ctx = logctx.WithLogger(ctx, logger)

	events, err := event.Normalize(msg)
	if err != nil {
		messagesReceived.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", h.source),
			attribute.String("outcome", "malformed"),
		))
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	messagesReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", h.source),
		attribute.String("outcome", "decoded"),
	))

	if len(events) == 0 {
		logger.Debug("Message carried no trigger events")
		return nil
	}

	var errs []error
	for _, raw := range events {
		report, err := h.runner.Run(ctx, raw)
		if h.stats != nil {
			h.stats.Record(h.source, report, err)
		}
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "failed"
			errs = append(errs, err)
		case report != nil && report.Rejected():
			outcome = "rejected"
		}
		eventsHandled.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", h.source),
			attribute.String("outcome", outcome),
		))
	}
	return errors.Join(errs...)
}

// IsMalformed reports whether err means the message should be dropped.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedMessage)
}

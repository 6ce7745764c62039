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

// Package pipeline runs one trigger event through validation, retrieval,
// anonymization and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/purchaseloader/internal/cloudstorage"
	"github.com/cardinalhq/purchaseloader/internal/event"
	"github.com/cardinalhq/purchaseloader/internal/idgen"
	"github.com/cardinalhq/purchaseloader/internal/logctx"
	"github.com/cardinalhq/purchaseloader/internal/purchase"
	"github.com/cardinalhq/purchaseloader/internal/sink"
)

// Config holds the collaborators of a Pipeline.
type Config struct {
	Storage cloudstorage.Client
	Sink    sink.Sink
}

// Pipeline processes trigger events. It is safe for concurrent use as long
// as its Storage and Sink are.
type Pipeline struct {
	storage cloudstorage.Client
	sink    sink.Sink
	tracer  trace.Tracer
}

// New returns a Pipeline using the given collaborators.
func New(cfg Config) (*Pipeline, error) {
	var errs []error
	if cfg.Storage == nil {
		errs = append(errs, errors.New("storage client is required"))
	}
	if cfg.Sink == nil {
		errs = append(errs, errors.New("sink is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Pipeline{
		storage: cfg.Storage,
		sink:    cfg.Sink,
		tracer:  otel.Tracer("github.com/cardinalhq/purchaseloader/internal/pipeline"),
	}, nil
}

type pendingRecord struct {
	index  int
	record purchase.Record
}

// Run processes one trigger event. Rejected events and objects return a
// report with Reason set and a nil error. A non-nil error means the
// invocation failed before completing; the report shows how far it got.
// Individual row failures never produce an error.
func (p *Pipeline) Run(ctx context.Context, raw event.Raw) (*Report, error) {
	start := time.Now()
	report := &Report{
		InvocationID: idgen.NewInvocationID(),
		State:        StateReceivedEvent,
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("invocation_id", report.InvocationID)))
	defer span.End()

	ctx, logger := logctx.With(ctx, slog.String("invocation_id", report.InvocationID))

	err := p.run(ctx, raw, report)

	span.SetAttributes(attribute.String("state", report.State.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invocation failed")
	}
	p.recordMetrics(ctx, report, err, time.Since(start))

	if err != nil {
		logger.Error("Invocation failed",
			slog.String("state", report.State.String()),
			slog.Any("error", err))
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, raw event.Raw, report *Report) error {
	logger := logctx.FromContext(ctx)

	if err := event.CheckEvent(raw); err != nil {
		report.State = StateRejectedEvent
		report.Reason = err
		logger.Error("Rejected trigger event",
			slog.String("event", raw.String()),
			slog.Any("error", err))
		return nil
	}
	report.State = StateEventValidated

	trig, err := event.CheckObject(raw)
	if err != nil {
		report.State = StateRejectedObject
		report.Reason = err
		logger.Warn("Rejected object",
			slog.Any("bucket", raw[event.KeyBucket]),
			slog.Any("name", raw[event.KeyName]),
			slog.Any("contentType", raw[event.KeyContentType]),
			slog.Any("size", raw[event.KeySize]),
			slog.Any("error", err))
		return nil
	}
	report.Event = &trig
	report.State = StateObjectValidated

	ctx, logger = logctx.With(ctx,
		slog.String("bucket", trig.Bucket),
		slog.String("name", trig.Name))
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("bucket", trig.Bucket),
		attribute.String("name", trig.Name),
		attribute.Int64("size", trig.Size),
	)

	content, err := cloudstorage.FetchText(ctx, p.storage, trig.Bucket, trig.Name)
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}
	report.State = StateContentFetched

	records := p.parse(ctx, content, report)
	report.State = StateRowsParsed
	logger.Info("Parsed object",
		slog.Int("lines", len(report.Rows)),
		slog.Int("records", len(records)),
		slog.Int("dropped", report.Dropped()))

	if len(records) > 0 {
		if err := p.write(ctx, records, report); err != nil {
			return err
		}
	}
	report.State = StateCompleted

	logger.Info("Invocation complete",
		slog.Int("attempted", report.Attempted()),
		slog.Int("written", report.Written()),
		slog.Int("dropped", report.Dropped()),
		slog.Int("failed", report.Failed()))
	return nil
}

// parse turns every line into a record or a dropped outcome, keeping file
// order.
func (p *Pipeline) parse(ctx context.Context, content string, report *Report) []pendingRecord {
	logger := logctx.FromContext(ctx)
	rows := purchase.SplitRows(content)
	report.Rows = make([]RowOutcome, 0, len(rows))
	records := make([]pendingRecord, 0, len(rows))

	for _, row := range rows {
		err := row.Err
		var rec purchase.Record
		if err == nil {
			rec, err = purchase.FromRow(row.Fields)
		}
		if err != nil {
			report.Rows = append(report.Rows, RowOutcome{Line: row.Line, Status: RowDropped, Err: err})
			logger.Debug("Dropped malformed row",
				slog.Int("line", row.Line),
				slog.Any("error", err))
			continue
		}
		records = append(records, pendingRecord{index: len(report.Rows), record: rec})
		report.Rows = append(report.Rows, RowOutcome{Line: row.Line, Status: RowParsed})
	}
	return records
}

// write inserts the records in order over one session. Only failing to
// obtain the session is returned.
func (p *Pipeline) write(ctx context.Context, records []pendingRecord, report *Report) error {
	sess, err := p.sink.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire sink session: %w", err)
	}
	defer sess.Release()

	for _, pr := range records {
		outcome := &report.Rows[pr.index]
		if err := p.writeRecord(ctx, sess, outcome.Line, pr.record); err != nil {
			outcome.Status = RowWriteFailed
			outcome.Err = err
			continue
		}
		outcome.Status = RowWritten
	}
	return nil
}

// writeRecord inserts one record, logging any failure. The error is returned
// for the report only; callers carry on with the next record.
func (p *Pipeline) writeRecord(ctx context.Context, sess sink.Session, line int, rec purchase.Record) error {
	if err := sess.Insert(ctx, rec); err != nil {
		logctx.FromContext(ctx).Error("Failed to write purchase",
			slog.Int("line", line),
			slog.String("buyer", rec.Buyer),
			slog.Int64("item_id", rec.ItemID),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (p *Pipeline) recordMetrics(ctx context.Context, report *Report, err error, elapsed time.Duration) {
	outcome := report.State.String()
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	invocationCounter.Add(ctx, 1, attrs)
	invocationDuration.Record(ctx, elapsed.Seconds(), attrs)

	for _, status := range []RowStatus{RowWritten, RowDropped, RowWriteFailed} {
		if n := report.count(status); n > 0 {
			rowCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", status.String())))
		}
	}
}

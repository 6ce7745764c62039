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

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/purchaseloader/config"
	"github.com/cardinalhq/purchaseloader/internal/event"
	"github.com/cardinalhq/purchaseloader/internal/pipeline"
	"github.com/cardinalhq/purchaseloader/internal/pubsub"
)

func init() {
	var eventFile string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process one notification read from a file or stdin",
		Long: `Process one object-created notification and exit. The payload may be a
GCS object resource, a Pub/Sub push envelope or an Azure Event Grid event.
Use "-" or omit --event to read from stdin.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return withTelemetry("purchaseloader-ingest", func(ctx context.Context) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				payload, err := readPayload(eventFile, c.InOrStdin())
				if err != nil {
					return err
				}
				l, err := openLoader(ctx, cfg)
				if err != nil {
					return err
				}
				defer closeLoader(l)
				return runIngest(ctx, l.pipeline, payload)
			})
		},
	}
	cmd.Flags().StringVarP(&eventFile, "event", "e", "-", "File holding the notification payload")

	rootCmd.AddCommand(cmd)
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read event from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	return data, nil
}

// runIngest processes every notification in payload and logs a summary per
// invocation. The first invocation-fatal error is returned after all
// notifications have been tried.
func runIngest(ctx context.Context, runner pubsub.Runner, payload []byte) error {
	events, err := event.Normalize(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", pubsub.ErrMalformedMessage, err)
	}

	var firstErr error
	for _, raw := range events {
		report, err := runner.Run(ctx, raw)
		logReport(report)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func logReport(report *pipeline.Report) {
	if report == nil {
		return
	}
	attrs := []any{
		slog.String("invocation_id", report.InvocationID),
		slog.String("state", report.State.String()),
		slog.Int("attempted", report.Attempted()),
		slog.Int("written", report.Written()),
		slog.Int("dropped", report.Dropped()),
		slog.Int("failed", report.Failed()),
	}
	if report.Rejected() {
		attrs = append(attrs, slog.Any("reason", report.Reason))
	}
	if rowErr := report.Err(); rowErr != nil {
		attrs = append(attrs, slog.Any("rowErrors", rowErr))
	}
	slog.Info("Invocation finished", attrs...)
}

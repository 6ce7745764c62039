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

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/purchaseloader/config"
	"github.com/cardinalhq/purchaseloader/internal/pubsub"
)

func init() {
	cmd := &cobra.Command{
		Use:   "pubsub",
		Short: "Pull notifications from a message queue",
	}

	rootCmd.AddCommand(cmd)

	for _, backend := range []struct {
		backendType pubsub.BackendType
		short       string
	}{
		{pubsub.BackendTypeGCPPubSub, "pull GCS notifications from a GCP Pub/Sub subscription"},
		{pubsub.BackendTypeAzure, "poll Event Grid notifications from an Azure storage queue"},
	} {
		backendType := backend.backendType
		cmd.AddCommand(&cobra.Command{
			Use:   string(backendType),
			Short: backend.short,
			RunE: func(_ *cobra.Command, _ []string) error {
				servicename := "purchaseloader-pubsub-" + string(backendType)
				return withTelemetry(servicename, func(ctx context.Context) error {
					return runPubSub(ctx, backendType)
				})
			},
		})
	}
}

func runPubSub(ctx context.Context, backendType pubsub.BackendType) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := openLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLoader(l)

	stats := pubsub.NewStatsAggregator(cfg.Stats.Interval, nil)
	stats.Start(ctx)
	defer stats.Stop()

	handler := pubsub.NewHandler(l.pipeline, string(backendType), stats)
	backend, err := pubsub.NewBackend(ctx, backendType, cfg.PubSub, handler)
	if err != nil {
		return fmt.Errorf("failed to create %s backend: %w", backendType, err)
	}
	slog.Info("Starting pull backend", slog.String("backend", backend.GetName()))
	return backend.Run(ctx)
}

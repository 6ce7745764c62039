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
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/purchaseloader/config"
	"github.com/cardinalhq/purchaseloader/internal/cloudstorage"
	"github.com/cardinalhq/purchaseloader/internal/pubsub"
)

func init() {
	var addr string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept notifications over HTTP",
		Long: `Listen for push deliveries (GCS notifications, Pub/Sub push envelopes or
Event Grid events) and process each one before responding. With --watch the
configured local directory is watched as well, reading objects from the
file storage provider.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return withTelemetry("purchaseloader-serve", func(ctx context.Context) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				if c.Flags().Changed("addr") {
					cfg.HTTP.Addr = addr
				}
				if watch {
					cfg.Storage = cloudstorage.Settings{Provider: cloudstorage.ProviderFile, Root: cfg.Watch.Root}
				}

				l, err := openLoader(ctx, cfg)
				if err != nil {
					return err
				}
				defer closeLoader(l)

				stats := pubsub.NewStatsAggregator(cfg.Stats.Interval, nil)
				stats.Start(ctx)
				defer stats.Stop()

				services := []pubsub.Service{
					pubsub.NewHTTPService(cfg.HTTP.Addr, pubsub.NewHandler(l.pipeline, "http", stats)),
				}
				if watch {
					services = append(services,
						pubsub.NewDirWatcher(cfg.Watch.Root, cfg.Watch.Bucket, pubsub.NewHandler(l.pipeline, "watch", stats)))
				}
				return runServices(ctx, services...)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&watch, "watch", false, "Also watch the local directory configured under watch.*")

	rootCmd.AddCommand(cmd)
}

// runServices runs every service until ctx is done or one of them fails,
// in which case the rest are stopped.
func runServices(ctx context.Context, services ...pubsub.Service) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			return svc.Run(gctx)
		})
	}
	err := g.Wait()
	slog.Info("Services stopped", slog.Int("count", len(services)))
	return err
}

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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/purchaseloader/config"
	"github.com/cardinalhq/purchaseloader/internal/cloudstorage"
	"github.com/cardinalhq/purchaseloader/internal/pubsub"
)

func init() {
	var root, bucket string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process CSV files as they appear in a local directory",
		Long: `Watch <root>/<bucket> and process every file created there as if an
object store had announced it. Objects are read through the file storage
provider rooted at <root>.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return withTelemetry("purchaseloader-watch", func(ctx context.Context) error {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				if c.Flags().Changed("root") {
					cfg.Watch.Root = root
				}
				if c.Flags().Changed("bucket") {
					cfg.Watch.Bucket = bucket
				}
				cfg.Storage = cloudstorage.Settings{Provider: cloudstorage.ProviderFile, Root: cfg.Watch.Root}

				l, err := openLoader(ctx, cfg)
				if err != nil {
					return err
				}
				defer closeLoader(l)

				stats := pubsub.NewStatsAggregator(cfg.Stats.Interval, nil)
				stats.Start(ctx)
				defer stats.Stop()

				handler := pubsub.NewHandler(l.pipeline, "watch", stats)
				return runServices(ctx, pubsub.NewDirWatcher(cfg.Watch.Root, cfg.Watch.Bucket, handler))
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "Directory standing in for the object store")
	cmd.Flags().StringVar(&bucket, "bucket", "local", "Subdirectory of root to watch; used as the bucket name")

	rootCmd.AddCommand(cmd)
}

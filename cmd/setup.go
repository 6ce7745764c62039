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
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/purchaseloader/config"
	"github.com/cardinalhq/purchaseloader/internal/cloudstorage"
	"github.com/cardinalhq/purchaseloader/internal/dbopen"
	"github.com/cardinalhq/purchaseloader/internal/pipeline"
	"github.com/cardinalhq/purchaseloader/internal/sink"
)

// loader is a ready pipeline plus the resources it holds.
type loader struct {
	pipeline *pipeline.Pipeline
	sink     sink.Sink
	managers *cloudstorage.CloudManagers
}

// openLoader resolves the database and storage configuration and builds the
// pipeline. A missing database configuration is fatal here, before any
// event is accepted.
func openLoader(ctx context.Context, cfg *config.Config) (*loader, error) {
	dbURL, err := dbopen.GetDatabaseURLFromEnv("DATABASE")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database URL: %w", err)
	}

	snk, err := sink.Open(ctx, dbURL, sink.WithDialect(cfg.SinkDialect()))
	if err != nil {
		return nil, fmt.Errorf("failed to open sink: %w", err)
	}

	managers := cloudstorage.NewCloudManagers()
	storage, err := managers.NewClient(ctx, cfg.Storage)
	if err != nil {
		_ = snk.Close()
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{Storage: storage, Sink: snk})
	if err != nil {
		_ = snk.Close()
		_ = managers.Close()
		return nil, err
	}

	slog.Info("Loader ready",
		slog.String("storageProvider", cfg.Storage.Provider),
		slog.String("dialect", string(cfg.SinkDialect())))

	return &loader{pipeline: p, sink: snk, managers: managers}, nil
}

// Close releases the sink and any cloud clients.
func (l *loader) Close() error {
	return errors.Join(l.sink.Close(), l.managers.Close())
}

func closeLoader(l *loader) {
	if err := l.Close(); err != nil {
		slog.Error("Error closing loader", slog.Any("error", err))
	}
}

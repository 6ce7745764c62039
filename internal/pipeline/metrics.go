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

package pipeline

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	invocationCounter  metric.Int64Counter
	rowCounter         metric.Int64Counter
	invocationDuration metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/purchaseloader/internal/pipeline")

	var err error
	invocationCounter, err = meter.Int64Counter(
		"purchaseloader.invocations",
		metric.WithDescription("Number of pipeline invocations by final state"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create invocations counter: %w", err))
	}

	rowCounter, err = meter.Int64Counter(
		"purchaseloader.rows",
		metric.WithDescription("Number of source rows by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows counter: %w", err))
	}

	invocationDuration, err = meter.Float64Histogram(
		"purchaseloader.invocation.duration",
		metric.WithDescription("Duration of pipeline invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create invocation.duration histogram: %w", err))
	}
}

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

// Package idgen issues process and invocation identifiers.
package idgen

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

var flakeStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// defaultFlakeGenerator is built on first use so that importing the package
// never touches the network configuration.
var defaultFlakeGenerator = sync.OnceValue(func() *SonyFlakeGenerator {
	g, err := newFlakeGenerator(nil)
	if err != nil {
		slog.Warn("Sonyflake unavailable, falling back to random ids", slog.Any("error", err))
		return &SonyFlakeGenerator{}
	}
	return g
})

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// newFlakeGenerator creates a generator using machineID, or the lower bits of
// the private IPv4 address when nil. If that fails a random machine id is
// used instead.
func newFlakeGenerator(machineID func() (uint16, error)) (*SonyFlakeGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: flakeStart, MachineID: machineID})
	if err != nil {
		slog.Debug("Sonyflake machine id unavailable, using a random one", slog.Any("error", err))
		sf, err = sonyflake.New(sonyflake.Settings{StartTime: flakeStart, MachineID: randomMachineID})
	}
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

func randomMachineID() (uint16, error) {
	return uint16(rand.UintN(1 << 16)), nil
}

// NextID returns a positive int64 that'll increase roughly in time order.
func (g *SonyFlakeGenerator) NextID() int64 {
	if g.sf == nil {
		return rand.Int64()
	}
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// NextID draws from the process-wide generator.
func NextID() int64 {
	return defaultFlakeGenerator().NextID()
}

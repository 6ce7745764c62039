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

package idgen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyFlakeGenerator_NextID(t *testing.T) {
	gen, err := newFlakeGenerator(func() (uint16, error) { return 7, nil })
	require.NoError(t, err, "failed to create SonyFlakeGenerator")

	// Check that subsequent IDs are increasing
	id := gen.NextID()
	id2 := gen.NextID()
	assert.Greater(t, id2, id, "NextID() did not return increasing id")
}

func TestSonyFlakeGenerator_NoPrivateAddress(t *testing.T) {
	gen, err := newFlakeGenerator(func() (uint16, error) {
		return 0, errors.New("no private ip address")
	})
	require.NoError(t, err)
	require.NotNil(t, gen.sf)

	id := gen.NextID()
	assert.Positive(t, id)
	assert.Greater(t, gen.NextID(), id)
}

func TestSonyFlakeGenerator_ZeroValue(t *testing.T) {
	var gen SonyFlakeGenerator
	assert.NotPanics(t, func() { gen.NextID() })
}

func TestNextID(t *testing.T) {
	assert.NotEqual(t, NextID(), NextID())
}

func TestNewInvocationID(t *testing.T) {
	a := NewInvocationID()
	b := NewInvocationID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

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

package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() Raw {
	return Raw{
		"bucket":      "b",
		"name":        "x.csv",
		"contentType": "text/csv",
		"size":        "120",
	}
}

func TestCheckEvent(t *testing.T) {
	tests := []struct {
		name        string
		raw         Raw
		wantMissing []string
	}{
		{name: "all present", raw: validRaw()},
		{
			name: "empty values still pass",
			raw:  Raw{"bucket": "", "name": "", "contentType": "", "size": ""},
		},
		{
			name:        "missing bucket",
			raw:         Raw{"name": "x.csv", "contentType": "text/csv", "size": "1"},
			wantMissing: []string{"bucket"},
		},
		{
			name:        "missing everything",
			raw:         Raw{"other": 1},
			wantMissing: []string{"bucket", "contentType", "name", "size"},
		},
		{
			name:        "nil map",
			raw:         nil,
			wantMissing: []string{"bucket", "contentType", "name", "size"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEvent(tt.raw)
			if tt.wantMissing == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingField)

			var rej *RejectionError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, RejectEvent, rej.Kind)
			assert.Equal(t, tt.wantMissing, rej.Missing)
		})
	}
}

func TestCheckObject(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Raw)
		wantErr error
		want    TriggerEvent
	}{
		{
			name: "string size",
			want: TriggerEvent{Bucket: "b", Name: "x.csv", ContentType: "text/csv", Size: 120},
		},
		{
			name:   "json number size",
			mutate: func(r Raw) { r["size"] = json.Number("42") },
			want:   TriggerEvent{Bucket: "b", Name: "x.csv", ContentType: "text/csv", Size: 42},
		},
		{
			name:   "float size",
			mutate: func(r Raw) { r["size"] = float64(7) },
			want:   TriggerEvent{Bucket: "b", Name: "x.csv", ContentType: "text/csv", Size: 7},
		},
		{
			name:   "int size",
			mutate: func(r Raw) { r["size"] = 9 },
			want:   TriggerEvent{Bucket: "b", Name: "x.csv", ContentType: "text/csv", Size: 9},
		},
		{
			name:    "zero size",
			mutate:  func(r Raw) { r["size"] = "0" },
			wantErr: ErrEmptyObject,
		},
		{
			name:    "negative size",
			mutate:  func(r Raw) { r["size"] = "-5" },
			wantErr: ErrEmptyObject,
		},
		{
			name:    "non numeric size",
			mutate:  func(r Raw) { r["size"] = "lots" },
			wantErr: ErrInvalidSize,
		},
		{
			name:    "fractional size",
			mutate:  func(r Raw) { r["size"] = 1.5 },
			wantErr: ErrInvalidSize,
		},
		{
			name:    "null size",
			mutate:  func(r Raw) { r["size"] = nil },
			wantErr: ErrInvalidSize,
		},
		{
			name:    "content type with parameters",
			mutate:  func(r Raw) { r["contentType"] = "text/csv; charset=utf-8" },
			wantErr: ErrUnsupportedContentType,
		},
		{
			name:    "content type wrong case",
			mutate:  func(r Raw) { r["contentType"] = "Text/CSV" },
			wantErr: ErrUnsupportedContentType,
		},
		{
			name:    "content type not a string",
			mutate:  func(r Raw) { r["contentType"] = 12 },
			wantErr: ErrUnsupportedContentType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			if tt.mutate != nil {
				tt.mutate(raw)
			}
			got, err := CheckObject(raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var rej *RejectionError
				require.True(t, errors.As(err, &rej))
				assert.Equal(t, RejectObject, rej.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// validate runs both checks in the order the pipeline does.
func validate(raw Raw) (TriggerEvent, error) {
	if err := CheckEvent(raw); err != nil {
		return TriggerEvent{}, err
	}
	return CheckObject(raw)
}

func TestChecks_StopAtMissingFields(t *testing.T) {
	_, err := validate(Raw{"size": "abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.NotErrorIs(t, err, ErrInvalidSize)
}

func TestRejectionError_Message(t *testing.T) {
	err := CheckEvent(Raw{"bucket": "b", "name": "n"})
	require.Error(t, err)
	assert.Equal(t, "invalid event: event is missing required fields: contentType, size", err.Error())
}

func TestRaw_String(t *testing.T) {
	raw := Raw{"bucket": "b"}
	assert.Equal(t, `{"bucket":"b"}`, raw.String())
}

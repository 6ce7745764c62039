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

// Package event validates storage notifications describing a newly created
// object and turns them into a typed TriggerEvent.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Keys every notification must carry.
const (
	KeyBucket      = "bucket"
	KeyContentType = "contentType"
	KeyName        = "name"
	KeySize        = "size"
)

// CSVContentType is the only content type accepted for ingestion.
const CSVContentType = "text/csv"

var requiredKeys = []string{KeyBucket, KeyContentType, KeyName, KeySize}

var (
	ErrMissingField           = errors.New("event is missing required fields")
	ErrInvalidSize            = errors.New("object size is not an integer")
	ErrEmptyObject            = errors.New("object is empty")
	ErrUnsupportedContentType = errors.New("object is not a CSV file")
)

// RejectionKind tells whether the event itself or the object it describes
// was refused.
type RejectionKind int

const (
	RejectEvent RejectionKind = iota
	RejectObject
)

func (k RejectionKind) String() string {
	switch k {
	case RejectEvent:
		return "event"
	case RejectObject:
		return "object"
	default:
		return "unknown"
	}
}

// RejectionError describes why an invocation was refused before any work
// was attempted.
type RejectionError struct {
	Kind    RejectionKind
	Missing []string
	Err     error
}

func (e *RejectionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid %s: %v: %s", e.Kind, e.Err, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid %s: %v", e.Kind, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Raw is the untyped notification payload.
type Raw map[string]any

// String renders the payload as JSON for log lines.
func (r Raw) String() string {
	b, err := json.Marshal(map[string]any(r))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(r))
	}
	return string(b)
}

// TriggerEvent is the validated form of a notification.
type TriggerEvent struct {
	Bucket      string
	Name        string
	ContentType string
	Size        int64
}

// CheckEvent verifies that all required keys are present. Values are not
// inspected, so an empty bucket name passes.
func CheckEvent(raw Raw) error {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &RejectionError{Kind: RejectEvent, Missing: missing, Err: ErrMissingField}
	}
	return nil
}

// CheckObject verifies that the described object is a non-empty CSV file and
// returns the typed event. It expects CheckEvent to have passed.
func CheckObject(raw Raw) (TriggerEvent, error) {
	size, err := parseSize(raw[KeySize])
	if err != nil {
		return TriggerEvent{}, &RejectionError{Kind: RejectObject, Err: fmt.Errorf("%w: %v", ErrInvalidSize, err)}
	}

	contentType, _ := raw[KeyContentType].(string)

	if size <= 0 {
		return TriggerEvent{}, &RejectionError{Kind: RejectObject, Err: ErrEmptyObject}
	}
	if contentType != CSVContentType {
		return TriggerEvent{}, &RejectionError{
			Kind: RejectObject,
			Err:  fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType),
		}
	}

	return TriggerEvent{
		Bucket:      stringValue(raw[KeyBucket]),
		Name:        stringValue(raw[KeyName]),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func parseSize(v any) (int64, error) {
	switch s := v.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case json.Number:
		return strconv.ParseInt(s.String(), 10, 64)
	case float64:
		if s != math.Trunc(s) || math.IsInf(s, 0) || math.IsNaN(s) {
			return 0, fmt.Errorf("non-integral size %v", s)
		}
		return int64(s), nil
	case int:
		return int64(s), nil
	case int32:
		return int64(s), nil
	case int64:
		return s, nil
	case uint64:
		if s > math.MaxInt64 {
			return 0, fmt.Errorf("size %d overflows int64", s)
		}
		return int64(s), nil
	case nil:
		return 0, errors.New("size is null")
	default:
		return 0, fmt.Errorf("unsupported size type %T", v)
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

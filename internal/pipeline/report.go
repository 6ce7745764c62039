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

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/purchaseloader/internal/event"
)

// State is the position of an invocation in the processing sequence.
type State int

const (
	StateReceivedEvent State = iota
	StateEventValidated
	StateObjectValidated
	StateContentFetched
	StateRowsParsed
	StateCompleted
	StateRejectedEvent
	StateRejectedObject
)

func (s State) String() string {
	switch s {
	case StateReceivedEvent:
		return "received_event"
	case StateEventValidated:
		return "event_validated"
	case StateObjectValidated:
		return "object_validated"
	case StateContentFetched:
		return "content_fetched"
	case StateRowsParsed:
		return "rows_parsed"
	case StateCompleted:
		return "completed"
	case StateRejectedEvent:
		return "rejected_event"
	case StateRejectedObject:
		return "rejected_object"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RowStatus is what happened to one source line.
type RowStatus int

const (
	// RowParsed rows became records but were never handed to the sink.
	RowParsed RowStatus = iota
	RowWritten
	RowDropped
	RowWriteFailed
)

func (s RowStatus) String() string {
	switch s {
	case RowParsed:
		return "parsed"
	case RowWritten:
		return "written"
	case RowDropped:
		return "dropped"
	case RowWriteFailed:
		return "write_failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// RowOutcome records the fate of one line. Err holds the drop reason or the
// sink error.
type RowOutcome struct {
	Line   int
	Status RowStatus
	Err    error
}

// Report describes one invocation. Rows holds one entry per source line in
// file order.
type Report struct {
	InvocationID string
	State        State
	Event        *event.TriggerEvent
	Reason       error
	Rows         []RowOutcome
}

// Rejected reports whether the invocation stopped at validation.
func (r *Report) Rejected() bool {
	return r.State == StateRejectedEvent || r.State == StateRejectedObject
}

func (r *Report) count(status RowStatus) int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == status {
			n++
		}
	}
	return n
}

// Attempted is the number of records handed to the sink.
func (r *Report) Attempted() int {
	return r.Written() + r.Failed()
}

func (r *Report) Written() int { return r.count(RowWritten) }
func (r *Report) Dropped() int { return r.count(RowDropped) }
func (r *Report) Failed() int  { return r.count(RowWriteFailed) }

// Err aggregates every row write failure, or returns nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, row := range r.Rows {
		if row.Status == RowWriteFailed {
			result = multierror.Append(result, fmt.Errorf("line %d: %w", row.Line, row.Err))
		}
	}
	return result.ErrorOrNil()
}

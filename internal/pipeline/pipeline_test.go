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
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/purchaseloader/internal/cloudstorage"
	"github.com/cardinalhq/purchaseloader/internal/event"
	"github.com/cardinalhq/purchaseloader/internal/purchase"
	"github.com/cardinalhq/purchaseloader/internal/sink"
)

const aliceDigest = "fc2398a73dd54d6237c4fdb58fd7d75347cf5af3"

func csvEvent() event.Raw {
	return event.Raw{
		"bucket":      "purchases-in",
		"name":        "batch.csv",
		"contentType": "text/csv",
		"size":        "128",
	}
}

func newTestPipeline(t *testing.T, storage cloudstorage.Client, s sink.Sink) *Pipeline {
	t.Helper()
	p, err := New(Config{Storage: storage, Sink: s})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage client is required")
	assert.Contains(t, err.Error(), "sink is required")
}

func TestRun_MissingFieldsRejectsWithoutSideEffects(t *testing.T) {
	ctx, logs := captureLogs(slog.LevelDebug)
	storage := &mockStorage{}
	s := &mockSink{}
	p := newTestPipeline(t, storage, s)

	raw := event.Raw{"bucket": "purchases-in", "name": "batch.csv"}
	report, err := p.Run(ctx, raw)
	require.NoError(t, err)

	assert.Equal(t, StateRejectedEvent, report.State)
	assert.True(t, report.Rejected())
	assert.ErrorIs(t, report.Reason, event.ErrMissingField)
	assert.Nil(t, report.Event)
	assert.NotEmpty(t, report.InvocationID)

	storage.AssertNotCalled(t, "ReadObject", mock.Anything, mock.Anything, mock.Anything)
	s.AssertNotCalled(t, "Acquire", mock.Anything)

	out := logs.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "purchases-in", "the offending event is logged")
	assert.Contains(t, out, "invocation_id="+report.InvocationID)
}

func TestRun_InvalidObjectRejectsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(event.Raw)
		wantErr error
	}{
		{name: "zero size", mutate: func(r event.Raw) { r["size"] = "0" }, wantErr: event.ErrEmptyObject},
		{name: "negative size", mutate: func(r event.Raw) { r["size"] = "-5" }, wantErr: event.ErrEmptyObject},
		{name: "non numeric size", mutate: func(r event.Raw) { r["size"] = "big" }, wantErr: event.ErrInvalidSize},
		{name: "json content", mutate: func(r event.Raw) { r["contentType"] = "application/json" }, wantErr: event.ErrUnsupportedContentType},
		{name: "csv with charset", mutate: func(r event.Raw) { r["contentType"] = "text/csv; charset=utf-8" }, wantErr: event.ErrUnsupportedContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, logs := captureLogs(slog.LevelDebug)
			storage := &mockStorage{}
			s := &mockSink{}
			p := newTestPipeline(t, storage, s)

			raw := csvEvent()
			tt.mutate(raw)
			report, err := p.Run(ctx, raw)
			require.NoError(t, err)

			assert.Equal(t, StateRejectedObject, report.State)
			assert.ErrorIs(t, report.Reason, tt.wantErr)
			assert.Contains(t, logs.String(), "level=WARN")

			storage.AssertNotCalled(t, "ReadObject", mock.Anything, mock.Anything, mock.Anything)
			s.AssertNotCalled(t, "Acquire", mock.Anything)
		})
	}
}

func TestRun_RoundTrip(t *testing.T) {
	storage := &mockStorage{}
	storage.On("ReadObject", mock.Anything, "purchases-in", "batch.csv").
		Return([]byte("alice@example.com,101,3,2500,2024-01-01T12:00:00\n"), nil)

	sess := &mockSession{}
	want := purchase.Record{
		Buyer:        aliceDigest,
		ItemID:       101,
		Quantity:     3,
		Price:        2500,
		PurchaseDate: "2024-01-01T12:00:00",
	}
	sess.On("Insert", mock.Anything, want).Return(nil).Once()
	sess.On("Release").Return().Once()

	s := &mockSink{}
	s.On("Acquire", mock.Anything).Return(sess, nil).Once()

	p := newTestPipeline(t, storage, s)
	report, err := p.Run(context.Background(), csvEvent())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	require.NotNil(t, report.Event)
	assert.Equal(t, int64(128), report.Event.Size)
	assert.Equal(t, 1, report.Attempted())
	assert.Equal(t, 1, report.Written())
	assert.NoError(t, report.Err())

	storage.AssertExpectations(t)
	s.AssertExpectations(t)
	sess.AssertExpectations(t)
}

func TestRun_MalformedRowIsSkippedAndOrderKept(t *testing.T) {
	content := "a@example.com,1,1,10,2024-01-01T00:00:01\n" +
		"b@example.com,2,1,20,2024-01-01T00:00:02\n" +
		"c@example.com,3,1\n" +
		"d@example.com,4,1,40,2024-01-01T00:00:04\n"
	sess := &recordingSession{}
	s := &staticSink{session: sess}
	p := newTestPipeline(t, staticStorage{"purchases-in/batch.csv": []byte(content)}, s)

	ctx, logs := captureLogs(slog.LevelDebug)
	report, err := p.Run(ctx, csvEvent())
	require.NoError(t, err)

	require.Len(t, sess.records, 3)
	assert.Equal(t, []int64{1, 2, 4}, itemIDs(sess.records))
	assert.Equal(t, 3, report.Attempted())
	assert.Equal(t, 1, report.Dropped())
	assert.Equal(t, 1, s.acquired)
	assert.Equal(t, 1, sess.released)

	require.Len(t, report.Rows, 4)
	assert.Equal(t, RowDropped, report.Rows[2].Status)
	assert.Equal(t, 3, report.Rows[2].Line)
	assert.ErrorIs(t, report.Rows[2].Err, purchase.ErrFieldCount)
	assert.Contains(t, logs.String(), "Dropped malformed row")
	assert.NotContains(t, logs.String(), "c@example.com")
}

func TestRun_WriteFailureDoesNotStopLaterRows(t *testing.T) {
	content := "a@example.com,1,1,10,2024-01-01T00:00:01\n" +
		"b@example.com,2,1,20,2024-01-01T00:00:02\n" +
		"c@example.com,3,1,30,2024-01-01T00:00:03\n"
	sess := &mockSession{}
	sess.On("Insert", mock.Anything, mock.MatchedBy(func(r purchase.Record) bool { return r.ItemID == 2 })).
		Return(errors.New("constraint violation")).Once()
	sess.On("Insert", mock.Anything, mock.Anything).Return(nil).Twice()
	sess.On("Release").Return().Once()

	s := &mockSink{}
	s.On("Acquire", mock.Anything).Return(sess, nil).Once()

	ctx, logs := captureLogs(slog.LevelInfo)
	p := newTestPipeline(t, staticStorage{"purchases-in/batch.csv": []byte(content)}, s)
	report, err := p.Run(ctx, csvEvent())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 3, report.Attempted())
	assert.Equal(t, 2, report.Written())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, RowWriteFailed, report.Rows[1].Status)
	assert.Equal(t, RowWritten, report.Rows[2].Status)
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "line 2")

	out := logs.String()
	assert.Contains(t, out, "Failed to write purchase")
	assert.Contains(t, out, "constraint violation")
	assert.NotContains(t, out, "b@example.com")

	sess.AssertNumberOfCalls(t, "Insert", 3)
	sess.AssertExpectations(t)
}

func TestRun_FetchErrorIsFatal(t *testing.T) {
	storage := &mockStorage{}
	storage.On("ReadObject", mock.Anything, "purchases-in", "batch.csv").
		Return(nil, cloudstorage.ErrObjectNotFound)
	s := &mockSink{}

	p := newTestPipeline(t, storage, s)
	report, err := p.Run(context.Background(), csvEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, cloudstorage.ErrObjectNotFound)
	assert.Equal(t, StateObjectValidated, report.State)
	assert.False(t, report.Rejected())
	s.AssertNotCalled(t, "Acquire", mock.Anything)
}

func TestRun_InvalidEncodingIsFatal(t *testing.T) {
	storage := staticStorage{"purchases-in/batch.csv": {0xff, 0xfe, 0xfd}}
	s := &mockSink{}

	p := newTestPipeline(t, storage, s)
	_, err := p.Run(context.Background(), csvEvent())
	assert.ErrorIs(t, err, cloudstorage.ErrInvalidEncoding)
	s.AssertNotCalled(t, "Acquire", mock.Anything)
}

func TestRun_AcquireErrorIsFatal(t *testing.T) {
	s := &mockSink{}
	s.On("Acquire", mock.Anything).Return(nil, errors.New("connection refused"))

	p := newTestPipeline(t, staticStorage{"purchases-in/batch.csv": []byte("a@example.com,1,1,1,2024-01-01T00:00:00")}, s)
	report, err := p.Run(context.Background(), csvEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StateRowsParsed, report.State)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, RowParsed, report.Rows[0].Status)
	assert.Equal(t, 0, report.Attempted())
}

func TestRun_NoRecordsSkipsSink(t *testing.T) {
	s := &mockSink{}
	p := newTestPipeline(t, staticStorage{"purchases-in/batch.csv": []byte("just,three,fields\n\n")}, s)

	report, err := p.Run(context.Background(), csvEvent())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 2, report.Dropped())
	s.AssertNotCalled(t, "Acquire", mock.Anything)
}

func TestRun_InvocationIDsAreUnique(t *testing.T) {
	p := newTestPipeline(t, &mockStorage{}, &mockSink{})
	a, err := p.Run(context.Background(), event.Raw{})
	require.NoError(t, err)
	b, err := p.Run(context.Background(), event.Raw{})
	require.NoError(t, err)
	assert.NotEqual(t, a.InvocationID, b.InvocationID)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "rejected_object", StateRejectedObject.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.Equal(t, "write_failed", RowWriteFailed.String())
}

func itemIDs(records []purchase.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ItemID)
	}
	return out
}

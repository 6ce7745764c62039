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

package pubsub

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/purchaseloader/internal/event"
	"github.com/cardinalhq/purchaseloader/internal/pipeline"
)

// fakeRunner validates like the pipeline but never fetches. Events whose
// name is listed in fail return an error.
type fakeRunner struct {
	mu   sync.Mutex
	seen []event.Raw
	fail map[string]bool
	ch   chan event.Raw
}

func (f *fakeRunner) Run(_ context.Context, raw event.Raw) (*pipeline.Report, error) {
	f.mu.Lock()
	f.seen = append(f.seen, raw)
	f.mu.Unlock()
	if f.ch != nil {
		f.ch <- raw
	}

	report := &pipeline.Report{InvocationID: "test", State: pipeline.StateCompleted}
	err := event.CheckEvent(raw)
	if err == nil {
		_, err = event.CheckObject(raw)
	}
	if err != nil {
		report.State = pipeline.StateRejectedObject
		report.Reason = err
		return report, nil
	}
	if name, _ := raw[event.KeyName].(string); f.fail[name] {
		report.State = pipeline.StateObjectValidated
		return report, errors.New("database unavailable")
	}
	return report, nil
}

func (f *fakeRunner) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.seen))
	for _, r := range f.seen {
		name, _ := r[event.KeyName].(string)
		out = append(out, name)
	}
	return out
}

const gcsObject = `{"bucket":"purchases-in","name":"a.csv","contentType":"text/csv","size":"42"}`

func TestHandleMessage_SingleObject(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, "test", nil)

	require.NoError(t, h.HandleMessage(context.Background(), []byte(gcsObject)))
	assert.Equal(t, []string{"a.csv"}, runner.names())
}

func TestHandleMessage_PushEnvelope(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, "test", nil)

	body := `{"message":{"data":"` + base64.StdEncoding.EncodeToString([]byte(gcsObject)) + `"},"subscription":"s"}`
	require.NoError(t, h.HandleMessage(context.Background(), []byte(body)))
	assert.Equal(t, []string{"a.csv"}, runner.names())
}

func TestHandleMessage_BatchRunsEveryEventAndJoinsFailures(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"b.csv": true}}
	stats := NewStatsAggregator(time.Hour, nil)
	h := NewHandler(runner, "test", stats)

	body := `[
		{"bucket":"p","name":"a.csv","contentType":"text/csv","size":"1"},
		{"bucket":"p","name":"b.csv","contentType":"text/csv","size":"1"},
		{"bucket":"p","name":"c.csv","contentType":"text/csv","size":"0"}
	]`
	err := h.HandleMessage(context.Background(), []byte(body))
	require.Error(t, err)
	assert.False(t, IsMalformed(err))
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Equal(t, []string{"a.csv", "b.csv", "c.csv"}, runner.names())

	stats.mu.Lock()
	defer stats.mu.Unlock()
	s := stats.stats["test"]
	require.NotNil(t, s)
	assert.Equal(t, int64(1), s.completed)
	assert.Equal(t, int64(1), s.failed)
	assert.Equal(t, int64(1), s.rejected)
}

func TestHandleMessage_RejectionIsNotAnError(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, "test", nil)

	err := h.HandleMessage(context.Background(), []byte(`{"bucket":"p","name":"x.json","contentType":"application/json","size":"10"}`))
	assert.NoError(t, err)
	assert.Len(t, runner.names(), 1)
}

func TestHandleMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "hello"},
		{name: "empty", body: ""},
		{name: "bad push data", body: `{"message":{"data":"!!!"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			h := NewHandler(runner, "test", nil)

			err := h.HandleMessage(context.Background(), []byte(tt.body))
			require.Error(t, err)
			assert.True(t, IsMalformed(err))
			assert.Empty(t, runner.names())
		})
	}
}

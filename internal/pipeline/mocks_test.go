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
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/cardinalhq/purchaseloader/internal/cloudstorage"
	"github.com/cardinalhq/purchaseloader/internal/logctx"
	"github.com/cardinalhq/purchaseloader/internal/purchase"
	"github.com/cardinalhq/purchaseloader/internal/sink"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Acquire(ctx context.Context) (sink.Session, error) {
	args := m.Called(ctx)
	sess, _ := args.Get(0).(sink.Session)
	return sess, args.Error(1)
}

func (m *mockSink) Close() error {
	return m.Called().Error(0)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Insert(ctx context.Context, rec purchase.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockSession) Release() {
	m.Called()
}

// recordingSession keeps every record it is given and fails the ones
// matched by failIf.
type recordingSession struct {
	mu       sync.Mutex
	records  []purchase.Record
	failIf   func(purchase.Record) bool
	released int
}

func (s *recordingSession) Insert(_ context.Context, rec purchase.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if s.failIf != nil && s.failIf(rec) {
		return sink.ErrRecordRejected
	}
	return nil
}

func (s *recordingSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

type staticSink struct {
	session  sink.Session
	acquired int
}

func (s *staticSink) Acquire(context.Context) (sink.Session, error) {
	s.acquired++
	return s.session, nil
}

func (s *staticSink) Close() error { return nil }

type staticStorage map[string][]byte

func (s staticStorage) ReadObject(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := s[bucket+"/"+key]
	if !ok {
		return nil, cloudstorage.ErrObjectNotFound
	}
	return data, nil
}

// captureLogs returns a context whose logger writes text records to buf.
func captureLogs(level slog.Level) (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}))
	return logctx.WithLogger(context.Background(), logger), buf
}

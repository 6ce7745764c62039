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
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/purchaseloader/internal/constants"
)

func TestHTTPService_ServeHTTP(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{name: "get not allowed", method: http.MethodGet, path: "/", want: http.StatusMethodNotAllowed},
		{name: "valid event", method: http.MethodPost, path: "/", body: gcsObject, want: http.StatusOK},
		{name: "rejected event acknowledged", method: http.MethodPost, path: "/", body: `{"bucket":"p"}`, want: http.StatusOK},
		{name: "malformed", method: http.MethodPost, path: "/", body: "{", want: http.StatusBadRequest},
		{name: "pipeline failure", method: http.MethodPost, path: "/",
			body: `{"bucket":"p","name":"fail.csv","contentType":"text/csv","size":"3"}`, want: http.StatusInternalServerError},
		{name: "too large", method: http.MethodPost, path: "/",
			body: strings.Repeat("x", int(constants.HTTPBodyLimitBytes)+1), want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{fail: map[string]bool{"fail.csv": true}}
			svc := NewHTTPService(":0", NewHandler(runner, "http", nil))

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			svc.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHTTPService_RunAndShutdown(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewHTTPService("127.0.0.1:0", NewHandler(runner, "http", nil))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	var addr net.Addr
	select {
	case addr = <-svc.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Post("http://"+addr.String()+"/", "application/json", strings.NewReader(gcsObject))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"a.csv"}, runner.names())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

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

package pubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/purchaseloader/internal/constants"
	"github.com/cardinalhq/purchaseloader/internal/logctx"
)

// HTTPService accepts trigger events pushed over HTTP: raw storage event
// JSON, Pub/Sub push envelopes or Event Grid deliveries. Each request is
// processed before it is answered, so a 5xx tells the sender to retry.
type HTTPService struct {
	addr    string
	handler *Handler
	tracer  trace.Tracer
	ready   chan net.Addr
}

var _ Service = (*HTTPService)(nil)

func NewHTTPService(addr string, handler *Handler) *HTTPService {
	return &HTTPService{
		addr:    addr,
		handler: handler,
		tracer:  otel.Tracer("github.com/cardinalhq/purchaseloader/internal/pubsub/http"),
		ready:   make(chan net.Addr, 1),
	}
}

// Ready yields the bound address once the listener is open.
func (ps *HTTPService) Ready() <-chan net.Addr {
	return ps.ready
}

func (ps *HTTPService) Run(doneCtx context.Context) error {
	ln, err := net.Listen("tcp", ps.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ps.addr, err)
	}
	slog.Info("Starting HTTP trigger service", slog.String("addr", ln.Addr().String()))
	ps.ready <- ln.Addr()

	srv := &http.Server{
		Handler: ps,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(doneCtx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-doneCtx.Done():
	}

	slog.Info("Shutting down HTTP trigger service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (ps *HTTPService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.HTTPBodyLimitBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Error reading request body", http.StatusInternalServerError)
		return
	}

	ctx, span := ps.tracer.Start(r.Context(), "HTTPService.ServeHTTP",
		trace.WithAttributes(attribute.Int("body_bytes", len(body))))
	defer span.End()

	err = ps.handler.HandleMessage(ctx, body)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case IsMalformed(err):
		logctx.FromContext(ctx).Warn("Discarding malformed trigger message", slog.Any("error", err))
		span.SetStatus(codes.Error, "malformed")
		http.Error(w, "Malformed trigger message", http.StatusBadRequest)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "invocation failed")
		http.Error(w, "Invocation failed", http.StatusInternalServerError)
	}
}

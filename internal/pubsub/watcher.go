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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/cardinalhq/purchaseloader/internal/event"
)

const octetStream = "application/octet-stream"

// DirWatcher turns files created in <root>/<bucket> into trigger events, the
// local stand-in for an object store notification. Files must appear
// complete, for example by being renamed into the directory; a file created
// empty and written later is seen with size 0 and rejected.
type DirWatcher struct {
	root    string
	bucket  string
	handler *Handler
}

var _ Service = (*DirWatcher)(nil)

func NewDirWatcher(root, bucket string, handler *Handler) *DirWatcher {
	return &DirWatcher{root: root, bucket: bucket, handler: handler}
}

// Dir is the watched directory.
func (w *DirWatcher) Dir() string {
	return filepath.Join(w.root, w.bucket)
}

func (w *DirWatcher) Run(ctx context.Context) error {
	return w.run(ctx, nil)
}

// run watches until ctx is done. ready, when non-nil, is closed once the
// watch is in place.
func (w *DirWatcher) run(ctx context.Context, ready chan<- struct{}) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("directory watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	dir := w.Dir()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("directory watcher add %s: %w", dir, err)
	}
	slog.Info("Watching directory for new objects", slog.String("dir", dir))
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			w.handleCreate(ctx, ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Directory watcher error", slog.Any("error", err))
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *DirWatcher) handleCreate(ctx context.Context, path string) {
	raw, ok := w.eventFor(path)
	if !ok {
		return
	}
	msg, err := json.Marshal(raw)
	if err != nil {
		slog.Error("Failed to encode trigger event", slog.Any("error", err))
		return
	}
	if err := w.handler.HandleMessage(ctx, msg); err != nil {
		slog.Error("Failed to process watched file",
			slog.String("path", path),
			slog.Any("error", err))
	}
}

// eventFor describes path the way a storage notification would. Directories,
// hidden files and files that vanished are skipped.
func (w *DirWatcher) eventFor(path string) (event.Raw, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return nil, false
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, false
	}
	rel, err := filepath.Rel(w.Dir(), path)
	if err != nil {
		return nil, false
	}
	return event.Raw{
		event.KeyBucket:      w.bucket,
		event.KeyName:        filepath.ToSlash(rel),
		event.KeyContentType: contentTypeFor(base),
		event.KeySize:        strconv.FormatInt(fi.Size(), 10),
	}, true
}

func contentTypeFor(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return event.CSVContentType
	}
	return octetStream
}

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
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const (
	azureBlobCreated        = "Microsoft.Storage.BlobCreated"
	azureStorageEventPrefix = "Microsoft.Storage."
	azureEventGridPrefix    = "Microsoft.EventGrid."
)

// ErrEmptyPayload is returned when a transport delivers no bytes.
var ErrEmptyPayload = errors.New("empty event payload")

// Decode parses a single JSON object into a Raw mapping, keeping numbers as
// json.Number.
func Decode(data []byte) (Raw, error) {
	var raw Raw
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("failed to decode event: payload is null")
	}
	return raw, nil
}

// Normalize turns a transport payload into zero or more notifications.
// It understands the GCS object resource (passed through as is), Pub/Sub push
// envelopes and Azure Event Grid BlobCreated events, single or batched.
func Normalize(data []byte) ([]Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}
	return normalizeValue(doc)
}

func normalizeValue(doc any) ([]Raw, error) {
	switch v := doc.(type) {
	case []any:
		out := make([]Raw, 0, len(v))
		for i, elem := range v {
			items, err := normalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			out = append(out, items...)
		}
		return out, nil
	case map[string]any:
		return normalizeObject(v)
	default:
		return nil, fmt.Errorf("unexpected event payload type %T", doc)
	}
}

func normalizeObject(obj map[string]any) ([]Raw, error) {
	if msg, ok := obj["message"].(map[string]any); ok {
		if data, ok := msg["data"].(string); ok {
			return normalizePushEnvelope(data)
		}
	}

	if eventType, ok := obj["eventType"].(string); ok {
		switch {
		case eventType == azureBlobCreated:
			raw, err := fromEventGrid(obj)
			if err != nil {
				return nil, err
			}
			return []Raw{raw}, nil
		case strings.HasPrefix(eventType, azureStorageEventPrefix), strings.HasPrefix(eventType, azureEventGridPrefix):
			slog.Debug("Ignoring Event Grid event", slog.String("eventType", eventType))
			return nil, nil
		}
	}

	return []Raw{Raw(obj)}, nil
}

func normalizePushEnvelope(data string) ([]Raw, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode push message data: %w", err)
	}
	raw, err := Decode(decoded)
	if err != nil {
		return nil, err
	}
	return []Raw{raw}, nil
}

// fromEventGrid maps an Event Grid BlobCreated event onto the notification
// keys. Only keys present in the source are set so that CheckEvent still
// reports what is missing.
func fromEventGrid(obj map[string]any) (Raw, error) {
	data, ok := obj["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("event grid event has no data section")
	}

	raw := Raw{}
	if blobURL, ok := data["url"].(string); ok {
		container, name, err := splitBlobURL(blobURL)
		if err != nil {
			return nil, err
		}
		raw[KeyBucket] = container
		raw[KeyName] = name
	}
	if ct, ok := data["contentType"]; ok {
		raw[KeyContentType] = ct
	}
	if size, ok := data["contentLength"]; ok {
		raw[KeySize] = size
	}
	return raw, nil
}

func splitBlobURL(blobURL string) (string, string, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob url %q: %w", blobURL, err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	container, name, found := strings.Cut(path, "/")
	if !found || container == "" || name == "" {
		return "", "", fmt.Errorf("blob url %q has no container/blob path", blobURL)
	}
	return container, name, nil
}

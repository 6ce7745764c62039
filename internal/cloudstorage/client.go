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

// Package cloudstorage reads trigger objects from the supported blob stores.
package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidEncoding = errors.New("object content is not valid UTF-8")
	ErrInvalidPath     = errors.New("object path escapes the storage root")
)

// Client provides a unified interface for reading objects across providers.
type Client interface {
	// ReadObject returns the full content of bucket/key. A missing object
	// yields an error wrapping ErrObjectNotFound.
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// ClientProvider builds a Client for the configured provider.
type ClientProvider interface {
	NewClient(ctx context.Context, settings Settings) (Client, error)
}

// Provider names accepted in Settings.Provider.
const (
	ProviderGCS   = "gcs"
	ProviderS3    = "s3"
	ProviderAzure = "azure"
	ProviderFile  = "file"
)

// Settings selects and configures a storage backend.
type Settings struct {
	Provider string `mapstructure:"provider"`

	// gcs
	ImpersonateServiceAccount string `mapstructure:"impersonate_service_account"`

	// s3
	Region      string `mapstructure:"region"`
	Endpoint    string `mapstructure:"endpoint"`
	Role        string `mapstructure:"role"`
	PathStyle   bool   `mapstructure:"path_style"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`

	// azure
	StorageAccount string `mapstructure:"storage_account"`

	// file
	Root string `mapstructure:"root"`
}

// FetchText reads bucket/key and returns it as text. The whole object is held
// in memory.
func FetchText(ctx context.Context, c Client, bucket, key string) (string, error) {
	data, err := c.ReadObject(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidEncoding, bucket, key)
	}
	return string(data), nil
}

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

package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileClientProvider creates clients that read from the local filesystem.
// Bucket names become subdirectories under the base path.
type FileClientProvider struct {
	base string
}

// NewFileClientProvider returns a new provider rooted at base.
func NewFileClientProvider(base string) ClientProvider {
	return &FileClientProvider{base: base}
}

// NewClient returns a client that reads files under the base path. A
// non-empty settings.Root overrides the provider's base.
func (p *FileClientProvider) NewClient(ctx context.Context, settings Settings) (Client, error) {
	base := p.base
	if settings.Root != "" {
		base = settings.Root
	}
	return NewFileClient(base), nil
}

// NewFileClient returns a Client reading <base>/<bucket>/<key>.
func NewFileClient(base string) Client {
	return &fileClient{base: base}
}

type fileClient struct {
	base string
}

// path maps bucket/key under base. Both must be local paths so that an
// event can never name a file outside base.
func (c *fileClient) path(bucket, key string) (string, error) {
	key = filepath.FromSlash(key)
	if !filepath.IsLocal(bucket) || !filepath.IsLocal(key) {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidPath, bucket, key)
	}
	return filepath.Join(c.base, bucket, key), nil
}

// ReadObject returns the content of the file backing bucket/key.
func (c *fileClient) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	src, err := c.path(bucket, key)
	if err != nil {
		recordDownloadError(ctx, ProviderFile, bucket, "invalid_path")
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			recordDownloadError(ctx, ProviderFile, bucket, "not_found")
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, src)
		}
		recordDownloadError(ctx, ProviderFile, bucket, "unknown")
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	recordDownload(ctx, ProviderFile, bucket, len(data))
	return data, nil
}

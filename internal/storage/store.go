// Package storage provides the flat key/blob object store used for source lists,
// cursor, item store and the rendered feed.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Content types used when writing blobs.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeJSON = "application/json"
	ContentTypeRSS  = "application/rss+xml; charset=utf-8"
)

// Store defines the blob operations every backend implements.
// S3, SQLite, PostgreSQL and in-memory backends satisfy this interface.
type Store interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put overwrites the blob stored under key.
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Backend returns a short name for the backend ("s3", "sqlite", "postgres", "memory").
	Backend() string
	Close() error
}

// GetText reads a text blob. A missing key yields ok=false and no error.
func GetText(ctx context.Context, s Store, key string) (string, bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return string(data), true, nil
}

// PutText writes a text blob with the given content type.
func PutText(ctx context.Context, s Store, key, text, contentType string) error {
	if contentType == "" {
		contentType = ContentTypeText
	}
	if err := s.Put(ctx, key, []byte(text), contentType); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the blob under key into v. A missing key yields ok=false and leaves v untouched.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and writes it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data, ContentTypeJSON); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// prefixed namespaces every key under a fixed prefix.
type prefixed struct {
	Store
	prefix string
}

// WithPrefix returns a Store that prepends prefix to every key.
// An empty prefix returns s unchanged.
func WithPrefix(s Store, prefix string) Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return s
	}
	return &prefixed{Store: s, prefix: prefix + "/"}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Store.Get(ctx, p.prefix+key)
}

func (p *prefixed) Put(ctx context.Context, key string, body []byte, contentType string) error {
	return p.Store.Put(ctx, p.prefix+key, body, contentType)
}

package storage

import (
	"context"
	"fmt"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Prefix      string
	S3          S3Config
	SQLitePath  string
	PostgresDSN string
}

// Open builds the configured backend and applies the key prefix.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "s3", "":
		s, err = NewS3(ctx, opts.S3)
	case "sqlite":
		s, err = NewSQLite(opts.SQLitePath)
	case "postgres":
		s, err = NewPostgres(opts.PostgresDSN)
	case "memory":
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}
	return WithPrefix(s, opts.Prefix), nil
}

// Package blob selects the artifact store that dashboard exports write to.
package blob

import (
	"context"
	"fmt"

	"gridboard/internal/blob/core"
	"gridboard/internal/config"
	"gridboard/internal/infra/blob/fs"
	"gridboard/internal/infra/blob/memory"
	"gridboard/internal/infra/blob/s3"
)

type (
	Store      = core.Store
	Info       = core.Info
	PutOptions = core.PutOptions
	Driver     = core.Driver
)

var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// Open returns the store named by cfg.Driver; an empty driver means memory.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch core.Driver(cfg.Driver) {
	case core.DriverMemory, "":
		return memory.New(), nil
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

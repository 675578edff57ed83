package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"stockroom/internal/infra/blob/fs"
	memorystore "stockroom/internal/infra/blob/memory"
	infraS3 "stockroom/internal/infra/blob/s3"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvDriver      = "STOCKROOM_BLOB_DRIVER"
	EnvFSRoot      = "STOCKROOM_BLOB_FS_ROOT"
	EnvS3Bucket    = "STOCKROOM_BLOB_S3_BUCKET"
	EnvS3Region    = "STOCKROOM_BLOB_S3_REGION"
	EnvS3Endpoint  = "STOCKROOM_BLOB_S3_ENDPOINT"
	EnvS3PathStyle = "STOCKROOM_BLOB_S3_PATH_STYLE"
)

// S3Config re-exports the S3 driver configuration.
type S3Config = infraS3.Config

// Config selects and parameterises an archive store.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// ConfigFromEnv reads Config from the environment.
//
//	STOCKROOM_BLOB_DRIVER: fs|s3|memory (default fs)
//	STOCKROOM_BLOB_FS_ROOT: directory when driver=fs (default ./archives)
//	STOCKROOM_BLOB_S3_BUCKET: bucket when driver=s3 (required)
//	STOCKROOM_BLOB_S3_REGION: region (default us-east-1)
//	STOCKROOM_BLOB_S3_ENDPOINT: custom endpoint, e.g. MinIO
//	STOCKROOM_BLOB_S3_PATH_STYLE: true|false
func ConfigFromEnv() Config {
	driver := Driver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver))))
	if driver == "" {
		driver = DriverFilesystem
	}
	return Config{
		Driver: driver,
		FSRoot: os.Getenv(EnvFSRoot),
		S3: S3Config{
			Bucket:    os.Getenv(EnvS3Bucket),
			Region:    os.Getenv(EnvS3Region),
			Endpoint:  os.Getenv(EnvS3Endpoint),
			PathStyle: strings.EqualFold(os.Getenv(EnvS3PathStyle), "true"),
		},
	}
}

// Open constructs the store selected by cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("%s required for s3 driver", EnvS3Bucket)
		}
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewFilesystem constructs a directory-backed store rooted at root.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests returns an S3 store talking to an in-process fake endpoint.
func NewMockS3ForTests() Store { return infraS3.NewMock() }

package blob

import (
	"context"
	"strings"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvDriver, "")
	t.Setenv(EnvFSRoot, "")
	if cfg := ConfigFromEnv(); cfg.Driver != DriverFilesystem {
		t.Fatalf("expected fs default, got %s", cfg.Driver)
	}

	t.Setenv(EnvDriver, "S3")
	t.Setenv(EnvS3Bucket, "archives")
	t.Setenv(EnvS3Region, "eu-west-1")
	t.Setenv(EnvS3Endpoint, "http://minio:9000")
	t.Setenv(EnvS3PathStyle, "TRUE")
	cfg := ConfigFromEnv()
	if cfg.Driver != DriverS3 || cfg.S3.Bucket != "archives" || cfg.S3.Region != "eu-west-1" || !cfg.S3.PathStyle {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Config{Driver: DriverFilesystem, FSRoot: t.TempDir()})
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("fs: %v", err)
	}
	store, err = Open(ctx, Config{Driver: DriverMemory})
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil || !strings.Contains(err.Error(), EnvS3Bucket) {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if NewMockS3ForTests().Driver() != DriverS3 {
		t.Fatalf("mock should report s3")
	}
}

package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"stockroom/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMock()
	if store.Driver() != core.DriverS3 || store.Bucket() != mockBucket {
		t.Fatalf("unexpected store %s/%s", store.Driver(), store.Bucket())
	}
	body := []byte("timestamp,product_name,size,action,change,final_stock\n")
	info, err := store.Put(ctx, "history/a.csv", bytes.NewReader(body), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"rows": "0"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "history/a.csv" || info.Size != int64(len(body)) || info.ContentType != "text/csv" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["rows"] != "0" {
		t.Fatalf("metadata not stored: %+v", info.Metadata)
	}
	if _, err := store.Put(ctx, "history/a.csv", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, "history/a.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(data, body) || got.ETag == "" {
		t.Fatalf("unexpected object %q %+v", data, got)
	}
	if want := fmt.Sprintf("%x", md5.Sum(body)); got.ETag != want || info.ETag != want {
		t.Fatalf("etag mismatch: put %q get %q want %q", info.ETag, got.ETag, want)
	}
	if head, err := store.Head(ctx, "history/a.csv"); err != nil || head.ETag != got.ETag {
		t.Fatalf("head: %+v %v", head, err)
	}

	url, err := store.PresignURL(ctx, "history/a.csv", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil || !strings.Contains(url, "history/a.csv") || !strings.Contains(url, "X-Amz-Expires=60") {
		t.Fatalf("presign: %s %v", url, err)
	}

	ok, err := store.Delete(ctx, "history/a.csv")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "history/a.csv"); err != nil || ok {
		t.Fatalf("deleting a missing key should report false, got %v %v", ok, err)
	}
}

func TestMockStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMock()
	if _, err := store.Head(ctx, "history/missing.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected not found, got %v", err)
	}
	if _, _, err := store.Get(ctx, "history/missing.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected not found, got %v", err)
	}
	if _, err := store.PresignURL(ctx, "x", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if _, err := store.Put(ctx, "/abs", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected key validation error")
	}
}

func TestMockStoreListSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMock()
	for _, key := range []string{"history/b.csv", "backups/x.csv", "history/a.csv"} {
		if _, err := store.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "history/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "history/a.csv" || list[1].Key != "history/b.csv" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].Size != int64(len("history/a.csv")) {
		t.Fatalf("unexpected size %d", list[0].Size)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	store, err := New(context.Background(), Config{Bucket: "b", AccessKeyID: "AKIA", SecretAccessKey: "s", Endpoint: "https://minio.local", PathStyle: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Bucket() != "b" {
		t.Fatalf("unexpected bucket %s", store.Bucket())
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	framed := "5;chunk-signature=abc\r\nhello\r\n6;chunk-signature=def\r\n world\r\n0;chunk-signature=000\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, err := decodeAWSChunked([]byte(framed))
	if err != nil || string(got) != "hello world" {
		t.Fatalf("decode: %q %v", got, err)
	}
	if _, err := decodeAWSChunked([]byte("zz\r\nhello\r\n")); err == nil {
		t.Fatalf("expected bad size error")
	}
	if _, err := decodeAWSChunked([]byte("a\r\nshort")); err == nil {
		t.Fatalf("expected truncated body error")
	}
}

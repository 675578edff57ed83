package memory

import (
	"encoding/json"
	"fmt"
	"slices"

	"stockroom/pkg/domain"
)

// Snapshot bucket names used by the SQL-backed stores.
const (
	BucketItems      = "items"
	BucketCategories = "categories"
	BucketHistory    = "history"
)

// Buckets lists every snapshot bucket in persistence order.
var Buckets = []string{BucketItems, BucketCategories, BucketHistory}

var entityBuckets = map[domain.EntityType]string{
	domain.EntityStockItem: BucketItems,
	domain.EntityCategory:  BucketCategories,
	domain.EntityHistory:   BucketHistory,
}

// TouchedBuckets maps a touched-entity set onto bucket names, in persistence order.
func TouchedBuckets(touched map[domain.EntityType]bool) []string {
	var out []string
	for _, bucket := range Buckets {
		for entity, name := range entityBuckets {
			if name == bucket && touched[entity] {
				out = append(out, bucket)
			}
		}
	}
	return out
}

// EncodeBucket marshals the record set stored under bucket.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	switch bucket {
	case BucketItems:
		return json.Marshal(nonNil(s.Items))
	case BucketCategories:
		return json.Marshal(nonNil(s.Categories))
	case BucketHistory:
		return json.Marshal(nonNil(s.History))
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
}

// DecodeBucket unmarshals payload into the record set named by bucket. Unknown
// buckets are ignored.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	var err error
	switch bucket {
	case BucketItems:
		err = json.Unmarshal(payload, &s.Items)
	case BucketCategories:
		err = json.Unmarshal(payload, &s.Categories)
	case BucketHistory:
		err = json.Unmarshal(payload, &s.History)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

// SnapshotFromBuckets assembles a snapshot from raw bucket payloads. A missing
// categories bucket yields the default categories.
func SnapshotFromBuckets(raw map[string][]byte) (Snapshot, error) {
	var snapshot Snapshot
	for bucket, payload := range raw {
		if len(payload) == 0 {
			continue
		}
		if err := snapshot.DecodeBucket(bucket, payload); err != nil {
			return Snapshot{}, err
		}
	}
	if _, ok := raw[BucketCategories]; !ok {
		snapshot.Categories = slices.Clone(domain.DefaultCategories)
	}
	return snapshot, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by the snapshotting backends. Each bucket holds the JSON
// encoding of one Snapshot field.
const (
	BucketAssets     = "assets"
	BucketLocations  = "locations"
	BucketLogs       = "logs"
	BucketLinks      = "links"
	BucketPredicates = "predicates"
	BucketFacts      = "facts"
)

// Buckets lists every snapshot bucket in persistence order.
func Buckets() []string {
	return []string{BucketAssets, BucketLocations, BucketLogs, BucketLinks, BucketPredicates, BucketFacts}
}

func (s *Snapshot) bucketTarget(bucket string) (any, bool) {
	switch bucket {
	case BucketAssets:
		return &s.Assets, true
	case BucketLocations:
		return &s.Locations, true
	case BucketLogs:
		return &s.Logs, true
	case BucketLinks:
		return &s.Links, true
	case BucketPredicates:
		return &s.Predicates, true
	case BucketFacts:
		return &s.Facts, true
	}
	return nil, false
}

// EncodeBucket marshals the named bucket of the snapshot.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	data, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return data, nil
}

// DecodeBucket unmarshals payload into the named bucket. Unknown buckets and
// empty payloads are ignored so older databases keep loading.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

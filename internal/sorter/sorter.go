// Package sorter orders an organization's Records for output.
//
// Records are ordered by last name, then first name, both compared
// case-insensitively. An empty last name is compared as is, so it sorts
// before any non-empty one. The sort is stable: Records equal on both keys
// keep their incoming order. Subscriber id and version never take part.
package sorter

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
)

// Compare orders two Records by last name then first name, ignoring case.
func Compare(a, b types.Record) int {
	fold := cases.Fold()
	if c := strings.Compare(fold.String(a.LastName), fold.String(b.LastName)); c != 0 {
		return c
	}
	return strings.Compare(fold.String(a.FirstName), fold.String(b.FirstName))
}

// SortRecords returns a sorted copy of records. The input is not modified.
func SortRecords(records []types.Record) []types.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, Compare)
	return out
}

// SortBucket returns the bucket's Records in output order. Ties keep the
// bucket's first-seen order.
func SortBucket(bucket *types.Bucket) []types.Record {
	if bucket == nil {
		return nil
	}
	return SortRecords(bucket.Records())
}

// SortAll sorts every bucket and returns the groups in the order the
// organizations were first encountered.
func SortAll(buckets *types.Buckets) []types.Group {
	groups := make([]types.Group, 0, buckets.Len())
	buckets.Each(func(b *types.Bucket) {
		groups = append(groups, types.Group{
			Organization: b.Name,
			Records:      SortBucket(b),
		})
	})
	return groups
}

// =============================================================================
// Enrollment File Processor - Shared Types
// =============================================================================
//
// This package contains the record model shared by every stage of the
// pipeline. It is imported by:
//   - csvparser / xlsxparser (construct Records)
//   - grouper               (fills Buckets)
//   - sorter                (orders a Bucket)
//   - csvwriter / xlsxwriter (serialise Groups)
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one enrollee row. It is a plain value: stages pass copies around
// and never modify a Record after the parser has built it.
type Record struct {
	// SubscriberID identifies a person within one organization. Never empty.
	SubscriberID string

	// FirstName and LastName are derived from the free-text full name.
	// LastName may be empty.
	FirstName string
	LastName  string

	// Version is the revision marker used to pick the surviving duplicate.
	// Never negative.
	Version int

	// Organization is the grouping key, kept exactly as it appeared in the input.
	Organization string
}

// NewRecord builds a Record from already validated parts.
func NewRecord(subscriberID, firstName, lastName string, version int, organization string) Record {
	return Record{
		SubscriberID: subscriberID,
		FirstName:    firstName,
		LastName:     lastName,
		Version:      version,
		Organization: organization,
	}
}

// FullName recombines the first and last name with a single space.
func (r Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

func (r Record) String() string {
	return fmt.Sprintf("Record{id=%q, first=%q, last=%q, version=%d, organization=%q}",
		r.SubscriberID, r.FirstName, r.LastName, r.Version, r.Organization)
}

// =============================================================================
// BUCKET
// =============================================================================

// Bucket holds the surviving Record per subscriber for one organization.
//
// Records are kept in first-seen order. Replacing a subscriber's Record keeps
// the slot of the subscriber's first appearance, so the order handed to the
// sorter is deterministic for a given input.
type Bucket struct {
	// Key is the grouping key. It equals Name unless organizations are matched
	// case-insensitively, in which case it is the folded form.
	Key string

	// Name is the organization exactly as first seen in the input.
	// Output file names are derived from it.
	Name string

	index   map[string]int
	records []Record
}

// NewBucket creates an empty bucket.
func NewBucket(key, name string) *Bucket {
	return &Bucket{
		Key:   key,
		Name:  name,
		index: make(map[string]int),
	}
}

// Get returns the Record stored for a subscriber.
func (b *Bucket) Get(subscriberID string) (Record, bool) {
	i, ok := b.index[subscriberID]
	if !ok {
		return Record{}, false
	}
	return b.records[i], true
}

// Put inserts a Record, or replaces the one stored under the same subscriber
// in place. Deciding whether a replacement is allowed is the grouper's job.
func (b *Bucket) Put(r Record) {
	if i, ok := b.index[r.SubscriberID]; ok {
		b.records[i] = r
		return
	}
	b.index[r.SubscriberID] = len(b.records)
	b.records = append(b.records, r)
}

// Len returns the number of subscribers in the bucket.
func (b *Bucket) Len() int {
	return len(b.records)
}

// Records returns a copy of the bucket contents in first-seen order.
func (b *Bucket) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// =============================================================================
// BUCKETS
// =============================================================================

// Buckets maps grouping keys to buckets. Buckets are created lazily and
// iterate in the order their organization was first encountered.
type Buckets struct {
	byKey map[string]*Bucket
	keys  []string
}

// NewBuckets creates an empty collection.
func NewBuckets() *Buckets {
	return &Buckets{byKey: make(map[string]*Bucket)}
}

// Get returns the bucket for key, or nil.
func (bs *Buckets) Get(key string) *Bucket {
	return bs.byKey[key]
}

// GetOrCreate returns the bucket for key, creating it with the given display
// name when the key is new.
func (bs *Buckets) GetOrCreate(key, name string) *Bucket {
	if b, ok := bs.byKey[key]; ok {
		return b
	}
	b := NewBucket(key, name)
	bs.byKey[key] = b
	bs.keys = append(bs.keys, key)
	return b
}

// Keys returns the grouping keys in first-seen order.
func (bs *Buckets) Keys() []string {
	out := make([]string, len(bs.keys))
	copy(out, bs.keys)
	return out
}

// Len returns the number of organizations.
func (bs *Buckets) Len() int {
	return len(bs.keys)
}

// Each calls fn for every bucket in first-seen order.
func (bs *Buckets) Each(fn func(b *Bucket)) {
	for _, k := range bs.keys {
		fn(bs.byKey[k])
	}
}

// =============================================================================
// GROUP
// =============================================================================

// Group is one organization's Records after sorting, ready to be written.
type Group struct {
	// Organization is the display name used to derive the output file name.
	Organization string

	// Records are in output order.
	Records []Record
}

// =============================================================================
// Enrollment File Processor - Deduplicating Grouper
// =============================================================================
//
// The grouper buckets Records by organization and keeps one Record per
// subscriber inside each bucket.
//
// DEDUPLICATION RULE:
//   - No Record for the subscriber yet        -> insert
//   - Stored Record has a lower version       -> replace
//   - Stored Record has an equal/higher version -> keep stored, discard incoming
//
// The survivor per (organization, subscriber) is therefore the Record with
// the highest version, and the earliest one among equal highest versions,
// whatever the input order.
//
// =============================================================================

package grouper

import (
	"golang.org/x/text/cases"

	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
)

// Outcome reports what Add did with a Record.
type Outcome int

const (
	// Inserted means the subscriber was new to its bucket.
	Inserted Outcome = iota
	// Replaced means the Record superseded a lower version.
	Replaced
	// Discarded means a stored Record with an equal or higher version won.
	Discarded
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Options control how organizations are matched.
type Options struct {
	// CaseInsensitive folds organization names before bucketing, so "Acme"
	// and "ACME" share a bucket. The bucket keeps the first spelling seen.
	CaseInsensitive bool
}

// Grouper accumulates Records into Buckets during a single scan. It is not
// safe for concurrent use.
type Grouper struct {
	opts      Options
	fold      cases.Caser
	buckets   *types.Buckets
	replaced  int
	discarded int
}

// New creates an empty Grouper.
func New(opts Options) *Grouper {
	return &Grouper{
		opts:    opts,
		fold:    cases.Fold(),
		buckets: types.NewBuckets(),
	}
}

// Key returns the bucket key for an organization name.
func (g *Grouper) Key(organization string) string {
	if !g.opts.CaseInsensitive {
		return organization
	}
	return g.fold.String(organization)
}

// Add applies the deduplication rule to one Record.
func (g *Grouper) Add(r types.Record) Outcome {
	bucket := g.buckets.GetOrCreate(g.Key(r.Organization), r.Organization)

	existing, ok := bucket.Get(r.SubscriberID)
	switch {
	case !ok:
		bucket.Put(r)
		return Inserted
	case existing.Version < r.Version:
		bucket.Put(r)
		g.replaced++
		return Replaced
	default:
		g.discarded++
		return Discarded
	}
}

// Buckets returns the buckets built so far.
func (g *Grouper) Buckets() *types.Buckets {
	return g.buckets
}

// Replaced returns how many stored Records were superseded.
func (g *Grouper) Replaced() int {
	return g.replaced
}

// Discarded returns how many incoming Records lost to a stored one.
func (g *Grouper) Discarded() int {
	return g.discarded
}

// Group buckets a whole sequence at once.
func Group(records []types.Record, opts Options) *types.Buckets {
	g := New(opts)
	for _, r := range records {
		g.Add(r)
	}
	return g.Buckets()
}

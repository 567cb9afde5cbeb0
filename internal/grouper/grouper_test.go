package grouper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/enrollment-file-processor/internal/types"
)

func rec(id, first, last string, version int, org string) types.Record {
	return types.NewRecord(id, first, last, version, org)
}

func TestGroup_ExactMatchKeepsCaseVariantsApart(t *testing.T) {
	buckets := Group([]types.Record{
		rec("1", "Alice", "Adams", 2, "Acme"),
		rec("1", "Alice", "Adams", 3, "ACME"),
	}, Options{})

	require.Equal(t, 2, buckets.Len())
	assert.Equal(t, []string{"Acme", "ACME"}, buckets.Keys())
	assert.Equal(t, 1, buckets.Get("Acme").Len())
	assert.Equal(t, 1, buckets.Get("ACME").Len())
}

func TestGroup_HigherVersionWins(t *testing.T) {
	buckets := Group([]types.Record{
		rec("1", "Alice", "Adams", 2, "Acme"),
		rec("1", "Alice", "Adams", 3, "Acme"),
	}, Options{})

	require.Equal(t, 1, buckets.Len())
	got, ok := buckets.Get("Acme").Get("1")
	require.True(t, ok)
	assert.Equal(t, 3, got.Version)
}

func TestGroup_LowerVersionLaterIsDiscarded(t *testing.T) {
	g := New(Options{})

	assert.Equal(t, Inserted, g.Add(rec("1", "Alice", "Adams", 5, "Acme")))
	assert.Equal(t, Discarded, g.Add(rec("1", "Alice", "Adams", 4, "Acme")))

	got, _ := g.Buckets().Get("Acme").Get("1")
	assert.Equal(t, 5, got.Version)
	assert.Equal(t, 1, g.Discarded())
	assert.Equal(t, 0, g.Replaced())
}

func TestGroup_TieKeepsFirstSeen(t *testing.T) {
	g := New(Options{})

	g.Add(rec("2", "Jane", "Alpha", 3, "Acme"))
	assert.Equal(t, Discarded, g.Add(rec("2", "Jane", "Beta", 3, "Acme")))

	got, _ := g.Buckets().Get("Acme").Get("2")
	assert.Equal(t, "Alpha", got.LastName)
}

func TestGroup_SurvivorIndependentOfOrder(t *testing.T) {
	records := []types.Record{
		rec("1", "A", "First", 1, "Acme"),
		rec("1", "A", "Second", 4, "Acme"),
		rec("1", "A", "Third", 2, "Acme"),
		rec("1", "A", "Fourth", 4, "Acme"),
	}

	permutations := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
	}

	for _, perm := range permutations {
		ordered := make([]types.Record, 0, len(perm))
		for _, i := range perm {
			ordered = append(ordered, records[i])
		}

		// Among the two version-4 Records the earlier one in this ordering wins.
		var want string
		for _, r := range ordered {
			if r.Version == 4 {
				want = r.LastName
				break
			}
		}

		got, ok := Group(ordered, Options{}).Get("Acme").Get("1")
		require.True(t, ok)
		assert.Equal(t, 4, got.Version)
		assert.Equal(t, want, got.LastName, "permutation %v", perm)
	}
}

func TestGroup_SameSubscriberDifferentOrganizations(t *testing.T) {
	buckets := Group([]types.Record{
		rec("1", "Alice", "Adams", 1, "Acme"),
		rec("1", "Alice", "Adams", 9, "Zenith"),
	}, Options{})

	a, _ := buckets.Get("Acme").Get("1")
	z, _ := buckets.Get("Zenith").Get("1")
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 9, z.Version)
}

func TestGroup_ReplacementKeepsSlot(t *testing.T) {
	buckets := Group([]types.Record{
		rec("1", "Alice", "Adams", 1, "Acme"),
		rec("2", "Bob", "Brown", 1, "Acme"),
		rec("1", "Alice", "Adams", 2, "Acme"),
	}, Options{})

	records := buckets.Get("Acme").Records()
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].SubscriberID)
	assert.Equal(t, 2, records[0].Version)
	assert.Equal(t, "2", records[1].SubscriberID)
}

func TestGroup_CaseInsensitive(t *testing.T) {
	g := New(Options{CaseInsensitive: true})
	g.Add(rec("1", "Alice", "Adams", 2, "Acme Insurance"))
	assert.Equal(t, Replaced, g.Add(rec("1", "Alice", "Adams", 3, "ACME INSURANCE")))
	g.Add(rec("2", "Bob", "Smith", 1, "acme insurance"))

	buckets := g.Buckets()
	require.Equal(t, 1, buckets.Len())

	bucket := buckets.Get(g.Key("Acme Insurance"))
	require.NotNil(t, bucket)
	assert.Equal(t, "Acme Insurance", bucket.Name)
	assert.Equal(t, 2, bucket.Len())

	got, _ := bucket.Get("1")
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, "ACME INSURANCE", got.Organization)
}

func TestGroup_Empty(t *testing.T) {
	buckets := Group(nil, Options{})
	assert.Equal(t, 0, buckets.Len())
	assert.Empty(t, buckets.Keys())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "inserted", Inserted.String())
	assert.Equal(t, "replaced", Replaced.String())
	assert.Equal(t, "discarded", Discarded.String())
}

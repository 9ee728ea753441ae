package denoise

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ainews/internal/core"
)

var storyBody = strings.Repeat(
	"OpenAI today announced the release of its newest flagship model, "+
		"claiming large gains on reasoning and coding benchmarks. ", 5)

func TestClusterGroupsNearDuplicates(t *testing.T) {
	items := []core.Item{
		{ID: "bbb", SourceID: "hn", Title: "OpenAI releases GPT-5 model", Content: storyBody},
		{ID: "aaa", SourceID: "blog", Title: "OpenAI release of GPT-5 model announced", Content: storyBody},
		{ID: "ccc", SourceID: "hn", Title: "Postgres 18 released", Content: "The PostgreSQL project announced version 18 with incremental backups and better partitioning support."},
	}

	clustered, n := NewDedupClusterer(0.85).Cluster(items)
	assert.Equal(t, 2, n)

	require.Equal(t, clustered[0].ClusterID, clustered[1].ClusterID)
	assert.NotEqual(t, clustered[0].ClusterID, clustered[2].ClusterID)

	// Cluster ID is the smallest member ID.
	assert.Equal(t, "aaa", clustered[0].ClusterID)

	// Exactly one representative in the duplicate pair.
	reps := 0
	for _, item := range clustered[:2] {
		if item.IsRepresentative {
			reps++
		}
	}
	assert.Equal(t, 1, reps)

	// Singletons represent themselves.
	assert.True(t, clustered[2].IsRepresentative)
	assert.Equal(t, "ccc", clustered[2].ClusterID)
}

func TestClusterURLGroupProbesOnlyStrongestMember(t *testing.T) {
	detail := strings.Repeat(
		"An in-depth launch writeup covering training data, evaluations, "+
			"and deployment guidance for the new model family. ", 5)
	items := []core.Item{
		{ID: "x1", URLCanonical: "https://example.com/launch", Title: "Llama 4 launch, annotated", Content: detail},
		{ID: "x2", URLCanonical: "https://example.com/launch", Title: "Meta ships Llama 4"},
		{ID: "y1", URLCanonical: "https://mirror.example/post", Title: "Meta ships Llama 4"},
	}

	clustered, n := NewDedupClusterer(0.85).Cluster(items)
	require.Equal(t, 2, n)

	// The URL pair clusters, but its thin member never enters the
	// similarity index, so it cannot drag the look-alike third item in.
	assert.Equal(t, clustered[0].ClusterID, clustered[1].ClusterID)
	assert.NotEqual(t, clustered[0].ClusterID, clustered[2].ClusterID)
	assert.True(t, clustered[2].IsRepresentative)
}

func TestClusterRepresentativeSelection(t *testing.T) {
	early := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// Longest content wins regardless of order or date.
	a := core.Item{ID: "a", Title: "same story headline", Content: storyBody + " extra detail paragraph", PublishedAt: late}
	b := core.Item{ID: "b", Title: "same story headline", Content: storyBody, PublishedAt: early}
	assert.True(t, betterRepresentative(a, b))
	assert.False(t, betterRepresentative(b, a))

	// Equal content length: earlier publish time wins.
	b.Content = strings.Repeat("x", len(a.Content))
	assert.True(t, betterRepresentative(b, a))

	// Full tie: smaller ID wins.
	b.PublishedAt = late
	assert.True(t, betterRepresentative(a, b))
}

func TestClusterDistinctItemsStayApart(t *testing.T) {
	items := []core.Item{
		{ID: "1", Title: "Rust 1.80 ships stable LazyCell", Content: "The Rust release train delivered lazy statics in the standard library."},
		{ID: "2", Title: "Kubernetes 1.31 removes in-tree cloud providers", Content: "SIG Cloud Provider completed the long migration to external providers."},
		{ID: "3", Title: "SQLite adds JSONB support", Content: "A binary JSON format lands in SQLite, cutting parse overhead for JSON-heavy workloads."},
	}

	_, n := NewDedupClusterer(0.85).Cluster(items)
	assert.Equal(t, 3, n)
}

func TestClusterEmptyBatch(t *testing.T) {
	items, n := NewDedupClusterer(0.85).Cluster(nil)
	assert.Empty(t, items)
	assert.Zero(t, n)
}

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ainews/internal/core"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(id, sourceID, url string) core.Item {
	return core.Item{
		ID:           id,
		SourceID:     sourceID,
		URL:          url,
		URLCanonical: core.CanonicalURL(url),
		Title:        "Test item " + id,
		Content:      "Some content for " + id,
		PublishedAt:  time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		IngestedAt:   time.Date(2025, 6, 15, 11, 0, 0, 0, time.UTC),
		Category:     core.CategoryNews,
		Language:     "en",
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening must not re-run migrations or fail.
	s, err = New(path, 0)
	require.NoError(t, err)
	defer s.Close()

	v, err := currentVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)
}

func TestUpsertAndGetSource(t *testing.T) {
	s := testStore(t)

	src := core.SourceFromConfig(core.SourceConfig{
		ID:       "hn",
		Type:     "api",
		URL:      "https://hn.algolia.com/api/v1/search",
		Category: core.CategoryNews,
	})
	require.NoError(t, s.UpsertSource(src))

	got, err := s.GetSource("hn")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hn", got.ID)
	assert.Equal(t, "api", got.Config.Type)
	assert.True(t, got.Enabled)

	missing, err := s.GetSource("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateSourceStatus(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.UpsertSource(core.SourceFromConfig(core.SourceConfig{
		ID: "feed", Type: "rss", URL: "https://example.com/rss", Category: core.CategoryNews,
	})))

	now := time.Now().UTC().Truncate(time.Second)

	// Two consecutive failures increment the counter.
	require.NoError(t, s.UpdateSourceStatus("feed", time.Time{}, "connection refused", true))
	require.NoError(t, s.UpdateSourceStatus("feed", time.Time{}, "connection refused", true))
	got, err := s.GetSource("feed")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ErrorCount)
	assert.Equal(t, "connection refused", got.LastError)

	// A success clears error state and stamps the fetch time.
	require.NoError(t, s.UpdateSourceStatus("feed", now, "", false))
	got, err = s.GetSource("feed")
	require.NoError(t, err)
	assert.Equal(t, 0, got.ErrorCount)
	assert.Empty(t, got.LastError)
	assert.Equal(t, now, got.LastFetchAt)
}

func TestBatchInsertSkipsDuplicates(t *testing.T) {
	s := testStore(t)

	a := testItem("aaaa", "src1", "https://example.com/post/1")
	b := testItem("bbbb", "src1", "https://example.com/post/2")

	n, err := s.BatchInsertItems([]core.Item{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same primary key and a fresh id colliding on url_canonical: both skipped.
	c := testItem("cccc", "src2", "https://example.com/post/1?utm_source=x")
	c.URLCanonical = a.URLCanonical
	n, err = s.BatchInsertItems([]core.Item{a, c})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	total, err := s.CountItems("")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestItemRoundTrip(t *testing.T) {
	s := testStore(t)

	item := testItem("dddd", "src1", "https://example.com/post/3")
	item.Author = "alice"
	item.Metadata = map[string]any{"points": float64(42)}
	item.FetchBatchID = "batch-1"

	_, err := s.BatchInsertItems([]core.Item{item})
	require.NoError(t, err)

	got, err := s.GetItem("dddd")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.URL, got.URL)
	assert.Equal(t, item.Author, got.Author)
	assert.Equal(t, item.PublishedAt, got.PublishedAt)
	assert.Equal(t, "batch-1", got.FetchBatchID)
	assert.Equal(t, float64(42), got.Metadata["points"])

	exists, err := s.ItemExists("dddd")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.URLCanonicalExists(item.URLCanonical)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSearchFTS(t *testing.T) {
	s := testStore(t)

	a := testItem("e001", "src1", "https://example.com/transformers")
	a.Title = "Transformers explained from scratch"
	a.Content = "attention is all you need"
	b := testItem("e002", "src1", "https://example.com/databases")
	b.Title = "Database internals"
	b.Content = "B-trees and write-ahead logs, no attention here"

	_, err := s.BatchInsertItems([]core.Item{a, b})
	require.NoError(t, err)

	// Title hit ranks above a content-only hit (title weight 1.0 vs 0.5).
	results, err := s.Search("transformers", SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "e001", results[0].ID)

	results, err = s.Search("attention", SearchFilters{})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search("attention", SearchFilters{SourceID: "src2"})
	require.NoError(t, err)
	assert.Empty(t, results)

	n, err := s.SearchCount("attention")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Malformed MATCH syntax surfaces as a QueryError, not a panic.
	_, err = s.Search(`"unclosed`, SearchFilters{})
	var qerr *QueryError
	assert.ErrorAs(t, err, &qerr)
}

func TestFTSTriggersFollowUpdates(t *testing.T) {
	s := testStore(t)

	item := testItem("f001", "src1", "https://example.com/old-title")
	item.Title = "Original headline"
	_, err := s.BatchInsertItems([]core.Item{item})
	require.NoError(t, err)

	s.mu.Lock()
	_, err = s.db.Exec("UPDATE items SET title = 'Rewritten headline' WHERE id = 'f001'")
	s.mu.Unlock()
	require.NoError(t, err)

	results, err := s.Search("rewritten", SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = s.Search("original", SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMetricsAndTopItems(t *testing.T) {
	s := testStore(t)

	a := testItem("g001", "src1", "https://example.com/a")
	b := testItem("g002", "src1", "https://example.com/b")
	_, err := s.BatchInsertItems([]core.Item{a, b})
	require.NoError(t, err)

	now := time.Now().UTC()
	err = s.UpsertMetrics([]core.Metric{
		{ItemID: "g001", Score: 0.4, Authority: 0.5, ComputedAt: now},
		{ItemID: "g002", Score: 0.9, Authority: 0.8, Summary: "short summary", ComputedAt: now},
	})
	require.NoError(t, err)

	items, metrics, err := s.GetTopItems(TopItemsFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "g002", items[0].ID)
	assert.Equal(t, 0.9, metrics[0].Score)
	assert.Equal(t, "short summary", metrics[0].Summary)

	// Re-upsert replaces, never duplicates.
	err = s.UpsertMetrics([]core.Metric{{ItemID: "g001", Score: 0.95, ComputedAt: now}})
	require.NoError(t, err)
	items, _, err = s.GetTopItems(TopItemsFilters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "g001", items[0].ID)
}

func TestSaveDigestUpsert(t *testing.T) {
	s := testStore(t)

	id1, err := s.SaveDigest(core.Digest{
		Date: "2025-06-15", Section: "news", Markdown: "# v1", JSON: "{}",
	})
	require.NoError(t, err)

	id2, err := s.SaveDigest(core.Digest{
		Date: "2025-06-15", Section: "news", Markdown: "# v2", JSON: "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	digests, err := s.GetDigest("2025-06-15", "news")
	require.NoError(t, err)
	require.Len(t, digests, 1)
	assert.Equal(t, "# v2", digests[0].Markdown)

	all, err := s.GetDigest("2025-06-15", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetItemsForDate(t *testing.T) {
	s := testStore(t)

	onDate := testItem("h001", "src1", "https://example.com/on-date")
	offDate := testItem("h002", "src1", "https://example.com/off-date")
	offDate.PublishedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	offDate.IngestedAt = time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	_, err := s.BatchInsertItems([]core.Item{onDate, offDate})
	require.NoError(t, err)

	items, err := s.GetItemsForDate("2025-06-15")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "h001", items[0].ID)
}

func TestMaintenance(t *testing.T) {
	s := testStore(t)

	item := testItem("i001", "src1", "https://example.com/x")
	_, err := s.BatchInsertItems([]core.Item{item})
	require.NoError(t, err)

	require.NoError(t, s.Vacuum())
	require.NoError(t, s.OptimizeFTS())

	ok, err := s.IntegrityCheck()
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalItems)
	assert.Equal(t, 1, stats.ByCategory[core.CategoryNews])
	assert.Greater(t, stats.SizeBytes, int64(0))
}

package digest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ainews/internal/config"
	"ainews/internal/core"
	"ainews/internal/store"
)

const testDate = "2025-06-15"

func generatorFixture(t *testing.T) (*Generator, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Sources: []core.SourceConfig{
			{ID: "hn", Type: "api", URL: "https://hn.example", Category: core.CategoryNews, Authority: 0.8},
			{ID: "blog", Type: "rss", URL: "https://blog.example", Category: core.CategoryNews, Authority: 0.5},
			{ID: "arxiv", Type: "api", URL: "https://arxiv.example", Category: core.CategoryPaper, Authority: 0.9},
		},
		Scoring: config.Scoring{
			Weights: config.Weights{
				Authority: 0.30, Recency: 0.25, Popularity: 0.20, Relevance: 0.20, DupPenalty: 0.05,
			},
			KeywordsExclude: []string{"sponsored"},
			Quotas:          map[string]int{"default": 10},
		},
		Performance: config.Performance{SimilarityThreshold: 0.85, MaxConcurrentSources: 4, RequestTimeoutSeconds: 5},
		Digest:      config.Digest{Limits: map[string]int{core.CategoryNews: 10, core.CategoryPaper: 10, core.CategoryTips: 10}},
		LLM:         config.LLM{Provider: "mock", ConcurrentRequests: 4},
	}

	g := NewGenerator(st, cfg, &MockSummarizer{})
	g.now = func() time.Time { return time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC) }
	return g, st
}

func seedItem(id, sourceID, category, title, content string) core.Item {
	return core.Item{
		ID:           id,
		SourceID:     sourceID,
		URL:          "https://" + sourceID + ".example/" + id,
		URLCanonical: "https://" + sourceID + ".example/" + id,
		Title:        title,
		Content:      content,
		PublishedAt:  time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
		IngestedAt:   time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		Category:     category,
		Language:     "en",
	}
}

func TestGenerateBuildsSectionsAndMetrics(t *testing.T) {
	g, st := generatorFixture(t)

	story := strings.Repeat("A model release with benchmark results and detailed analysis. ", 5)
	items := []core.Item{
		seedItem("a100", "hn", core.CategoryNews, "Model X released", story),
		seedItem("a200", "blog", core.CategoryNews, "Model X release announced", story), // near-duplicate
		seedItem("a300", "blog", core.CategoryNews, "Unrelated build system deep dive", "Build caching internals explained at length for CI pipelines."),
		seedItem("a400", "arxiv", core.CategoryPaper, "Attention survey", "A survey paper on attention mechanisms in sequence models."),
		seedItem("a500", "blog", core.CategoryNews, "[Sponsored] Buy our platform", "ad copy"),
	}
	_, err := st.BatchInsertItems(items)
	require.NoError(t, err)

	doc, err := g.Generate(context.Background(), testDate)
	require.NoError(t, err)

	// Sponsored item filtered; the near-duplicate stays in, demoted by
	// its penalty rather than dropped: 3 news + 1 paper.
	require.Len(t, doc.News, 3)
	assert.Len(t, doc.Papers, 1)
	assert.Empty(t, doc.Tips)

	rank := map[string]int{}
	for i, di := range doc.News {
		rank[di.Item.ID] = i
		assert.NotEmpty(t, di.Summary)
	}

	// News is score-ordered, with the cluster representative ahead of
	// its penalized twin.
	assert.GreaterOrEqual(t, doc.News[0].Score.Total, doc.News[1].Score.Total)
	assert.GreaterOrEqual(t, doc.News[1].Score.Total, doc.News[2].Score.Total)
	assert.Less(t, rank["a100"], rank["a200"])

	dup := doc.News[rank["a200"]]
	assert.False(t, dup.Item.IsRepresentative)
	assert.Equal(t, 1.0, dup.Score.DupPenalty)

	// Metrics persisted for every surviving item, duplicate included.
	_, metrics, err := st.GetTopItems(store.TopItemsFilters{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, metrics, 4)

	penalized := 0
	for _, m := range metrics {
		if m.DupPenalty == 1 {
			penalized++
			assert.NotEmpty(t, m.ClusterID)
		}
	}
	assert.Equal(t, 1, penalized)
}

func TestGenerateAndSavePersistsAllSections(t *testing.T) {
	g, st := generatorFixture(t)

	_, err := st.BatchInsertItems([]core.Item{
		seedItem("b100", "hn", core.CategoryNews, "Single story", "Some body text for the single story of the day."),
	})
	require.NoError(t, err)

	doc, err := g.GenerateAndSave(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.TotalItems())

	saved, err := st.GetDigest(testDate, "")
	require.NoError(t, err)
	require.Len(t, saved, 3)

	news, err := st.GetDigest(testDate, core.CategoryNews)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Contains(t, news[0].Markdown, "Single story")
	assert.Contains(t, news[0].JSON, "b100")

	// Regenerating updates in place rather than duplicating rows.
	_, err = g.GenerateAndSave(context.Background(), testDate)
	require.NoError(t, err)
	saved, err = st.GetDigest(testDate, "")
	require.NoError(t, err)
	assert.Len(t, saved, 3)
}

func TestGenerateEmptyDay(t *testing.T) {
	g, _ := generatorFixture(t)

	doc, err := g.Generate(context.Background(), "1999-01-01")
	require.NoError(t, err)
	assert.Zero(t, doc.TotalItems())
}

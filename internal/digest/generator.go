package digest

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"ainews/internal/config"
	"ainews/internal/core"
	"ainews/internal/denoise"
	"ainews/internal/logger"
	"ainews/internal/render"
	"ainews/internal/store"
)

// Generator builds the daily digest for one date: hard filter, duplicate
// clustering, scoring, quota admission, then summaries for the winners.
// Scores for every surviving item are persisted as metrics whether or not
// the item made the digest.
type Generator struct {
	store      *store.Store
	cfg        *config.Config
	summarizer Summarizer
	now        func() time.Time
}

func NewGenerator(st *store.Store, cfg *config.Config, summarizer Summarizer) *Generator {
	return &Generator{store: st, cfg: cfg, summarizer: summarizer, now: time.Now}
}

// Generate builds the digest document for a YYYY-MM-DD date.
func (g *Generator) Generate(ctx context.Context, date string) (*core.DigestDoc, error) {
	items, err := g.store.GetItemsForDate(date)
	if err != nil {
		return nil, err
	}
	logger.Info("Generating digest", "date", date, "items", len(items))

	filter := denoise.NewHardFilter(g.cfg.Scoring.KeywordsExclude, g.cfg.Scoring.Languages, g.cfg.Scoring.MinPopularity)
	kept, droppedByFilter := filter.Apply(items)

	clusterer := denoise.NewDedupClusterer(g.cfg.Performance.SimilarityThreshold)
	clustered, clusters := clusterer.Cluster(kept)

	sources := make(map[string]core.SourceConfig, len(g.cfg.Sources))
	for _, sc := range g.cfg.Sources {
		sources[sc.ID] = sc
	}
	scorer := denoise.NewScorer(g.cfg.Scoring.Weights, g.cfg.Scoring.KeywordsRelevance, sources, g.now())
	breakdowns := scorer.Score(clustered)

	// The whole scored batch competes for digest slots; the duplicate
	// penalty pushes non-representatives down the ranking rather than
	// barring them outright.
	candidates := make([]core.DigestItem, 0, len(clustered))
	for i, item := range clustered {
		candidates = append(candidates, core.DigestItem{Item: item, Score: breakdowns[i]})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].Score.Total != candidates[b].Score.Total {
			return candidates[a].Score.Total > candidates[b].Score.Total
		}
		return candidates[a].Item.ID < candidates[b].Item.ID
	})

	quota := denoise.NewQuotaManager(g.cfg.SourceQuota, g.cfg.CategoryLimit)
	admitted := quota.Apply(candidates)

	summarizeAll(ctx, g.summarizer, admitted, g.cfg.LLM.ConcurrentRequests)

	if err := g.persistMetrics(clustered, breakdowns, admitted); err != nil {
		return nil, err
	}

	doc := &core.DigestDoc{Date: date}
	for _, di := range admitted {
		section := doc.Section(di.Item.Category)
		*section = append(*section, di)
	}

	logger.Info("Digest generated", "date", date,
		"candidates", len(candidates), "admitted", doc.TotalItems(),
		"filtered", droppedByFilter, "clusters", clusters)
	return doc, nil
}

// GenerateAndSave generates the digest and persists one row per category
// section, markdown plus JSON.
func (g *Generator) GenerateAndSave(ctx context.Context, date string) (*core.DigestDoc, error) {
	doc, err := g.Generate(ctx, date)
	if err != nil {
		return nil, err
	}

	for _, category := range core.Categories {
		items := *doc.Section(category)
		payload, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		if _, err := g.store.SaveDigest(core.Digest{
			Date:     date,
			Section:  category,
			Markdown: render.Section(date, category, items),
			JSON:     string(payload),
		}); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (g *Generator) persistMetrics(items []core.Item, breakdowns []core.ScoreBreakdown, admitted []core.DigestItem) error {
	summaries := make(map[string]string, len(admitted))
	for _, di := range admitted {
		summaries[di.Item.ID] = di.Summary
	}

	computed := g.now().UTC()
	metrics := make([]core.Metric, len(items))
	for i, item := range items {
		b := breakdowns[i]
		metrics[i] = core.Metric{
			ItemID:     item.ID,
			Score:      b.Total,
			Authority:  b.Authority,
			Recency:    b.Recency,
			Popularity: b.Popularity,
			Relevance:  b.Relevance,
			DupPenalty: b.DupPenalty,
			ClusterID:  item.ClusterID,
			Summary:    summaries[item.ID],
			ComputedAt: computed,
		}
	}
	return g.store.UpsertMetrics(metrics)
}

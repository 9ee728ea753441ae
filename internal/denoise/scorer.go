package denoise

import (
	"math"
	"regexp"
	"strings"
	"time"

	"ainews/internal/config"
	"ainews/internal/core"
)

// Metadata keys probed for a popularity signal when the source does not
// name one, in priority order.
var popularityKeys = []string{"points", "score", "stars", "likes_count", "likes"}

const (
	recencyHalfDays  = 7.0
	unknownAgeDays   = 30.0
	relevanceHits    = 3.0
	relevanceBodyLen = 1000
)

// Scorer computes the weighted composite score of each item in a batch.
// The reference time is fixed at construction so every item in a run is
// scored against the same clock.
type Scorer struct {
	weights  config.Weights
	keywords []*regexp.Regexp
	sources  map[string]core.SourceConfig
	now      time.Time
}

// NewScorer builds a scorer. keywords drive the relevance factor; sources
// supply per-source authority and the popularity metadata key.
func NewScorer(weights config.Weights, keywords []string, sources map[string]core.SourceConfig, now time.Time) *Scorer {
	compiled := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		compiled = append(compiled, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return &Scorer{weights: weights, keywords: compiled, sources: sources, now: now}
}

// Score returns one breakdown per item, index-aligned with the input.
// Popularity is normalized against the largest raw value seen for the
// same source within this batch.
func (s *Scorer) Score(items []core.Item) []core.ScoreBreakdown {
	maxPop := map[string]float64{}
	for _, item := range items {
		if raw := s.rawPopularity(item); raw > maxPop[item.SourceID] {
			maxPop[item.SourceID] = raw
		}
	}

	out := make([]core.ScoreBreakdown, len(items))
	for i, item := range items {
		b := core.ScoreBreakdown{
			Authority:  s.authority(item),
			Recency:    s.recency(item),
			Popularity: normalizePopularity(s.rawPopularity(item), maxPop[item.SourceID]),
			Relevance:  s.relevance(item),
		}
		if !item.IsRepresentative && item.ClusterID != "" {
			b.DupPenalty = 1
		}

		w := s.weights
		b.Total = clip01(w.Authority*b.Authority + w.Recency*b.Recency +
			w.Popularity*b.Popularity + w.Relevance*b.Relevance -
			w.DupPenalty*b.DupPenalty)
		out[i] = b
	}
	return out
}

func (s *Scorer) authority(item core.Item) float64 {
	if cfg, ok := s.sources[item.SourceID]; ok {
		return clip01(cfg.Authority)
	}
	return 0.5
}

// recency decays exponentially with a 7-day scale; items without a publish
// date are treated as 30 days old.
func (s *Scorer) recency(item core.Item) float64 {
	days := unknownAgeDays
	if !item.PublishedAt.IsZero() {
		days = s.now.Sub(item.PublishedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
	}
	return math.Exp(-days / recencyHalfDays)
}

func (s *Scorer) rawPopularity(item core.Item) float64 {
	if cfg, ok := s.sources[item.SourceID]; ok && cfg.PopularityKey != "" {
		if v, ok := item.Metadata[cfg.PopularityKey].(float64); ok {
			return math.Max(v, 0)
		}
	}
	for _, key := range popularityKeys {
		if v, ok := item.Metadata[key].(float64); ok {
			return math.Max(v, 0)
		}
	}
	return 0
}

// normalizePopularity scales raw popularity against the source's batch
// maximum on a log curve. A batch max under 1 means nothing in the batch
// has meaningful popularity, so everything scores zero.
func normalizePopularity(raw, batchMax float64) float64 {
	if raw <= 0 || batchMax < 1 {
		return 0
	}
	return clip01(math.Log1p(raw) / math.Log1p(batchMax))
}

// relevance counts keyword hits over the title and the first 1000 chars of
// content, saturating at 3 hits.
func (s *Scorer) relevance(item core.Item) float64 {
	if len(s.keywords) == 0 {
		return 0
	}
	text := item.Title + " " + truncateRunes(item.Content, relevanceBodyLen)
	hits := 0
	for _, re := range s.keywords {
		hits += len(re.FindAllStringIndex(text, -1))
		if float64(hits) >= relevanceHits {
			return 1
		}
	}
	return float64(hits) / relevanceHits
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clip01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

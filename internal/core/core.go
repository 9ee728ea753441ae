// Package core defines the data model shared across the ingest and digest pipelines.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// Category values for sources and items.
const (
	CategoryNews  = "news"
	CategoryTips  = "tips"
	CategoryPaper = "paper"
)

// Categories lists the known digest sections in presentation order.
var Categories = []string{CategoryNews, CategoryTips, CategoryPaper}

// SourceConfig is the per-source configuration loaded from config.yaml.
type SourceConfig struct {
	ID            string            `mapstructure:"id" json:"id"`
	Type          string            `mapstructure:"type" json:"type"` // rss | api | rss_or_scrape | scrape
	URL           string            `mapstructure:"url" json:"url"`
	Params        map[string]string `mapstructure:"params" json:"params,omitempty"`
	Headers       map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	Category      string            `mapstructure:"category" json:"category"` // news | tips | paper
	Lang          string            `mapstructure:"lang" json:"lang"`
	Authority     float64           `mapstructure:"authority" json:"authority"`
	RefreshHours  int               `mapstructure:"refresh_hours" json:"refresh_hours,omitempty"`
	PopularityKey string            `mapstructure:"popularity_key" json:"popularity_key,omitempty"`
	FetchContent  bool              `mapstructure:"fetch_content" json:"fetch_content,omitempty"`
}

// Source is a configured feed plus its runtime fetch status.
// Created from configuration; status fields are mutated by the orchestrator only.
type Source struct {
	ID          string       `json:"id"`
	Config      SourceConfig `json:"config"`
	LastFetchAt time.Time    `json:"last_fetch_at"` // zero when never fetched
	LastError   string       `json:"last_error"`
	ErrorCount  int          `json:"error_count"`
	Enabled     bool         `json:"enabled"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SourceFromConfig builds an enabled Source from a config entry.
func SourceFromConfig(cfg SourceConfig) Source {
	return Source{ID: cfg.ID, Config: cfg, Enabled: true}
}

// RawItem is the uniform shape every connector produces.
// URL is required; everything else is best-effort.
type RawItem struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Author      string         `json:"author"`
	PublishedAt string         `json:"published_at"` // ISO-8601 or any parseable date string
	Metadata    map[string]any `json:"metadata"`
	ExternalID  string         `json:"external_id"`
}

// Item is a single normalized piece of content. Immutable after insert.
type Item struct {
	ID           string         `json:"id"` // sha256(source_id:url)[:16]
	SourceID     string         `json:"source_id"`
	ExternalID   string         `json:"external_id,omitempty"`
	URL          string         `json:"url"`
	URLCanonical string         `json:"url_canonical"`
	Title        string         `json:"title"`
	Content      string         `json:"content,omitempty"`
	Author       string         `json:"author,omitempty"`
	PublishedAt  time.Time      `json:"published_at"`
	IngestedAt   time.Time      `json:"ingested_at"`
	Category     string         `json:"category"`
	Language     string         `json:"language"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	SnapshotPath string         `json:"snapshot_path,omitempty"`
	FetchBatchID string         `json:"fetch_batch_id,omitempty"`

	// Populated in memory by the dedup clusterer; persisted on metrics, not items.
	ClusterID        string `json:"cluster_id,omitempty"`
	IsRepresentative bool   `json:"is_representative,omitempty"`
}

// MakeItemID derives the content-addressed item identifier: the first
// 16 hex chars of SHA-256 over "source_id:url".
func MakeItemID(sourceID, rawURL string) string {
	sum := sha256.Sum256([]byte(sourceID + ":" + rawURL))
	return hex.EncodeToString(sum[:])[:16]
}

// trackingParams are query parameters stripped during URL canonicalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"ref":          true,
	"source":       true,
	"fbclid":       true,
	"gclid":        true,
}

// CanonicalURL normalizes a URL for cross-source deduplication: lowercase
// scheme and host, trailing host dot stripped, fragment dropped, trailing
// slashes collapsed, tracking query params removed, remaining params
// re-encoded in sorted key order. On parse failure it falls back to the
// lowercase trimmed input. The orchestrator and the dedup clusterer must
// both go through this function or the url_canonical uniqueness invariant
// breaks.
func CanonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimSuffix(strings.ToLower(u.Host), ".")
	u.Fragment = ""
	u.RawFragment = ""

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path
	u.RawPath = ""

	if u.RawQuery != "" {
		if q, qerr := url.ParseQuery(u.RawQuery); qerr == nil {
			for key := range q {
				if trackingParams[strings.ToLower(key)] {
					q.Del(key)
				}
			}
			u.RawQuery = q.Encode() // sorted by key
		}
	}

	return u.String()
}

// Metric is the explainable scoring record for one item, one row per digest run.
type Metric struct {
	ItemID     string    `json:"item_id"`
	Score      float64   `json:"score"`
	Authority  float64   `json:"authority"`
	Recency    float64   `json:"recency"`
	Popularity float64   `json:"popularity"`
	Relevance  float64   `json:"relevance"`
	DupPenalty float64   `json:"dup_penalty"`
	ClusterID  string    `json:"cluster_id,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// Digest is one persisted digest section: a (date, section) row.
type Digest struct {
	ID          int64     `json:"id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Section     string    `json:"section"`
	Markdown    string    `json:"content_markdown"`
	JSON        string    `json:"content_json"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ScoreBreakdown is the per-factor score of an item, all components in [0,1].
type ScoreBreakdown struct {
	Total      float64 `json:"total"`
	Authority  float64 `json:"authority"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
	Relevance  float64 `json:"relevance"`
	DupPenalty float64 `json:"dup_penalty"`
}

// DigestItem pairs an admitted item with its score and summary.
type DigestItem struct {
	Item    Item           `json:"item"`
	Score   ScoreBreakdown `json:"score"`
	Summary string         `json:"summary"`
}

// DigestDoc is the in-memory daily digest artifact, grouped by category.
type DigestDoc struct {
	Date   string       `json:"date"`
	News   []DigestItem `json:"news"`
	Tips   []DigestItem `json:"tips"`
	Papers []DigestItem `json:"papers"`
}

// TotalItems returns the number of items across all sections.
func (d *DigestDoc) TotalItems() int {
	return len(d.News) + len(d.Tips) + len(d.Papers)
}

// Section returns the slice for a category; unknown categories map to news.
func (d *DigestDoc) Section(category string) *[]DigestItem {
	switch category {
	case CategoryTips:
		return &d.Tips
	case CategoryPaper:
		return &d.Papers
	default:
		return &d.News
	}
}

// IngestResult carries per-source counters from one ingest run.
type IngestResult struct {
	SourceID     string        `json:"source_id"`
	Fetched      int           `json:"fetched"`
	Inserted     int           `json:"inserted"`
	Duplicates   int           `json:"duplicates"`
	Errors       int           `json:"errors"`
	Duration     time.Duration `json:"duration"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Success reports whether the source completed without a fatal error.
func (r IngestResult) Success() bool { return r.ErrorMessage == "" }

// IngestSummary aggregates all per-source results from one ingest call.
type IngestSummary struct {
	Results         []IngestResult `json:"results"`
	TotalFetched    int            `json:"total_fetched"`
	TotalInserted   int            `json:"total_inserted"`
	TotalDuplicates int            `json:"total_duplicates"`
	TotalErrors     int            `json:"total_errors"`
	Duration        time.Duration  `json:"duration"`
}

// Add folds a per-source result into the summary totals.
func (s *IngestSummary) Add(r IngestResult) {
	s.Results = append(s.Results, r)
	s.TotalFetched += r.Fetched
	s.TotalInserted += r.Inserted
	s.TotalDuplicates += r.Duplicates
	s.TotalErrors += r.Errors
}

// timeFormats are the date layouts accepted from feeds, most common first.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a feed timestamp best-effort. Returns the zero time
// when the value is empty or matches no known layout.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

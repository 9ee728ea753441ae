package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ainews/internal/config"
	"ainews/internal/connectors"
	"ainews/internal/core"
	"ainews/internal/fetch"
	"ainews/internal/logger"
	"ainews/internal/store"
)

// Orchestrator runs the ingest phase: it syncs configured sources into the
// store, fetches every due source concurrently, and persists the
// normalized batch. Cross-source URL dedup happens at insert time through
// the url_canonical unique constraint.
type Orchestrator struct {
	store        *store.Store
	cfg          *config.Config
	newConnector func(core.SourceConfig) connectors.Connector
	snapshots    *SnapshotManager
	now          func() time.Time
	onlySource   string
}

// New builds an orchestrator with the production connector factory.
func New(st *store.Store, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:        st,
		cfg:          cfg,
		newConnector: connectors.New,
		snapshots:    NewSnapshotManager(cfg.Snapshots.Dir),
		now:          time.Now,
	}
}

// OnlySource restricts the next Run to a single source ID. An empty ID
// restores the default of running every enabled source.
func (o *Orchestrator) OnlySource(id string) {
	o.onlySource = id
}

// Run executes one ingest pass over all enabled sources. A failing source
// never aborts the run; its error lands in the summary and on the source's
// stored status. Every item inserted by this pass shares one fetch batch ID.
func (o *Orchestrator) Run(ctx context.Context) (*core.IngestSummary, error) {
	start := o.now()
	batchID := uuid.NewString()

	if err := o.syncSources(); err != nil {
		return nil, err
	}
	sources, err := o.store.ListEnabledSources()
	if err != nil {
		return nil, err
	}

	logger.Info("Starting ingest", "sources", len(sources), "batch_id", batchID)

	maxConcurrent := o.cfg.Performance.MaxConcurrentSources
	if maxConcurrent < 1 {
		maxConcurrent = 10
	}
	sem := make(chan struct{}, maxConcurrent)

	summary := &core.IngestSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, src := range sources {
		if o.onlySource != "" && src.ID != o.onlySource {
			continue
		}
		if o.skipFresh(src, start) {
			logger.Debug("Source fresh, skipping", "source", src.ID)
			continue
		}

		wg.Add(1)
		go func(src core.Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.Performance.RequestTimeout())
			defer cancel()

			result := o.ingestSource(fetchCtx, src, batchID)

			mu.Lock()
			summary.Add(result)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	summary.Duration = time.Since(start)
	logger.Info("Ingest complete",
		"fetched", summary.TotalFetched,
		"inserted", summary.TotalInserted,
		"duplicates", summary.TotalDuplicates,
		"errors", summary.TotalErrors,
		"duration", summary.Duration.Round(time.Millisecond).String())
	return summary, nil
}

// syncSources upserts configured sources, preserving the stored fetch
// status of sources that already exist.
func (o *Orchestrator) syncSources() error {
	for _, cfg := range o.cfg.Sources {
		existing, err := o.store.GetSource(cfg.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			if err := o.store.UpsertSource(core.SourceFromConfig(cfg)); err != nil {
				return err
			}
			continue
		}
		existing.Config = cfg
		if err := o.store.UpsertSource(*existing); err != nil {
			return err
		}
	}
	return nil
}

// skipFresh reports whether a source was fetched recently enough that its
// refresh interval has not elapsed.
func (o *Orchestrator) skipFresh(src core.Source, now time.Time) bool {
	if src.Config.RefreshHours <= 0 || src.LastFetchAt.IsZero() {
		return false
	}
	return now.Sub(src.LastFetchAt) < time.Duration(src.Config.RefreshHours)*time.Hour
}

func (o *Orchestrator) ingestSource(ctx context.Context, src core.Source, batchID string) core.IngestResult {
	start := o.now()
	result := core.IngestResult{SourceID: src.ID}

	raw, err := o.newConnector(src.Config).Fetch(ctx, src)
	if err != nil {
		logger.Error("Source fetch failed", err, "source", src.ID)
		result.Errors = 1
		result.ErrorMessage = err.Error()
		result.Duration = o.now().Sub(start)
		if serr := o.store.UpdateSourceStatus(src.ID, o.now(), err.Error(), true); serr != nil {
			logger.Error("Failed to record source error", serr, "source", src.ID)
		}
		return result
	}
	result.Fetched = len(raw)

	items := o.normalize(src, raw, batchID)
	if src.Config.FetchContent {
		o.fetchFullContent(ctx, src, items)
	}
	o.snapshotItems(src, items)

	inserted, err := o.store.BatchInsertItems(items)
	if err != nil {
		logger.Error("Batch insert failed", err, "source", src.ID)
		result.Errors = 1
		result.ErrorMessage = err.Error()
		result.Duration = o.now().Sub(start)
		if serr := o.store.UpdateSourceStatus(src.ID, o.now(), err.Error(), true); serr != nil {
			logger.Error("Failed to record source error", serr, "source", src.ID)
		}
		return result
	}

	result.Inserted = inserted
	result.Duplicates = len(items) - inserted
	result.Duration = o.now().Sub(start)

	if err := o.store.UpdateSourceStatus(src.ID, o.now(), "", false); err != nil {
		logger.Error("Failed to record source success", err, "source", src.ID)
	}

	logger.Info("Source ingested", "source", src.ID,
		"fetched", result.Fetched, "inserted", result.Inserted,
		"duplicates", result.Duplicates)
	return result
}

// normalize converts raw connector output to storable items, dropping
// URL-less entries and collapsing canonical-URL duplicates within the
// source's own batch (first occurrence wins). An unparseable publish
// date falls back to the ingest time.
func (o *Orchestrator) normalize(src core.Source, raw []core.RawItem, batchID string) []core.Item {
	category := src.Config.Category
	if category == "" {
		category = core.CategoryNews
	}
	language := src.Config.Lang
	if language == "" {
		language = "en"
	}

	ingested := o.now().UTC()
	seen := map[string]bool{}
	items := make([]core.Item, 0, len(raw))

	for _, r := range raw {
		if r.URL == "" {
			continue
		}
		canonical := core.CanonicalURL(r.URL)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true

		published := core.ParseTime(r.PublishedAt)
		if published.IsZero() {
			published = ingested
		}

		items = append(items, core.Item{
			ID:           core.MakeItemID(src.ID, r.URL),
			SourceID:     src.ID,
			ExternalID:   r.ExternalID,
			URL:          r.URL,
			URLCanonical: canonical,
			Title:        r.Title,
			Content:      r.Content,
			Author:       r.Author,
			PublishedAt:  published,
			IngestedAt:   ingested,
			Category:     category,
			Language:     language,
			Metadata:     r.Metadata,
			FetchBatchID: batchID,
		})
	}
	return items
}

// fetchFullContent downloads article pages for items whose feed entry had
// no body, snapshotting the raw page HTML. Failures are logged and the
// teaser-less item is kept as-is.
func (o *Orchestrator) fetchFullContent(ctx context.Context, src core.Source, items []core.Item) {
	for i := range items {
		if items[i].Content != "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		res, err := fetch.Article(ctx, items[i].URL)
		if err != nil {
			logger.Debug("Article fetch failed", "source", src.ID, "url", items[i].URL, "error", err.Error())
			continue
		}
		items[i].Content = res.Text

		path, err := o.snapshots.Save(src.ID, items[i].URL, res.HTML, o.now())
		if err != nil {
			logger.Warn("Snapshot write failed", "source", src.ID, "error", err.Error())
			continue
		}
		items[i].SnapshotPath = path
	}
}

// snapshotItems writes a snapshot for every item carrying content, so
// feed-provided bodies are preserved alongside fetched pages. Items
// already snapshotted by fetchFullContent keep their page snapshot.
func (o *Orchestrator) snapshotItems(src core.Source, items []core.Item) {
	for i := range items {
		if items[i].Content == "" || items[i].SnapshotPath != "" {
			continue
		}
		path, err := o.snapshots.Save(src.ID, items[i].URL, []byte(items[i].Content), o.now())
		if err != nil {
			logger.Warn("Snapshot write failed", "source", src.ID, "error", err.Error())
			continue
		}
		items[i].SnapshotPath = path
	}
}

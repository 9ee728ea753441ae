// Package store implements the embedded SQLite storage engine: schema
// migrations, batched writes behind a single writer lock, and FTS5 search.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ainews/internal/core"
	"ainews/internal/logger"
)

const (
	defaultBatchSize = 1000
	defaultCacheMB   = 64
)

// QueryError wraps statement-level failures: bad FTS MATCH syntax,
// constraint violations, scan errors.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query %s: %v", e.Op, e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// StorageError wraps engine-level failures: disk full, failed commits,
// integrity problems. Fatal for the current run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Store is the single embedded database. Writes are serialized through mu;
// reads run concurrently under WAL and never take the lock.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // write token: one logical writer at a time
}

// New opens (creating if needed) the database at path, configures WAL and
// pragmas, and applies pending migrations. cacheMB <= 0 selects the 64 MiB
// default.
func New(path string, cacheMB int) (*Store, error) {
	if cacheMB <= 0 {
		cacheMB = defaultCacheMB
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StorageError{Op: "mkdir", Err: err}
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_cache_size=-%d",
		path, cacheMB*1024,
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if _, err := db.Exec("PRAGMA temp_store = MEMORY"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "pragma", Err: err}
	}

	if _, err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Database initialized", "path", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Sources ---

// UpsertSource inserts or replaces a source on its primary key, preserving
// the enabled flag and error counters exactly as passed.
func (s *Store) UpsertSource(src core.Source) error {
	cfg, err := json.Marshal(src.Config)
	if err != nil {
		return &QueryError{Op: "upsert source", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO sources (id, config, last_fetch_at, last_error, error_count, enabled)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     config = excluded.config,
		     last_fetch_at = excluded.last_fetch_at,
		     last_error = excluded.last_error,
		     error_count = excluded.error_count,
		     enabled = excluded.enabled`,
		src.ID, string(cfg), nullTime(src.LastFetchAt), nullString(src.LastError),
		src.ErrorCount, boolToInt(src.Enabled),
	)
	if err != nil {
		return &QueryError{Op: "upsert source", Err: err}
	}
	return nil
}

// GetSource returns a source by ID, or nil when absent.
func (s *Store) GetSource(id string) (*core.Source, error) {
	row := s.db.QueryRow(
		`SELECT id, config, last_fetch_at, last_error, error_count, enabled, created_at
		 FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &QueryError{Op: "get source", Err: err}
	}
	return src, nil
}

// ListEnabledSources returns all enabled sources ordered by ID.
func (s *Store) ListEnabledSources() ([]core.Source, error) {
	rows, err := s.db.Query(
		`SELECT id, config, last_fetch_at, last_error, error_count, enabled, created_at
		 FROM sources WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, &QueryError{Op: "list sources", Err: err}
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, &QueryError{Op: "list sources", Err: err}
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSourceStatus records the outcome of a fetch. Success (empty
// lastError) clears error state and sets the fetch time. An error with
// incrementErrors atomically bumps error_count; without it only the error
// string is recorded. A zero lastFetchAt leaves the stored value intact.
func (s *Store) UpdateSourceStatus(id string, lastFetchAt time.Time, lastError string, incrementErrors bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case lastError == "":
		_, err = s.db.Exec(
			`UPDATE sources SET last_fetch_at = ?, last_error = NULL, error_count = 0 WHERE id = ?`,
			nullTime(lastFetchAt), id)
	case incrementErrors:
		_, err = s.db.Exec(
			`UPDATE sources
			 SET last_error = ?, error_count = error_count + 1,
			     last_fetch_at = COALESCE(?, last_fetch_at)
			 WHERE id = ?`,
			lastError, nullTime(lastFetchAt), id)
	default:
		_, err = s.db.Exec(
			`UPDATE sources
			 SET last_error = ?, last_fetch_at = COALESCE(?, last_fetch_at)
			 WHERE id = ?`,
			lastError, nullTime(lastFetchAt), id)
	}
	if err != nil {
		return &QueryError{Op: "update source status", Err: err}
	}
	return nil
}

// --- Items ---

// BatchInsertItems inserts items in chunks of at most 1000 rows inside a
// single transaction, skipping rows that collide on primary key or
// url_canonical. Returns the number of rows actually inserted.
func (s *Store) BatchInsertItems(items []core.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, &StorageError{Op: "begin", Err: err}
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO items
		 (id, source_id, external_id, url, url_canonical, title, content, author,
		  published_at, ingested_at, category, language, metadata, snapshot_path,
		  fetch_batch_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, &QueryError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	inserted := 0
	for start := 0; start < len(items); start += defaultBatchSize {
		end := min(start+defaultBatchSize, len(items))
		for _, item := range items[start:end] {
			meta, merr := marshalMetadata(item.Metadata)
			if merr != nil {
				_ = tx.Rollback()
				return 0, &QueryError{Op: "marshal metadata", Err: merr}
			}
			res, ierr := stmt.Exec(
				item.ID, item.SourceID, nullString(item.ExternalID), item.URL,
				item.URLCanonical, item.Title, nullString(item.Content),
				nullString(item.Author), fmtTime(item.PublishedAt),
				fmtTime(item.IngestedAt), item.Category, item.Language,
				meta, nullString(item.SnapshotPath), nullString(item.FetchBatchID),
			)
			if ierr != nil {
				_ = tx.Rollback()
				return 0, &QueryError{Op: "insert item", Err: ierr}
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit", Err: err}
	}

	logger.Debug("Batch insert", "inserted", inserted, "attempted", len(items))
	return inserted, nil
}

// ItemExists reports whether an item with the given ID is stored.
func (s *Store) ItemExists(id string) (bool, error) {
	return s.exists("SELECT 1 FROM items WHERE id = ?", id)
}

// URLCanonicalExists reports whether any stored item has the canonical URL.
func (s *Store) URLCanonicalExists(urlCanonical string) (bool, error) {
	return s.exists("SELECT 1 FROM items WHERE url_canonical = ?", urlCanonical)
}

func (s *Store) exists(query string, arg string) (bool, error) {
	var one int
	err := s.db.QueryRow(query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &QueryError{Op: "exists", Err: err}
	}
	return true, nil
}

// GetItem returns an item by ID, or nil when absent.
func (s *Store) GetItem(id string) (*core.Item, error) {
	row := s.db.QueryRow(itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &QueryError{Op: "get item", Err: err}
	}
	return item, nil
}

// GetItemsBySource returns items for one source, newest first.
func (s *Store) GetItemsBySource(sourceID string, limit, offset int) ([]core.Item, error) {
	return s.queryItems(
		itemColumns+` FROM items WHERE source_id = ?
		 ORDER BY published_at DESC, id ASC LIMIT ? OFFSET ?`,
		sourceID, limit, offset)
}

// GetItemsByCategory returns items in a category, optionally bounded by a
// publish time, newest first.
func (s *Store) GetItemsByCategory(category string, since time.Time, limit int) ([]core.Item, error) {
	if since.IsZero() {
		return s.queryItems(
			itemColumns+` FROM items WHERE category = ?
			 ORDER BY published_at DESC, id ASC LIMIT ?`,
			category, limit)
	}
	return s.queryItems(
		itemColumns+` FROM items WHERE category = ? AND published_at >= ?
		 ORDER BY published_at DESC, id ASC LIMIT ?`,
		category, fmtTime(since), limit)
}

// GetItemsForDate returns items published or ingested on the given
// YYYY-MM-DD date.
func (s *Store) GetItemsForDate(date string) ([]core.Item, error) {
	return s.queryItems(
		itemColumns+` FROM items
		 WHERE substr(published_at, 1, 10) = ? OR substr(ingested_at, 1, 10) = ?
		 ORDER BY published_at DESC, id ASC`,
		date, date)
}

// CountItems counts all items, or the items of one source when sourceID is
// non-empty.
func (s *Store) CountItems(sourceID string) (int, error) {
	var n int
	var err error
	if sourceID == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM items WHERE source_id = ?", sourceID).Scan(&n)
	}
	if err != nil {
		return 0, &QueryError{Op: "count items", Err: err}
	}
	return n, nil
}

// --- Search ---

// SearchFilters narrows a full-text search.
type SearchFilters struct {
	Category string
	Language string
	SourceID string
	Since    time.Time
	Limit    int
	Offset   int
}

// Search runs an FTS5 MATCH over title and content, ranked by BM25 with
// column weights title=1.0, content=0.5 (ascending rank = most relevant
// first). Bad MATCH syntax surfaces as a QueryError.
func (s *Store) Search(query string, f SearchFilters) ([]core.Item, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	conditions := []string{"items_fts MATCH ?"}
	args := []any{query}

	if f.Category != "" {
		conditions = append(conditions, "i.category = ?")
		args = append(args, f.Category)
	}
	if f.Language != "" {
		conditions = append(conditions, "i.language = ?")
		args = append(args, f.Language)
	}
	if f.SourceID != "" {
		conditions = append(conditions, "i.source_id = ?")
		args = append(args, f.SourceID)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "i.published_at >= ?")
		args = append(args, fmtTime(f.Since))
	}
	args = append(args, f.Limit, f.Offset)

	sqlText := fmt.Sprintf(
		`SELECT %s, bm25(items_fts, 1.0, 0.5) AS rank
		 FROM items_fts
		 JOIN items i ON i.rowid = items_fts.rowid
		 WHERE %s
		 ORDER BY rank, i.id ASC
		 LIMIT ? OFFSET ?`,
		prefixColumns("i"), strings.Join(conditions, " AND "))

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, &QueryError{Op: "search", Err: err}
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		var rank float64
		item, err := scanItemRank(rows, &rank)
		if err != nil {
			return nil, &QueryError{Op: "search scan", Err: err}
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// SearchCount returns the total number of FTS matches for a query.
func (s *Store) SearchCount(query string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM items_fts WHERE items_fts MATCH ?", query).Scan(&n)
	if err != nil {
		return 0, &QueryError{Op: "search count", Err: err}
	}
	return n, nil
}

// --- Metrics ---

// UpsertMetrics replaces the scoring rows for the given items, one row per
// item_id, inside a single transaction.
func (s *Store) UpsertMetrics(metrics []core.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO metrics
		 (item_id, score, score_authority, score_recency, score_popularity,
		  score_relevance, dup_penalty, cluster_id, summary_json, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return &QueryError{Op: "prepare metrics", Err: err}
	}
	defer stmt.Close()

	for _, m := range metrics {
		var summary any
		if m.Summary != "" {
			payload, merr := json.Marshal(map[string]string{"summary": m.Summary})
			if merr != nil {
				_ = tx.Rollback()
				return &QueryError{Op: "marshal summary", Err: merr}
			}
			summary = string(payload)
		}
		if _, err := stmt.Exec(
			m.ItemID, m.Score, m.Authority, m.Recency, m.Popularity,
			m.Relevance, m.DupPenalty, nullString(m.ClusterID), summary,
			fmtTime(m.ComputedAt),
		); err != nil {
			_ = tx.Rollback()
			return &QueryError{Op: "upsert metric", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}

// TopItemsFilters narrows a GetTopItems query.
type TopItemsFilters struct {
	Category string
	Since    time.Time
	Limit    int
}

// GetTopItems returns items joined to their metrics, highest score first.
func (s *Store) GetTopItems(f TopItemsFilters) ([]core.Item, []core.Metric, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	conditions := []string{"1 = 1"}
	args := []any{}
	if f.Category != "" {
		conditions = append(conditions, "i.category = ?")
		args = append(args, f.Category)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "i.published_at >= ?")
		args = append(args, fmtTime(f.Since))
	}
	args = append(args, f.Limit)

	sqlText := fmt.Sprintf(
		`SELECT %s, m.score, m.score_authority, m.score_recency, m.score_popularity,
		        m.score_relevance, m.dup_penalty, m.cluster_id, m.summary_json, m.computed_at
		 FROM items i
		 JOIN metrics m ON m.item_id = i.id
		 WHERE %s
		 ORDER BY m.score DESC, i.id ASC
		 LIMIT ?`,
		prefixColumns("i"), strings.Join(conditions, " AND "))

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, nil, &QueryError{Op: "top items", Err: err}
	}
	defer rows.Close()

	var items []core.Item
	var metrics []core.Metric
	for rows.Next() {
		item, metric, err := scanItemMetric(rows)
		if err != nil {
			return nil, nil, &QueryError{Op: "top items scan", Err: err}
		}
		items = append(items, *item)
		metrics = append(metrics, *metric)
	}
	return items, metrics, rows.Err()
}

// --- Digests ---

// SaveDigest upserts a digest section on (date, section), refreshing
// generated_at, and returns the row id.
func (s *Store) SaveDigest(d core.Digest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO digests (date, section, content_markdown, content_json)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(date, section) DO UPDATE SET
		     content_markdown = excluded.content_markdown,
		     content_json = excluded.content_json,
		     generated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')`,
		d.Date, d.Section, d.Markdown, d.JSON)
	if err != nil {
		return 0, &QueryError{Op: "save digest", Err: err}
	}

	var id int64
	err = s.db.QueryRow(
		"SELECT id FROM digests WHERE date = ? AND section = ?", d.Date, d.Section,
	).Scan(&id)
	if err != nil {
		return 0, &QueryError{Op: "save digest", Err: err}
	}
	return id, nil
}

// GetDigest returns digest sections for a date, all of them when section
// is empty.
func (s *Store) GetDigest(date, section string) ([]core.Digest, error) {
	var rows *sql.Rows
	var err error
	if section == "" {
		rows, err = s.db.Query(
			`SELECT id, date, section, content_markdown, content_json, generated_at
			 FROM digests WHERE date = ? ORDER BY section`, date)
	} else {
		rows, err = s.db.Query(
			`SELECT id, date, section, content_markdown, content_json, generated_at
			 FROM digests WHERE date = ? AND section = ?`, date, section)
	}
	if err != nil {
		return nil, &QueryError{Op: "get digest", Err: err}
	}
	defer rows.Close()

	var digests []core.Digest
	for rows.Next() {
		var d core.Digest
		var generated string
		if err := rows.Scan(&d.ID, &d.Date, &d.Section, &d.Markdown, &d.JSON, &generated); err != nil {
			return nil, &QueryError{Op: "get digest", Err: err}
		}
		d.GeneratedAt = core.ParseTime(generated)
		digests = append(digests, d)
	}
	return digests, rows.Err()
}

// --- Maintenance ---

// Vacuum reclaims space and defragments the database file.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return &StorageError{Op: "vacuum", Err: err}
	}
	return nil
}

// OptimizeFTS merges FTS5 index segments for faster queries.
func (s *Store) OptimizeFTS() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("INSERT INTO items_fts(items_fts) VALUES('optimize')"); err != nil {
		return &StorageError{Op: "optimize fts", Err: err}
	}
	return nil
}

// IntegrityCheck runs PRAGMA integrity_check and reports whether the
// database is sound.
func (s *Store) IntegrityCheck() (bool, error) {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return false, &StorageError{Op: "integrity check", Err: err}
	}
	return result == "ok", nil
}

// Stats summarizes database contents and size.
type Stats struct {
	TotalItems   int
	TotalSources int
	TotalMetrics int
	TotalDigests int
	ByCategory   map[string]int
	BySource     map[string]int
	SizeBytes    int64
}

// GetStats collects row counts, per-category and per-source breakdowns,
// and the on-disk size.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{ByCategory: map[string]int{}, BySource: map[string]int{}}

	counts := map[string]*int{
		"SELECT COUNT(*) FROM items":   &stats.TotalItems,
		"SELECT COUNT(*) FROM sources": &stats.TotalSources,
		"SELECT COUNT(*) FROM metrics": &stats.TotalMetrics,
		"SELECT COUNT(*) FROM digests": &stats.TotalDigests,
	}
	for query, target := range counts {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, &QueryError{Op: "stats", Err: err}
		}
	}

	if err := s.groupCount("SELECT category, COUNT(*) FROM items GROUP BY category", stats.ByCategory); err != nil {
		return nil, err
	}
	if err := s.groupCount("SELECT source_id, COUNT(*) FROM items GROUP BY source_id", stats.BySource); err != nil {
		return nil, err
	}

	err := s.db.QueryRow(
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
	).Scan(&stats.SizeBytes)
	if err != nil {
		return nil, &QueryError{Op: "stats", Err: err}
	}
	return stats, nil
}

func (s *Store) groupCount(query string, into map[string]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return &QueryError{Op: "stats", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return &QueryError{Op: "stats", Err: err}
		}
		into[key] = n
	}
	return rows.Err()
}

// --- Row scanning helpers ---

const itemColumns = `SELECT id, source_id, external_id, url, url_canonical, title,
	content, author, published_at, ingested_at, category, language, metadata,
	snapshot_path, fetch_batch_id`

func prefixColumns(alias string) string {
	cols := []string{
		"id", "source_id", "external_id", "url", "url_canonical", "title",
		"content", "author", "published_at", "ingested_at", "category",
		"language", "metadata", "snapshot_path", "fetch_batch_id",
	}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*core.Item, error) {
	return scanItemInto(row)
}

func scanItemRank(row rowScanner, rank *float64) (*core.Item, error) {
	return scanItemInto(row, rank)
}

func scanItemInto(row rowScanner, extra ...any) (*core.Item, error) {
	var item core.Item
	var externalID, content, author, metadata, snapshotPath, fetchBatchID sql.NullString
	var published, ingested string

	dest := []any{
		&item.ID, &item.SourceID, &externalID, &item.URL, &item.URLCanonical,
		&item.Title, &content, &author, &published, &ingested, &item.Category,
		&item.Language, &metadata, &snapshotPath, &fetchBatchID,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	item.ExternalID = externalID.String
	item.Content = content.String
	item.Author = author.String
	item.PublishedAt = core.ParseTime(published)
	item.IngestedAt = core.ParseTime(ingested)
	item.SnapshotPath = snapshotPath.String
	item.FetchBatchID = fetchBatchID.String
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &item.Metadata)
	}
	return &item, nil
}

func scanItemMetric(row rowScanner) (*core.Item, *core.Metric, error) {
	var metric core.Metric
	var authority, recency, popularity, relevance, dupPenalty sql.NullFloat64
	var clusterID, summaryJSON, computedAt sql.NullString

	item, err := scanItemInto(row,
		&metric.Score, &authority, &recency, &popularity, &relevance,
		&dupPenalty, &clusterID, &summaryJSON, &computedAt)
	if err != nil {
		return nil, nil, err
	}

	metric.ItemID = item.ID
	metric.Authority = authority.Float64
	metric.Recency = recency.Float64
	metric.Popularity = popularity.Float64
	metric.Relevance = relevance.Float64
	metric.DupPenalty = dupPenalty.Float64
	metric.ClusterID = clusterID.String
	metric.ComputedAt = core.ParseTime(computedAt.String)
	if summaryJSON.Valid && summaryJSON.String != "" {
		var payload map[string]string
		if json.Unmarshal([]byte(summaryJSON.String), &payload) == nil {
			metric.Summary = payload["summary"]
		}
	}
	return item, &metric, nil
}

func scanSource(row rowScanner) (*core.Source, error) {
	var src core.Source
	var cfg string
	var lastFetch, lastError, created sql.NullString
	var enabled int

	if err := row.Scan(&src.ID, &cfg, &lastFetch, &lastError, &src.ErrorCount, &enabled, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &src.Config); err != nil {
		return nil, err
	}
	src.LastFetchAt = core.ParseTime(lastFetch.String)
	src.LastError = lastError.String
	src.Enabled = enabled != 0
	src.CreatedAt = core.ParseTime(created.String)
	return &src, nil
}

func (s *Store) queryItems(query string, args ...any) ([]core.Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &QueryError{Op: "query items", Err: err}
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, &QueryError{Op: "scan item", Err: err}
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// --- Value helpers ---

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalMetadata(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package denoise

import (
	"ainews/internal/core"
	"ainews/internal/logger"
)

// QuotaManager admits items from a score-ordered list under two caps: a
// per-source quota (no single source may flood the digest) and a
// per-category limit. The passes run in sequence, so an item that clears
// its source quota consumes that slot even when the category cap later
// rejects it.
type QuotaManager struct {
	sourceQuota   func(sourceID string) int
	categoryLimit func(category string) int
}

// NewQuotaManager builds a quota manager from the two lookup functions.
func NewQuotaManager(sourceQuota, categoryLimit func(string) int) *QuotaManager {
	return &QuotaManager{sourceQuota: sourceQuota, categoryLimit: categoryLimit}
}

// Apply walks items in their given order (highest score first) and
// returns the admitted subset, preserving order.
func (q *QuotaManager) Apply(items []core.DigestItem) []core.DigestItem {
	perSource := map[string]int{}
	quotaPass := make([]core.DigestItem, 0, len(items))
	for _, di := range items {
		sourceID := di.Item.SourceID
		if perSource[sourceID] >= q.sourceQuota(sourceID) {
			continue
		}
		perSource[sourceID]++
		quotaPass = append(quotaPass, di)
	}

	perCategory := map[string]int{}
	admitted := make([]core.DigestItem, 0, len(quotaPass))
	for _, di := range quotaPass {
		category := di.Item.Category
		if perCategory[category] >= q.categoryLimit(category) {
			continue
		}
		perCategory[category]++
		admitted = append(admitted, di)
	}

	if len(admitted) < len(items) {
		logger.Debug("Quota admission", "candidates", len(items), "admitted", len(admitted))
	}
	return admitted
}

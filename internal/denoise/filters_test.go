package denoise

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ainews/internal/core"
)

func TestHardFilterKeywordExclusion(t *testing.T) {
	f := NewHardFilter([]string{"Sponsored", "webinar"}, nil, nil)

	items := []core.Item{
		{ID: "1", Title: "A real story about compilers"},
		{ID: "2", Title: "[SPONSORED] Try our new platform"},
		{ID: "3", Title: "Join our webinar on Thursday"},
	}

	kept, dropped := f.Apply(items)
	assert.Equal(t, 2, dropped)
	assert.Len(t, kept, 1)
	assert.Equal(t, "1", kept[0].ID)
}

func TestHardFilterKeywordMatchesContent(t *testing.T) {
	f := NewHardFilter([]string{"crypto"}, nil, nil)

	items := []core.Item{
		{ID: "1", Title: "Clean headline", Content: "A writeup covering crypto scams and how to spot them."},
		{ID: "2", Title: "Another clean headline", Content: "Nothing objectionable here."},
	}

	kept, dropped := f.Apply(items)
	assert.Equal(t, 1, dropped)
	assert.Len(t, kept, 1)
	assert.Equal(t, "2", kept[0].ID)
}

func TestHardFilterPopularityFloor(t *testing.T) {
	f := NewHardFilter(nil, nil, map[string]map[string]float64{
		"hn": {"points": 50},
	})

	items := []core.Item{
		{ID: "1", SourceID: "hn", Title: "Popular", Metadata: map[string]any{"points": 120.0}},
		{ID: "2", SourceID: "hn", Title: "Unpopular", Metadata: map[string]any{"points": 3.0}},
		{ID: "3", SourceID: "hn", Title: "No metadata at all"},
		{ID: "4", SourceID: "blog", Title: "Other source, no floor"},
	}

	kept, dropped := f.Apply(items)
	assert.Equal(t, 2, dropped)
	assert.Len(t, kept, 2)
	assert.Equal(t, "1", kept[0].ID)
	assert.Equal(t, "4", kept[1].ID)
}

func TestHardFilterLanguageGate(t *testing.T) {
	f := NewHardFilter(nil, []string{"en"}, nil)

	items := []core.Item{
		{ID: "1", Title: "English item", Language: "en"},
		{ID: "2", Title: "German item", Language: "de"},
		{ID: "3", Title: "No language set"},
	}

	kept, dropped := f.Apply(items)
	assert.Equal(t, 1, dropped)
	assert.Len(t, kept, 2)
	assert.Equal(t, "1", kept[0].ID)
	assert.Equal(t, "3", kept[1].ID)
}

func TestHardFilterNoRules(t *testing.T) {
	f := NewHardFilter(nil, nil, nil)
	items := []core.Item{{ID: "1", Title: "Anything goes"}}
	kept, dropped := f.Apply(items)
	assert.Zero(t, dropped)
	assert.Len(t, kept, 1)
}

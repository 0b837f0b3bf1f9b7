package optimizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindow() *WindowProcessor {
	return NewWindowProcessor(DefaultWindowConfig(), NewRegistry(DefaultProcessorConfig()))
}

func bulkyItem(id string, score float64) Item {
	return Item{
		ID: id, Name: "item-" + id, Type: "function",
		Code:     strings.Repeat("x := compute(y)\n", 50),
		Metadata: map[string]interface{}{MetaRelevanceScore: score},
	}
}

func TestWindowUnderBudgetIsNoOp(t *testing.T) {
	w := newTestWindow()
	data := Data{Items: []Item{{ID: "1", Name: "Tiny", Type: "function"}}}

	outcome := w.Process(data, Query{}, Options{TargetTokens: 100000})

	assert.Len(t, outcome.Data.Items, 1)
	assert.Empty(t, outcome.StrategiesApplied)
	assert.Empty(t, outcome.Warnings)
}

func TestWindowDisabledPassesThroughWithWarning(t *testing.T) {
	cfg := DefaultWindowConfig()
	cfg.Enabled = false
	w := NewWindowProcessor(cfg, NewRegistry(DefaultProcessorConfig()))

	data := Data{Items: []Item{bulkyItem("1", 1)}}
	outcome := w.Process(data, Query{}, Options{TargetTokens: 1})

	assert.Len(t, outcome.Data.Items, 1)
	require.Len(t, outcome.Warnings, 1)
	assert.Contains(t, outcome.Warnings[0], "disabled")
}

func TestWindowNonPositiveTargetWarns(t *testing.T) {
	w := newTestWindow()
	data := Data{Items: []Item{bulkyItem("1", 1)}}

	for _, target := range []int{0, -5} {
		outcome := w.Process(data, Query{}, Options{TargetTokens: target})

		assert.Len(t, outcome.Data.Items, 1)
		assert.Empty(t, outcome.StrategiesApplied)
		require.Len(t, outcome.Warnings, 1, "target %d", target)
		assert.Contains(t, outcome.Warnings[0], "token target")
	}
}

func TestWindowBudgetMonotonicity(t *testing.T) {
	w := newTestWindow()
	data := Data{Items: []Item{
		bulkyItem("1", 5), bulkyItem("2", 4), bulkyItem("3", 3),
		bulkyItem("4", 2), bulkyItem("5", 1),
	}}

	before := w.EstimateContextTokens(data)
	outcome := w.Process(data, Query{}, Options{TargetTokens: before / 4})
	after := w.EstimateContextTokens(outcome.Data)

	assert.LessOrEqual(t, after, before, "window processing must never grow the estimate")
	assert.NotEmpty(t, outcome.StrategiesApplied)
}

func TestWindowProtectedItemSurvivesTinyBudget(t *testing.T) {
	w := newTestWindow()
	data := Data{Items: []Item{
		bulkyItem("protected", 0.1),
		bulkyItem("big1", 99),
		bulkyItem("big2", 98),
	}}

	outcome := w.Process(data, Query{ComponentID: "protected"}, Options{TargetTokens: 1})

	found := false
	for _, item := range outcome.Data.Items {
		if item.ID == "protected" {
			found = true
		}
	}
	assert.True(t, found, "protected item must survive down to target=1")
}

func TestWindowMinItemsFloor(t *testing.T) {
	w := newTestWindow()

	// 5 items each far over a target of 10 tokens; the floor keeps exactly 1,
	// the highest priority one.
	data := Data{Items: []Item{
		bulkyItem("1", 1), bulkyItem("2", 2), bulkyItem("3", 50),
		bulkyItem("4", 4), bulkyItem("5", 5),
	}}

	outcome := w.Process(data, Query{}, Options{TargetTokens: 10})

	require.Len(t, outcome.Data.Items, 1)
	assert.Equal(t, "3", outcome.Data.Items[0].ID, "the highest-priority item is kept")
	require.NotEmpty(t, outcome.Warnings, "exceeding the target on the floor is a warning, not an error")
	assert.Contains(t, outcome.Warnings[0], "minimum")
}

func TestWindowRelationshipValidity(t *testing.T) {
	w := newTestWindow()
	data := Data{
		Items: []Item{
			bulkyItem("1", 5), bulkyItem("2", 4), bulkyItem("3", 1),
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "1", TargetID: "2", Type: "calls"},
			{ID: "r2", SourceID: "2", TargetID: "3", Type: "calls"},
			{ID: "r3", SourceID: "3", TargetID: "1", Type: "calls"},
		},
	}

	before := w.EstimateContextTokens(data)
	outcome := w.Process(data, Query{}, Options{TargetTokens: before / 3})

	kept := make(map[string]bool)
	for _, item := range outcome.Data.Items {
		kept[item.ID] = true
	}
	for _, r := range outcome.Data.Relationships {
		assert.True(t, kept[r.SourceID], "relationship %s has dangling source", r.ID)
		assert.True(t, kept[r.TargetID], "relationship %s has dangling target", r.ID)
	}
}

func TestWindowZeroItems(t *testing.T) {
	w := newTestWindow()

	outcome := w.Process(Data{}, Query{}, Options{TargetTokens: 100})

	assert.Empty(t, outcome.Data.Items)
	assert.Empty(t, outcome.Data.Relationships)
	assert.Zero(t, w.EstimateContextTokens(outcome.Data))
}

func TestWindowIncludeSourceCodeDoublesPriority(t *testing.T) {
	w := newTestWindow()

	// The prose item scores slightly higher, so without the code boost it
	// would win the single slot. IncludeSourceCode doubles the code-bearing
	// item's priority in the final pass, flipping the outcome.
	coded := bulkyItem("coded", 5)
	prose := Item{
		ID: "prose", Name: "item-prose", Type: "document",
		Content:  strings.Repeat("words and more words ", 120),
		Metadata: map[string]interface{}{MetaRelevanceScore: 5.5},
	}
	data := Data{Items: []Item{prose, coded}}

	without := w.removeLowestPriorityItems(data, Query{}, Options{TargetTokens: 10}, 10)
	require.Len(t, without.Items, 1)
	assert.Equal(t, "prose", without.Items[0].ID)

	with := w.removeLowestPriorityItems(data, Query{}, Options{TargetTokens: 10, IncludeSourceCode: true}, 10)
	require.Len(t, with.Items, 1)
	assert.Equal(t, "coded", with.Items[0].ID)
}

func TestEstimateContextTokensAddsOverhead(t *testing.T) {
	w := newTestWindow()
	item := bulkyItem("1", 0)
	raw := w.EstimateItemTokens(item)

	total := w.EstimateContextTokens(Data{Items: []Item{item}})
	assert.Equal(t, int(float64(raw)*serializationOverhead), total)
}

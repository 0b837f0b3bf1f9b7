package optimizer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineFixture() Data {
	return Data{
		Items: []Item{
			{ID: "1", Name: "UserService", Type: "class",
				Code: strings.Repeat("func (s *UserService) Get() {}\n", 30),
				Metadata: map[string]interface{}{
					"documentation": "Primary service for user lookups and session handling.",
				}},
			{ID: "2", Name: "UserController", Type: "class",
				Code: strings.Repeat("func (c *UserController) Handle() {}\n", 30)},
			{ID: "3", Name: "AdminService", Type: "class",
				Code: strings.Repeat("func (a *AdminService) Audit() {}\n", 30)},
			{ID: "4", Name: "README", Type: "document",
				Content: strings.Repeat("General project documentation paragraph. ", 40)},
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "2", TargetID: "1", Type: "calls"},
			{ID: "r2", SourceID: "3", TargetID: "1", Type: "calls"},
		},
	}
}

func TestOptimizeEndToEnd(t *testing.T) {
	opt := New(DefaultConfig())
	data := pipelineFixture()

	result, err := opt.Optimize(context.Background(), data, Query{Query: "UserService"}, Options{
		TargetTokens:         200,
		IncludeRelationships: true,
	})
	require.NoError(t, err)

	assert.Greater(t, result.OriginalTokens, 0)
	assert.LessOrEqual(t, result.FinalTokens, result.OriginalTokens)
	assert.Greater(t, result.ProcessingTime.Nanoseconds(), int64(0))

	// The exact-match item must lead the output.
	require.NotEmpty(t, result.Data.Items)
	assert.Equal(t, "1", result.Data.Items[0].ID)

	// Every stage left its mark on the audit trail.
	steps := strings.Join(result.Data.ProcessingSteps, ",")
	assert.Contains(t, steps, "relevance-scoring")
	assert.Contains(t, steps, "relevance-filtering")
	assert.Contains(t, steps, "window-sizing")

	// Relationship validity holds on the final output.
	kept := make(map[string]bool)
	for _, item := range result.Data.Items {
		kept[item.ID] = true
	}
	for _, r := range result.Data.Relationships {
		assert.True(t, kept[r.SourceID] && kept[r.TargetID],
			"relationship %s references a dropped item", r.ID)
	}
}

func TestOptimizeEmptyInput(t *testing.T) {
	opt := New(DefaultConfig())

	result, err := opt.Optimize(context.Background(), Data{}, Query{}, Options{TargetTokens: 100})
	require.NoError(t, err)

	assert.Empty(t, result.Data.Items)
	assert.NotEmpty(t, result.Warnings, "degenerate input warns instead of failing")
}

func TestOptimizeExcludesRelationshipsWhenDisabled(t *testing.T) {
	opt := New(DefaultConfig())

	result, err := opt.Optimize(context.Background(), pipelineFixture(), Query{Query: "user"}, Options{
		TargetTokens:         100000,
		IncludeRelationships: false,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Data.Relationships)
}

func TestOptimizeCancelledContext(t *testing.T) {
	opt := New(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.Optimize(ctx, pipelineFixture(), Query{}, Options{TargetTokens: 100})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeInvalidProcessorConfigFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processors.CharsPerToken = 99 // outside [1,10]

	opt := New(cfg)
	result, err := opt.Optimize(context.Background(), pipelineFixture(), Query{Query: "user"}, Options{
		TargetTokens: 100000,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Data.Items)
}

func TestSerializeJSONRoundTrip(t *testing.T) {
	data := Data{
		Items: []Item{{ID: "1", Name: "A", Type: "function", FilePath: "a.go",
			Code: "func A() {}", Metadata: map[string]interface{}{"k": "v"}}},
		Relationships: []Relationship{{ID: "r1", SourceID: "1", TargetID: "1", Type: "self"}},
	}

	raw, err := Serialize(data, FormatJSON)
	require.NoError(t, err)

	var decoded Data
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, data.Items[0].ID, decoded.Items[0].ID)
	assert.Equal(t, data.Items[0].Code, decoded.Items[0].Code)
	assert.Equal(t, data.Items[0].FilePath, decoded.Items[0].FilePath)
	assert.Equal(t, data.Relationships[0].Type, decoded.Relationships[0].Type)
}

func TestSerializeMarkdown(t *testing.T) {
	data := Data{
		Items: []Item{{ID: "1", Name: "UserService", Type: "class",
			FilePath: "user.go", Code: "type UserService struct{}"}},
		Relationships: []Relationship{{ID: "r1", SourceID: "1", TargetID: "2", Type: "calls"}},
	}

	out, err := Serialize(data, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, out, "## UserService (class)")
	assert.Contains(t, out, "`user.go`")
	assert.Contains(t, out, "type UserService struct{}")
	assert.Contains(t, out, "-[calls]->")
}

func TestSerializeText(t *testing.T) {
	data := Data{Items: []Item{{ID: "1", Name: "A", Type: "function", Content: "body"}}}

	out, err := Serialize(data, FormatText)
	require.NoError(t, err)
	assert.Contains(t, out, "A (function)")
	assert.Contains(t, out, "body")
}

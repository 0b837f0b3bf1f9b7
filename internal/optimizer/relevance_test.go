package optimizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreOf(t *testing.T, data Data, id string) float64 {
	t.Helper()
	for _, item := range data.Items {
		if item.ID == id {
			return item.RelevanceScore()
		}
	}
	t.Fatalf("item %s not found", id)
	return 0
}

func TestRelevanceExactMatchRanking(t *testing.T) {
	scorer := NewRelevanceScorer(DefaultRelevanceConfig())
	data := Data{Items: []Item{
		{ID: "1", Name: "UserService", Type: "class"},
		{ID: "2", Name: "UserController", Type: "class"},
		{ID: "3", Name: "AdminService", Type: "class"},
	}}

	out := scorer.Process(data, Query{Query: "UserService"})

	s1 := scoreOf(t, out, "1")
	s2 := scoreOf(t, out, "2")
	s3 := scoreOf(t, out, "3")
	assert.GreaterOrEqual(t, s1, s2, "exact match must outrank partial match")
	assert.GreaterOrEqual(t, s2, s3, "name keyword hit must outrank no hit")
	assert.Equal(t, "1", out.Items[0].ID, "items must be sorted by score descending")
}

func TestRelevanceIdempotent(t *testing.T) {
	scorer := NewRelevanceScorer(DefaultRelevanceConfig())
	data := Data{
		Items: []Item{
			{ID: "1", Name: "UserService", Type: "class"},
			{ID: "2", Name: "Helper", Type: "function", Code: "func user() {}"},
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "1", TargetID: "2", Type: "calls"},
		},
	}
	query := Query{Query: "user service lookup"}

	once := scorer.Process(data, query)
	twice := scorer.Process(once, query)

	for _, id := range []string{"1", "2"} {
		assert.Equal(t, scoreOf(t, once, id), scoreOf(t, twice, id),
			"re-scoring must overwrite, not accumulate")
	}
	assert.Equal(t, once.Relationships[0].RelevanceScore(), twice.Relationships[0].RelevanceScore())
}

func TestRelevanceDoesNotMutateInput(t *testing.T) {
	scorer := NewRelevanceScorer(DefaultRelevanceConfig())
	item := Item{ID: "1", Name: "UserService", Type: "class",
		Metadata: map[string]interface{}{"filePath": "user.go"}}
	data := Data{Items: []Item{item}}

	_ = scorer.Process(data, Query{Query: "UserService"})

	if _, ok := item.Metadata[MetaRelevanceScore]; ok {
		t.Error("input item metadata was mutated in place")
	}
	if diff := cmp.Diff(map[string]interface{}{"filePath": "user.go"}, item.Metadata); diff != "" {
		t.Errorf("input metadata changed (-want +got):\n%s", diff)
	}
}

func TestRelevanceRelationshipScoreIsEndpointSum(t *testing.T) {
	scorer := NewRelevanceScorer(DefaultRelevanceConfig())
	data := Data{
		Items: []Item{
			{ID: "1", Name: "UserService", Type: "class"},
			{ID: "2", Name: "Unrelated", Type: "class"},
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "1", TargetID: "2", Type: "calls"},
			{ID: "r2", SourceID: "1", TargetID: "ghost", Type: "calls"},
		},
	}

	out := scorer.Process(data, Query{Query: "UserService"})

	s1 := scoreOf(t, out, "1")
	s2 := scoreOf(t, out, "2")
	var r1, r2 Relationship
	for _, r := range out.Relationships {
		switch r.ID {
		case "r1":
			r1 = r
		case "r2":
			r2 = r
		}
	}
	assert.Equal(t, s1+s2, r1.RelevanceScore())
	assert.Equal(t, s1, r2.RelevanceScore(), "missing endpoint contributes zero")
}

func TestRelevanceEmptyQueryUsesTypeWeights(t *testing.T) {
	cfg := DefaultRelevanceConfig()
	scorer := NewRelevanceScorer(cfg)
	data := Data{Items: []Item{
		{ID: "1", Name: "Anything", Type: "class"},
		{ID: "2", Name: "Other", Type: "unknown-kind"},
	}}

	out := scorer.Process(data, Query{})

	assert.Equal(t, cfg.TypeWeights["class"], scoreOf(t, out, "1"))
	assert.Equal(t, cfg.DefaultTypeWeight, scoreOf(t, out, "2"))
}

func TestRelevanceQueryTextDerivation(t *testing.T) {
	require.Equal(t, "explicit", deriveQueryText(Query{Query: "explicit", ComponentName: "ignored"}))
	require.Equal(t, "UserService class go user.go", deriveQueryText(Query{
		ComponentName: "UserService",
		ComponentType: "class",
		Language:      "go",
		FilePath:      "user.go",
	}))
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{
			name: "drops stopwords and short tokens",
			text: "the user and for it with auth from db",
			max:  10,
			want: []string{"user", "auth"},
		},
		{
			name: "frequency ranks first",
			text: "cache cache cache parser parser token",
			max:  2,
			want: []string{"cache", "parser"},
		},
		{
			name: "punctuation splits",
			text: "user.service-handler (auth)",
			max:  10,
			want: []string{"user", "service", "handler", "auth"},
		},
		{
			name: "empty text",
			text: "",
			max:  10,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractKeywords(tt.text, tt.max)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("extractKeywords mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

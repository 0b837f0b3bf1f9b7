package optimizer

import (
	"sort"
	"strings"

	"codelens/internal/logging"
)

// ============================================================================
// RELEVANCE SCORING
// ============================================================================
// Assigns each item a relevance score from query-term matches and type
// weights, then propagates scores to relationships as the sum of their
// endpoint scores. Scoring overwrites any prior score, so re-running on
// already-scored data is idempotent.

// RelevanceConfig tunes the scoring heuristics.
type RelevanceConfig struct {
	// TypeWeights maps item types to their base score; unknown types get
	// DefaultTypeWeight.
	TypeWeights       map[string]float64 `yaml:"type_weights"`
	DefaultTypeWeight float64            `yaml:"default_type_weight"`

	ExactMatchMultiplier float64 `yaml:"exact_match_multiplier"`
	NameMatchBonus       float64 `yaml:"name_match_bonus"`
	DocMatchBonus        float64 `yaml:"doc_match_bonus"`
	CodeMatchBonus       float64 `yaml:"code_match_bonus"`

	MaxKeywords int `yaml:"max_keywords"`
}

// DefaultRelevanceConfig returns the calibrated scoring defaults.
func DefaultRelevanceConfig() RelevanceConfig {
	return RelevanceConfig{
		TypeWeights: map[string]float64{
			"function":  8.0,
			"method":    8.0,
			"class":     9.0,
			"struct":    9.0,
			"interface": 9.0,
			"component": 7.0,
			"module":    6.0,
			"file":      4.0,
			"document":  5.0,
		},
		DefaultTypeWeight:    5.0,
		ExactMatchMultiplier: 5.0,
		NameMatchBonus:       2.0,
		DocMatchBonus:        1.0,
		CodeMatchBonus:       0.1,
		MaxKeywords:          10,
	}
}

// RelevanceScorer computes relevance scores over items and relationships.
type RelevanceScorer struct {
	cfg RelevanceConfig
}

// NewRelevanceScorer creates a scorer with the given config.
func NewRelevanceScorer(cfg RelevanceConfig) *RelevanceScorer {
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = 10
	}
	if cfg.DefaultTypeWeight == 0 {
		cfg.DefaultTypeWeight = 5.0
	}
	return &RelevanceScorer{cfg: cfg}
}

func (s *RelevanceScorer) Name() string { return "relevance-scoring" }

// Process scores every item and relationship against the query and returns
// the data sorted by score descending. Ties break on ascending ID so repeated
// runs produce identical order. Input is never mutated.
func (s *RelevanceScorer) Process(data Data, query Query) Data {
	timer := logging.StartTimer(logging.CategoryOptimizer, "relevance scoring")
	defer timer.Stop()

	queryText := deriveQueryText(query)
	keywords := extractKeywords(queryText, s.cfg.MaxKeywords)
	logging.OptimizerDebug("Scoring %d items against %d keywords from %q",
		len(data.Items), len(keywords), queryText)

	rawQuery := strings.ToLower(strings.TrimSpace(queryText))

	scores := make(map[string]float64, len(data.Items))
	items := make([]Item, 0, len(data.Items))
	for _, item := range data.Items {
		score := s.scoreItem(item, rawQuery, keywords)
		scores[item.ID] = score
		items = append(items, item.WithMetadata(map[string]interface{}{MetaRelevanceScore: score}))
	}
	sort.Slice(items, func(i, j int) bool {
		si, sj := items[i].RelevanceScore(), items[j].RelevanceScore()
		if si != sj {
			return si > sj
		}
		return items[i].ID < items[j].ID
	})

	relationships := make([]Relationship, 0, len(data.Relationships))
	for _, rel := range data.Relationships {
		score := scores[rel.SourceID] + scores[rel.TargetID]
		relationships = append(relationships, rel.WithMetadata(map[string]interface{}{MetaRelevanceScore: score}))
	}
	sort.Slice(relationships, func(i, j int) bool {
		si, sj := relationships[i].RelevanceScore(), relationships[j].RelevanceScore()
		if si != sj {
			return si > sj
		}
		return relationships[i].ID < relationships[j].ID
	})

	out := data
	out.Items = items
	out.Relationships = relationships
	return out.WithStep(s.Name(), map[string]interface{}{"totalKeywords": len(keywords)})
}

// scoreItem computes the multi-factor relevance score for one item.
func (s *RelevanceScorer) scoreItem(item Item, rawQuery string, keywords []string) float64 {
	score, ok := s.cfg.TypeWeights[item.Type]
	if !ok {
		score = s.cfg.DefaultTypeWeight
	}

	lowerName := strings.ToLower(item.Name)
	if rawQuery != "" && lowerName == rawQuery {
		score *= s.cfg.ExactMatchMultiplier
	}

	lowerDoc := strings.ToLower(metaString(item.Metadata, "documentation"))
	lowerCode := strings.ToLower(item.Code)
	for _, kw := range keywords {
		if strings.Contains(lowerName, kw) {
			score += s.cfg.NameMatchBonus
		}
		if lowerDoc != "" && strings.Contains(lowerDoc, kw) {
			score += s.cfg.DocMatchBonus
		}
		if lowerCode != "" && strings.Contains(lowerCode, kw) {
			score += s.cfg.CodeMatchBonus
		}
	}
	return score
}

// deriveQueryText returns the explicit query text, or concatenates the
// component descriptor fields when no free-text query is present.
func deriveQueryText(query Query) string {
	if strings.TrimSpace(query.Query) != "" {
		return query.Query
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{query.ComponentName, query.ComponentType, query.Language, query.FilePath} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// stopwords are dropped during keyword extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "into": true,
}

// extractKeywords tokenizes the query text and returns the top-N tokens by
// frequency. Tokens are lowercased, split on punctuation and whitespace, and
// must be longer than two characters and not a stopword.
func extractKeywords(text string, max int) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		default:
			return true
		}
	})

	freq := make(map[string]int)
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 2 || stopwords[tok] {
			continue
		}
		if _, seen := freq[tok]; !seen {
			order = append(order, tok)
		}
		freq[tok]++
	}

	// Rank by frequency descending; first-seen order breaks ties.
	rank := make(map[string]int, len(order))
	for i, tok := range order {
		rank[tok] = i
	}
	sort.Slice(order, func(i, j int) bool {
		fi, fj := freq[order[i]], freq[order[j]]
		if fi != fj {
			return fi > fj
		}
		return rank[order[i]] < rank[order[j]]
	})

	if len(order) > max {
		order = order[:max]
	}
	return order
}

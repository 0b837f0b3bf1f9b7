package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolution(t *testing.T) {
	r := NewRegistry(DefaultProcessorConfig())

	assert.Equal(t, "code", r.ProcessorFor("function").Name())
	assert.Equal(t, "code", r.ProcessorFor("class").Name())
	assert.Equal(t, "document", r.ProcessorFor("readme").Name())
	assert.Equal(t, "generic", r.ProcessorFor("mystery-type").Name())
	assert.Equal(t, "generic", r.Default().Name())
}

// stub claims a type already claimed by an earlier registration.
type stubProcessor struct {
	GenericProcessor
	name  string
	types []string
}

func (s *stubProcessor) Name() string            { return s.name }
func (s *stubProcessor) SupportedTypes() []string { return s.types }

func TestRegistryFirstMatchWins(t *testing.T) {
	r := NewRegistry(DefaultProcessorConfig())
	r.Register(&stubProcessor{name: "late", types: []string{"function", "novel"}})

	// "function" was claimed by the code processor at construction; the late
	// registration must not override it.
	assert.Equal(t, "code", r.ProcessorFor("function").Name())

	// A genuinely new type resolves to the late processor, not the fallback.
	assert.Equal(t, "late", r.ProcessorFor("novel").Name())
}

func TestProcessorConfigValidate(t *testing.T) {
	require.Empty(t, DefaultProcessorConfig().Validate())

	bad := DefaultProcessorConfig()
	bad.CharsPerToken = 0.5
	assert.Contains(t, bad.Validate(), "chars_per_token")

	bad = DefaultProcessorConfig()
	bad.CodeCharsPerToken = 11
	assert.Contains(t, bad.Validate(), "code_chars_per_token")

	bad = DefaultProcessorConfig()
	bad.CodeHeadLines = 0
	assert.NotEmpty(t, bad.Validate())
}

func TestCodeProcessorReduction(t *testing.T) {
	p := NewCodeProcessor(DefaultProcessorConfig())

	code := "func Handle(w http.ResponseWriter, r *http.Request) {\n" +
		"\ta := 1\n\tb := 2\n\tc := 3\n\td := 4\n\te := 5\n" +
		"\tf := 6\n\tg := 7\n\th := 8\n\ti := 9\n" +
		"\treturn\n}"
	item := Item{ID: "i1", Name: "Handle", Type: "function", Code: code}

	require.True(t, p.CanReduce(item))
	reduced := p.ReduceContent(item, 1.0)

	assert.Contains(t, reduced.Code, "func Handle", "signature line must survive")
	assert.Contains(t, reduced.Code, TruncationMarker)
	assert.Less(t, len(reduced.Code), len(code))
	// Original is untouched.
	assert.Equal(t, code, item.Code)
}

func TestCodeProcessorExportedPriority(t *testing.T) {
	p := NewCodeProcessor(DefaultProcessorConfig())
	data := Data{}

	exported := Item{ID: "a", Name: "PublicThing", Type: "function", Code: "func PublicThing() {}"}
	unexported := Item{ID: "b", Name: "helper", Type: "function", Code: "func helper() {}"}

	assert.Greater(t, p.CalculatePriority(exported, data), p.CalculatePriority(unexported, data))
}

func TestDocumentProcessorPreservesHeadings(t *testing.T) {
	p := NewDocumentProcessor(DefaultProcessorConfig())

	content := "# Overview\n\nFirst paragraph stays intact because it anchors the section.\n\n" +
		"This is a much longer body paragraph that exists purely to be shortened when the reduction " +
		"factor bites, padded with enough text to clear the minimum length threshold for truncation " +
		"to actually trigger during this test run.\n\n" +
		"## Details\n\nAnother first paragraph."
	item := Item{ID: "d1", Name: "README", Type: "document", Content: content}

	require.True(t, p.CanReduce(item))
	reduced := p.ReduceContent(item, 0.8)

	assert.Contains(t, reduced.Content, "# Overview")
	assert.Contains(t, reduced.Content, "## Details")
	assert.Contains(t, reduced.Content, "First paragraph stays intact")
	assert.Less(t, len(reduced.Content), len(content))
}

func TestGenericProcessorEstimate(t *testing.T) {
	p := NewGenericProcessor(DefaultProcessorConfig())

	empty := Item{}
	assert.Equal(t, 0, p.EstimateTokens(empty))

	small := Item{ID: "x", Name: "y", Type: "z"}
	assert.GreaterOrEqual(t, p.EstimateTokens(small), 1, "non-empty items never estimate to zero")
}

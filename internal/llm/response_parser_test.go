package llm

import (
	"testing"

	"github.com/memvault/memvault/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFactsSimple(t *testing.T) {
	facts, err := ParseFacts(`{"facts":[{"content":"Alice works at Acme","type":"semantic"},{"content":"The deploy happened Tuesday","type":"episodic"}]}`)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "Alice works at Acme", facts[0].Content)
	assert.Equal(t, types.MemoryTypeSemantic, facts[0].Type)
	assert.Equal(t, types.MemoryTypeEpisodic, facts[1].Type)
}

func TestParseFactsIgnoresUnknownType(t *testing.T) {
	facts, err := ParseFacts(`{"facts":[{"content":"Something","type":"bogus"}]}`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, types.MemoryType(""), facts[0].Type)
}

func TestParseFactsStripsMarkdownFence(t *testing.T) {
	facts, err := ParseFacts("```json\n" + `{"facts":[{"content":"A fact"}]}` + "\n```")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "A fact", facts[0].Content)
}

func TestParseFactsRecoversTruncatedJSON(t *testing.T) {
	// Simulates an LLM response cut off mid-second-object, with a trailing
	// comma and an unclosed array and outer object.
	truncated := `{"facts":[{"content":"First fact","type":"semantic"},{"content":"Second fact","type":`
	facts, err := ParseFacts(truncated)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "First fact", facts[0].Content)
}

func TestParseFactsTrailingComma(t *testing.T) {
	facts, err := ParseFacts(`{"facts":[{"content":"Only fact","type":"semantic"},]}`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestParseFactsMalformedReturnsError(t *testing.T) {
	_, err := ParseFacts(`not json at all`)
	assert.Error(t, err)
}

func TestParseCategoryValid(t *testing.T) {
	cat, err := ParseCategory(`{"category":"preferences","confidence":0.9}`)
	require.NoError(t, err)
	assert.Equal(t, types.CategoryPreferences, cat)
}

func TestParseCategoryUnrecognized(t *testing.T) {
	_, err := ParseCategory(`{"category":"nonsense","confidence":0.9}`)
	assert.Error(t, err)
}

func TestParseRelationshipLabelAccepted(t *testing.T) {
	valid := map[string]bool{"caused_by": true, "related_to": true}
	label, err := ParseRelationshipLabel(`{"label":"caused_by"}`, valid)
	require.NoError(t, err)
	assert.Equal(t, "caused_by", label)
}

func TestParseRelationshipLabelRejectsUnknown(t *testing.T) {
	valid := map[string]bool{"related_to": true}
	_, err := ParseRelationshipLabel(`{"label":"made_up_label"}`, valid)
	assert.Error(t, err)
}

func TestParseTierSummary(t *testing.T) {
	abstract, overview, err := ParseTierSummary(`{"abstract":"Short.","overview":"A bit longer."}`)
	require.NoError(t, err)
	assert.Equal(t, "Short.", abstract)
	assert.Equal(t, "A bit longer.", overview)
}

func TestParseTierSummaryEmptyFieldsErrors(t *testing.T) {
	_, _, err := ParseTierSummary(`{"abstract":"","overview":""}`)
	assert.Error(t, err)
}

func TestExtractJSONHandlesLeadingProse(t *testing.T) {
	got := extractJSON("Sure, here you go:\n" + `{"facts":[{"content":"x"}]}` + "\nHope that helps!")
	assert.Equal(t, `{"facts":[{"content":"x"}]}`, got)
}

// Package ontology holds the canonical relationship vocabulary used to
// label associations between memories: a fixed table of labels
// grouped into categories, each carrying its inverse and algebraic
// properties, plus LLM-backed classification for picking a label from
// unlabelled content pairs.
package ontology

import (
	"context"
	"strings"

	"github.com/memvault/memvault/internal/llm"
	"github.com/memvault/memvault/pkg/types"
)

// table is the base ontology: every relationship label this system knows
// about, grouped by category. Order within a category pairs a relationship
// with its inverse where one exists.
var table = []types.RelationshipInfo{
	// --- Hierarchical ---
	{Label: "parent_of", Description: "Parent-child hierarchy", Symmetric: false, Transitive: true, Inverse: "child_of", Category: types.CategoryHierarchical},
	{Label: "child_of", Description: "Child-parent hierarchy", Symmetric: false, Transitive: true, Inverse: "parent_of", Category: types.CategoryHierarchical},
	{Label: "part_of", Description: "Component of a whole", Symmetric: false, Transitive: true, Inverse: "has_part", Category: types.CategoryHierarchical},
	{Label: "has_part", Description: "Whole contains part", Symmetric: false, Transitive: true, Inverse: "part_of", Category: types.CategoryHierarchical},
	{Label: "instance_of", Description: "Instance of a type/class", Symmetric: false, Transitive: true, Inverse: "type_of", Category: types.CategoryHierarchical},
	{Label: "type_of", Description: "Type/class of instances", Symmetric: false, Transitive: true, Inverse: "instance_of", Category: types.CategoryHierarchical},

	// --- Causal ---
	{Label: "causes", Description: "Direct causation", Symmetric: false, Transitive: true, Inverse: "caused_by", Category: types.CategoryCausal},
	{Label: "caused_by", Description: "Caused by another event", Symmetric: false, Transitive: true, Inverse: "causes", Category: types.CategoryCausal},
	{Label: "enables", Description: "Makes possible or facilitates", Symmetric: false, Transitive: false, Inverse: "enabled_by", Category: types.CategoryCausal},
	{Label: "enabled_by", Description: "Made possible by", Symmetric: false, Transitive: false, Inverse: "enables", Category: types.CategoryCausal},
	{Label: "triggers", Description: "A triggers B", Symmetric: false, Transitive: false, Inverse: "triggered_by", Category: types.CategoryCausal},
	{Label: "triggered_by", Description: "Triggered by another event", Symmetric: false, Transitive: false, Inverse: "triggers", Category: types.CategoryCausal},
	{Label: "leads_to", Description: "A leads to B", Symmetric: false, Transitive: true, Inverse: "led_to_by", Category: types.CategoryCausal},
	{Label: "led_to_by", Description: "Led to by another event", Symmetric: false, Transitive: true, Inverse: "leads_to", Category: types.CategoryCausal},
	{Label: "prevents", Description: "A prevents B", Symmetric: false, Transitive: false, Inverse: "prevented_by", Category: types.CategoryCausal},
	{Label: "prevented_by", Description: "Prevented by another event", Symmetric: false, Transitive: false, Inverse: "prevents", Category: types.CategoryCausal},

	// --- Temporal ---
	{Label: "before", Description: "Occurs before in time", Symmetric: false, Transitive: true, Inverse: "after", Category: types.CategoryTemporal},
	{Label: "after", Description: "Occurs after in time", Symmetric: false, Transitive: true, Inverse: "before", Category: types.CategoryTemporal},
	{Label: "during", Description: "Occurs during timespan", Symmetric: false, Transitive: false, Inverse: "", Category: types.CategoryTemporal},

	// --- Similarity ---
	{Label: "similar_to", Description: "Similar content or meaning", Symmetric: true, Transitive: false, Inverse: "similar_to", Category: types.CategorySimilarity},
	{Label: "duplicate_of", Description: "Exact or near duplicate", Symmetric: true, Transitive: true, Inverse: "duplicate_of", Category: types.CategorySimilarity},
	{Label: "related_to", Description: "Generic related relationship", Symmetric: true, Transitive: false, Inverse: "related_to", Category: types.CategorySimilarity},
	{Label: "variant_of", Description: "A is a variant of B", Symmetric: true, Transitive: false, Inverse: "variant_of", Category: types.CategorySimilarity},

	// --- Learning ---
	{Label: "contradicts", Description: "Logically contradicts", Symmetric: true, Transitive: false, Inverse: "contradicts", Category: types.CategoryLearning},
	{Label: "supports", Description: "Provides evidence for", Symmetric: false, Transitive: false, Inverse: "supported_by", Category: types.CategoryLearning},
	{Label: "supported_by", Description: "Evidence provided by", Symmetric: false, Transitive: false, Inverse: "supports", Category: types.CategoryLearning},
	{Label: "builds_on", Description: "A builds on knowledge in B", Symmetric: false, Transitive: true, Inverse: "built_upon_by", Category: types.CategoryLearning},
	{Label: "built_upon_by", Description: "Knowledge built upon by another", Symmetric: false, Transitive: true, Inverse: "builds_on", Category: types.CategoryLearning},
	{Label: "confirms", Description: "A confirms or validates B", Symmetric: true, Transitive: false, Inverse: "confirms", Category: types.CategoryLearning},
	{Label: "supersedes", Description: "A supersedes B with newer information", Symmetric: false, Transitive: true, Inverse: "superseded_by", Category: types.CategoryLearning},
	{Label: "superseded_by", Description: "Superseded by newer information", Symmetric: false, Transitive: true, Inverse: "supersedes", Category: types.CategoryLearning},

	// --- Refinement ---
	{Label: "refines", Description: "Refines or elaborates on", Symmetric: false, Transitive: false, Inverse: "refined_by", Category: types.CategoryRefinement},
	{Label: "refined_by", Description: "Refined or elaborated by", Symmetric: false, Transitive: false, Inverse: "refines", Category: types.CategoryRefinement},
	{Label: "replaces", Description: "Supersedes or replaces", Symmetric: false, Transitive: false, Inverse: "replaced_by", Category: types.CategoryRefinement},
	{Label: "replaced_by", Description: "Superseded by", Symmetric: false, Transitive: false, Inverse: "replaces", Category: types.CategoryRefinement},

	// --- Reference ---
	{Label: "references", Description: "References or cites", Symmetric: false, Transitive: false, Inverse: "referenced_by", Category: types.CategoryReference},
	{Label: "referenced_by", Description: "Referenced or cited by", Symmetric: false, Transitive: false, Inverse: "references", Category: types.CategoryReference},

	// --- Solution ---
	{Label: "solves", Description: "A solves problem B", Symmetric: false, Transitive: false, Inverse: "solved_by", Category: types.CategorySolution},
	{Label: "solved_by", Description: "Problem solved by A", Symmetric: false, Transitive: false, Inverse: "solves", Category: types.CategorySolution},
	{Label: "addresses", Description: "A addresses issue B", Symmetric: false, Transitive: false, Inverse: "addressed_by", Category: types.CategorySolution},
	{Label: "addressed_by", Description: "Issue addressed by A", Symmetric: false, Transitive: false, Inverse: "addresses", Category: types.CategorySolution},
	{Label: "alternative_to", Description: "A is an alternative to B", Symmetric: true, Transitive: false, Inverse: "alternative_to", Category: types.CategorySolution},
	{Label: "improves", Description: "A improves B", Symmetric: false, Transitive: false, Inverse: "improved_by", Category: types.CategorySolution},
	{Label: "improved_by", Description: "Improved by A", Symmetric: false, Transitive: false, Inverse: "improves", Category: types.CategorySolution},

	// --- Context ---
	{Label: "occurs_in", Description: "A occurs in context B", Symmetric: false, Transitive: false, Inverse: "contains_occurrence", Category: types.CategoryContext},
	{Label: "contains_occurrence", Description: "Context B contains occurrence of A", Symmetric: false, Transitive: false, Inverse: "occurs_in", Category: types.CategoryContext},
	{Label: "applies_to", Description: "A applies to B", Symmetric: false, Transitive: false, Inverse: "has_applicable", Category: types.CategoryContext},
	{Label: "has_applicable", Description: "B has applicable A", Symmetric: false, Transitive: false, Inverse: "applies_to", Category: types.CategoryContext},
	{Label: "works_with", Description: "A works with B", Symmetric: true, Transitive: false, Inverse: "works_with", Category: types.CategoryContext},
	{Label: "requires", Description: "A requires B", Symmetric: false, Transitive: true, Inverse: "required_by", Category: types.CategoryContext},
	{Label: "required_by", Description: "Required by A", Symmetric: false, Transitive: true, Inverse: "requires", Category: types.CategoryContext},

	// --- Workflow ---
	{Label: "follows", Description: "A follows B in sequence", Symmetric: false, Transitive: true, Inverse: "followed_by", Category: types.CategoryWorkflow},
	{Label: "followed_by", Description: "Followed by A in sequence", Symmetric: false, Transitive: true, Inverse: "follows", Category: types.CategoryWorkflow},
	{Label: "depends_on", Description: "A depends on B", Symmetric: false, Transitive: true, Inverse: "depended_on_by", Category: types.CategoryWorkflow},
	{Label: "depended_on_by", Description: "Depended on by A", Symmetric: false, Transitive: true, Inverse: "depends_on", Category: types.CategoryWorkflow},
	{Label: "blocks", Description: "A blocks B", Symmetric: false, Transitive: false, Inverse: "blocked_by", Category: types.CategoryWorkflow},
	{Label: "blocked_by", Description: "Blocked by A", Symmetric: false, Transitive: false, Inverse: "blocks", Category: types.CategoryWorkflow},

	// --- Quality ---
	{Label: "effective_for", Description: "A is effective for B", Symmetric: false, Transitive: false, Inverse: "has_effective", Category: types.CategoryQuality},
	{Label: "has_effective", Description: "B has effective A", Symmetric: false, Transitive: false, Inverse: "effective_for", Category: types.CategoryQuality},
	{Label: "preferred_over", Description: "A is preferred over B", Symmetric: false, Transitive: true, Inverse: "less_preferred_than", Category: types.CategoryQuality},
	{Label: "less_preferred_than", Description: "A is less preferred than B", Symmetric: false, Transitive: true, Inverse: "preferred_over", Category: types.CategoryQuality},
	{Label: "deprecated_by", Description: "A is deprecated by B", Symmetric: false, Transitive: false, Inverse: "deprecates", Category: types.CategoryQuality},
	{Label: "deprecates", Description: "A deprecates B", Symmetric: false, Transitive: false, Inverse: "deprecated_by", Category: types.CategoryQuality},
}

var byLabel = func() map[string]types.RelationshipInfo {
	m := make(map[string]types.RelationshipInfo, len(table))
	for _, e := range table {
		m[e.Label] = e
	}
	return m
}()

// DefaultLabel is what callers fall back to when classification or
// validation can't determine a better label.
const DefaultLabel = "related_to"

// ValidateRelationship reports whether label is a known ontology entry.
func ValidateRelationship(label string) bool {
	_, ok := byLabel[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// GetRelationshipInfo returns the full entry for label, if known.
func GetRelationshipInfo(label string) (types.RelationshipInfo, bool) {
	info, ok := byLabel[strings.ToLower(strings.TrimSpace(label))]
	return info, ok
}

// GetRelationshipsByCategory returns every label in the given category, in
// table order.
func GetRelationshipsByCategory(category types.RelationshipCategory) []string {
	var labels []string
	for _, e := range table {
		if e.Category == category {
			labels = append(labels, e.Label)
		}
	}
	return labels
}

// AllLabels returns every known label, in table order.
func AllLabels() []string {
	labels := make([]string, 0, len(table))
	for _, e := range table {
		labels = append(labels, e.Label)
	}
	return labels
}

// validLabelSet is rebuilt once; classification validates the model's pick
// against it before trusting it.
var validLabelSet = func() map[string]bool {
	m := make(map[string]bool, len(table))
	for _, e := range table {
		m[e.Label] = true
	}
	return m
}()

// ClassifyRelationship asks generator to pick the ontology label that best
// describes how contentB relates to contentA. This is
// best-effort: any failure to call the model, or a response outside the
// known label set, falls back to DefaultLabel rather than erroring.
func ClassifyRelationship(ctx context.Context, generator llm.TextGenerator, contentA, contentB string) string {
	if generator == nil {
		return DefaultLabel
	}
	prompt := llm.ClassifyRelationshipPrompt(contentA, contentB, AllLabels())
	raw, err := generator.Synthesize(ctx, prompt, 64, 0, llm.ProfileExtraction)
	if err != nil {
		return DefaultLabel
	}
	label, err := llm.ParseRelationshipLabel(raw, validLabelSet)
	if err != nil {
		return DefaultLabel
	}
	return label
}

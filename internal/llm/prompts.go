package llm

import (
	"fmt"
	"strings"
)

// DecomposeToFactsPrompt builds a strict JSON-only prompt asking the model to
// split content into atomic facts, each optionally tagged with a memory type
// and subtype.
func DecomposeToFactsPrompt(content string) string {
	return fmt.Sprintf(`TASK: Split the content below into atomic, independently-true facts.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

Each fact is one self-contained statement. Do not merge unrelated statements.
If the content is already a single atomic fact, return it unchanged as the
only element.

MEMORY TYPE per fact (optional, omit if unclear):
- semantic: durable fact, preference, or entity description
- episodic: something that happened at a point in time
- procedural: a pattern, rule, or how-to

REQUIRED JSON STRUCTURE:
{"facts":[{"content":"...","type":"semantic|episodic|procedural"},...]}

CONTENT:
%s

Return ONLY the JSON object, nothing else:
{"facts":[{"content":"%s","type":"semantic"}]}`, content, firstLine(content))
}

// ClassifyContentPrompt builds a prompt asking the model to place content
// into one of the six extraction categories.
func ClassifyContentPrompt(content string) string {
	return fmt.Sprintf(`TASK: Classify the content below into exactly one category.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

CATEGORIES:
- profile: durable facts about a person or entity's identity
- preferences: likes, dislikes, standing choices
- entities: descriptions of things, tools, systems, places
- events: something that happened at a point in time
- cases: a concrete episode with an outcome, worth recalling as precedent
- patterns: a recurring procedure, rule, or how-to

REQUIRED JSON STRUCTURE:
{"category":"profile|preferences|entities|events|cases|patterns","confidence":0.0-1.0}

CONTENT:
%s

Return ONLY the JSON object, nothing else:
{"category":"entities","confidence":0.8}`, content)
}

// ClassifyRelationshipPrompt builds a prompt asking the model to choose the
// best-fitting ontology label describing how contentA relates to contentB.
// labels is the full set of valid relationship labels the response must pick
// from; the caller falls back to "related_to" if the model fails or returns
// a label outside this set.
func ClassifyRelationshipPrompt(contentA, contentB string, labels []string) string {
	return fmt.Sprintf(`TASK: Describe how memory B relates to memory A using exactly one label.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

VALID LABELS (pick exactly one):
%s

MEMORY A:
%s

MEMORY B:
%s

Return ONLY the JSON object, nothing else:
{"label":"related_to"}`, strings.Join(labels, ", "), contentA, contentB)
}

// TierSummaryPrompt builds a prompt requesting an abstract (short) and an
// overview (medium) summary of a memory's full content, for tier
// generation.
func TierSummaryPrompt(content string) string {
	return fmt.Sprintf(`TASK: Summarize the content below at two levels of detail.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

- abstract: one short sentence, under 100 characters
- overview: one short paragraph, under 500 characters

CONTENT:
%s

Return ONLY the JSON object, nothing else:
{"abstract":"...","overview":"..."}`, content)
}

// ReflectionPrompt builds a free-form synthesis prompt over a set of recalled
// memory contents, used by the engine's Reflect operation to produce a
// narrative answer grounded in stored memory rather than raw retrieval.
func ReflectionPrompt(query string, memoryContents []string) string {
	var sb strings.Builder
	for i, c := range memoryContents {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c)
	}
	return fmt.Sprintf(`Answer the question using only the memories listed below. If the
memories don't contain enough information, say so plainly instead of
guessing.

QUESTION:
%s

MEMORIES:
%s
ANSWER:`, query, sb.String())
}

// BriefingSynthesisPrompt builds a prompt summarizing a workspace's recent
// activity and open threads into a short narrative briefing.
func BriefingSynthesisPrompt(workspaceSummary string, recentActivity []string, openThreads []string) string {
	return fmt.Sprintf(`Write a short briefing (3-5 sentences) for someone resuming work in
this workspace. Mention what changed recently and what remains open.

WORKSPACE: %s

RECENT ACTIVITY:
%s

OPEN THREADS:
%s

BRIEFING:`, workspaceSummary, strings.Join(recentActivity, "\n"), strings.Join(openThreads, "\n"))
}

// QueryRewritePrompt asks the model to restate a recall query as a clearer,
// more literal search phrase, used by the LLM recall mode before widening
// the candidate pool.
func QueryRewritePrompt(query string) string {
	return fmt.Sprintf(`Restate the query below as a short, literal search phrase
capturing what it is really asking for. Do not answer the question. Output
only the rewritten phrase, nothing else.

QUERY:
%s

REWRITTEN:`, query)
}

// firstLine returns the first line of s, truncated to 80 runes, for use as a
// JSON example fragment in prompts.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > 80 {
		r = r[:80]
	}
	return strings.ReplaceAll(string(r), `"`, `'`)
}

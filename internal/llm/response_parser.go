package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/memvault/memvault/pkg/types"
)

// factsResponse is the wire shape decompose_to_facts expects back.
type factsResponse struct {
	Facts []factResponse `json:"facts"`
}

type factResponse struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	Subtype string `json:"subtype,omitempty"`
}

// categoryResponse is the wire shape classify_content expects back.
type categoryResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// relationshipLabelResponse is the wire shape classify_relationship expects back.
type relationshipLabelResponse struct {
	Label string `json:"label"`
}

// tierSummaryResponse is the wire shape tier generation expects back.
type tierSummaryResponse struct {
	Abstract string `json:"abstract"`
	Overview string `json:"overview"`
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// extractJSON pulls the first balanced JSON object or array out of text that
// may carry markdown fences or leading/trailing prose despite instructions
// not to.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return text
	}

	open := text[start]
	close := byte('}')
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return text[start:]
}

// recoverTruncatedJSON handles the partial/truncated-output case: it strips
// trailing commas, truncates the text back to the last fully-closed object,
// and closes whatever brackets remain open.
func recoverTruncatedJSON(text string) string {
	text = trailingCommaPattern.ReplaceAllString(text, "$1")

	var stack []byte
	inString := false
	escape := false
	lastSafe := -1
	var stackAtLastSafe []byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			lastSafe = i
			stackAtLastSafe = append([]byte(nil), stack...)
		}
	}

	if lastSafe == -1 {
		return text
	}

	truncated := text[:lastSafe+1]
	for i := len(stackAtLastSafe) - 1; i >= 0; i-- {
		if stackAtLastSafe[i] == '{' {
			truncated += "}"
		} else {
			truncated += "]"
		}
	}
	return truncated
}

// ParseFacts parses a decompose_to_facts response. It tries a direct parse
// first, then falls back to the truncated-JSON recovery path. Any
// remaining failure is the caller's signal to fall back to a single
// original-content fact.
func ParseFacts(jsonStr string) ([]types.Fact, error) {
	clean := extractJSON(jsonStr)

	var resp factsResponse
	err := json.Unmarshal([]byte(clean), &resp)
	if err != nil {
		recovered := recoverTruncatedJSON(clean)
		if err2 := json.Unmarshal([]byte(recovered), &resp); err2 != nil {
			return nil, fmt.Errorf("parse facts json: %w", err)
		}
	}

	if len(resp.Facts) == 0 {
		return nil, fmt.Errorf("parse facts json: no facts in response")
	}

	facts := make([]types.Fact, 0, len(resp.Facts))
	for _, f := range resp.Facts {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		fact := types.Fact{Content: f.Content}
		if mt := types.MemoryType(f.Type); types.IsValidMemoryType(mt) {
			fact.Type = mt
		}
		if st := types.MemorySubtype(f.Subtype); types.IsValidMemorySubtype(st) {
			fact.Subtype = st
		}
		facts = append(facts, fact)
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("parse facts json: all facts empty after filtering")
	}
	return facts, nil
}

// ParseCategory parses a classify_content response into one of the six
// extraction categories. Returns an error on malformed JSON or an
// unrecognized category, leaving the fallback to (semantic, nil) to the
// caller.
func ParseCategory(jsonStr string) (types.ExtractionCategory, error) {
	clean := extractJSON(jsonStr)

	var resp categoryResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return "", fmt.Errorf("parse category json: %w", err)
	}

	cat := types.ExtractionCategory(strings.ToLower(strings.TrimSpace(resp.Category)))
	if _, ok := types.ExtractionCategoryMapping[cat]; !ok {
		return "", fmt.Errorf("parse category json: unrecognized category %q", resp.Category)
	}
	return cat, nil
}

// ParseRelationshipLabel parses a classify_relationship response, accepting
// the label only if it appears in validLabels. Callers fall back to
// "related_to" on any error.
func ParseRelationshipLabel(jsonStr string, validLabels map[string]bool) (string, error) {
	clean := extractJSON(jsonStr)

	var resp relationshipLabelResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return "", fmt.Errorf("parse relationship label json: %w", err)
	}

	label := strings.ToLower(strings.TrimSpace(resp.Label))
	if !validLabels[label] {
		return "", fmt.Errorf("parse relationship label json: unrecognized label %q", resp.Label)
	}
	return label, nil
}

// ParseTierSummary parses a tier-generation response into its abstract and
// overview fields. Tier generation is best-effort; the caller logs
// and swallows any error this returns.
func ParseTierSummary(jsonStr string) (abstract, overview string, err error) {
	clean := extractJSON(jsonStr)

	var resp tierSummaryResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return "", "", fmt.Errorf("parse tier summary json: %w", err)
	}
	if strings.TrimSpace(resp.Abstract) == "" && strings.TrimSpace(resp.Overview) == "" {
		return "", "", fmt.Errorf("parse tier summary json: both fields empty")
	}
	return resp.Abstract, resp.Overview, nil
}

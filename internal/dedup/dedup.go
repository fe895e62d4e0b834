// Package dedup implements the pure deduplication decision function:
// given the id of an existing memory with the same content hash (if any)
// and the closest existing memory by embedding similarity in the same
// workspace, decide whether the caller should skip, update, merge, or create.
package dedup

import "github.com/memvault/memvault/pkg/types"

// Thresholds configures the semantic-duplicate bands. UpdateThreshold is the
// "replace" band (near-identical content); MergeThreshold is the wider
// "near-duplicate" band.
type Thresholds struct {
	UpdateThreshold float64
	MergeThreshold  float64
}

// DefaultThresholds matches the bands this implementation was validated
// against: near-exact semantic matches (>=0.95) replace outright; a wider
// band (>=0.85) merges.
func DefaultThresholds() Thresholds {
	return Thresholds{UpdateThreshold: 0.95, MergeThreshold: 0.85}
}

// Candidate is the closest existing memory found by a similarity probe,
// alongside its similarity to the new content.
type Candidate struct {
	MemoryID   string
	Similarity float64
}

// CheckDuplicate is the pure decision function: given an optional exact-hash
// match and the closest semantic candidate (if any), it returns what the
// caller should do.
func CheckDuplicate(exactHashMatchID string, semanticCandidate *Candidate, thresholds Thresholds) types.DedupResult {
	if exactHashMatchID != "" {
		return types.DedupResult{
			Action:           types.DedupSkip,
			Reason:           "exact content_hash match",
			ExistingMemoryID: exactHashMatchID,
		}
	}

	if semanticCandidate != nil {
		switch {
		case semanticCandidate.Similarity >= thresholds.UpdateThreshold:
			return types.DedupResult{
				Action:           types.DedupUpdate,
				Reason:           "semantic duplicate above replace threshold",
				ExistingMemoryID: semanticCandidate.MemoryID,
				SimilarityScore:  semanticCandidate.Similarity,
			}
		case semanticCandidate.Similarity >= thresholds.MergeThreshold:
			return types.DedupResult{
				Action:           types.DedupMerge,
				Reason:           "semantic near-duplicate in merge band",
				ExistingMemoryID: semanticCandidate.MemoryID,
				SimilarityScore:  semanticCandidate.Similarity,
			}
		}
	}

	return types.DedupResult{Action: types.DedupCreate, Reason: "no duplicate found"}
}

// MergeContent implements the MERGE append policy: concatenate the new
// content onto the existing content with a visual separator. No smarter
// merge is attempted.
func MergeContent(existingContent, newContent string) string {
	return existingContent + "\n\n---\n\n" + newContent
}

// MergeImportance returns the greater of the two importances.
func MergeImportance(existing, new float64) float64 {
	if new > existing {
		return new
	}
	return existing
}

// UpdateImportance boosts importance to at least 0.5 on UPDATE.
func UpdateImportance(newImportance float64) float64 {
	if newImportance > 0.5 {
		return newImportance
	}
	return 0.5
}

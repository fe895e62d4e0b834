package types

// ExtractionCategory is one of the six buckets classify_content maps
// arbitrary content into before it is refined into a (MemoryType,
// MemorySubtype) pair.
type ExtractionCategory string

const (
	CategoryProfile     ExtractionCategory = "profile"
	CategoryPreferences ExtractionCategory = "preferences"
	CategoryEntities    ExtractionCategory = "entities"
	CategoryEvents      ExtractionCategory = "events"
	CategoryCases       ExtractionCategory = "cases"
	CategoryPatterns    ExtractionCategory = "patterns"
)

// ExtractionCategoryMapping is the fixed table mapping each
// extraction category to the (MemoryType, MemorySubtype) pair a classified
// memory should take on.
var ExtractionCategoryMapping = map[ExtractionCategory]struct {
	Type    MemoryType
	Subtype MemorySubtype
}{
	CategoryProfile:     {MemoryTypeSemantic, MemorySubtypeProfile},
	CategoryPreferences: {MemoryTypeSemantic, MemorySubtypePreference},
	CategoryEntities:    {MemoryTypeSemantic, MemorySubtypeEntity},
	CategoryEvents:      {MemoryTypeEpisodic, MemorySubtypeEvent},
	CategoryCases:       {MemoryTypeEpisodic, MemorySubtypeCase},
	CategoryPatterns:    {MemoryTypeProcedural, MemorySubtypePattern},
}

// Fact is one atomic unit produced by Extraction.DecomposeToFacts.
type Fact struct {
	Content string
	Type    MemoryType
	Subtype MemorySubtype
}

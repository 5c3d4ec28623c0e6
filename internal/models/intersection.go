package models

// IntersectionType names the kind of merge point between two batches.
type IntersectionType string

const (
	IntersectionFileMerge       IntersectionType = "file_merge"
	IntersectionImportChain     IntersectionType = "import_chain"
	IntersectionFunctionHandoff IntersectionType = "function_handoff"
)

// Priority orders intersections for processing.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sort rank where lower runs first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// GluePattern is the integration pattern used to connect two batches.
type GluePattern string

const (
	PatternHandoffFunction  GluePattern = "handoff_function"
	PatternImportPrediction GluePattern = "import_prediction"
	PatternAdapter          GluePattern = "adapter_pattern"
	PatternTypeConverter    GluePattern = "type_converter"
)

// Intersection is a point where two batches' outputs must be combined.
type Intersection struct {
	ID                         string           `json:"id"`
	Type                       IntersectionType `json:"type"`
	SourceBatch                string           `json:"source_batch"`
	TargetBatch                string           `json:"target_batch"`
	Location                   string           `json:"location"`
	Priority                   Priority         `json:"priority"`
	RequiresConflictResolution bool             `json:"requires_conflict_resolution"`
	Level                      int              `json:"level"`
	Pattern                    GluePattern      `json:"pattern"`
}

// DedupKey identifies an intersection regardless of its generated id.
func (i *Intersection) DedupKey() string {
	return string(i.Type) + "|" + i.SourceBatch + "|" + i.TargetBatch + "|" + i.Location
}

// RequiredBatches lists the batches that must be complete before the
// intersection can be woven. File merges need both sides; handoffs and
// import chains only need the producer.
func (i *Intersection) RequiredBatches() []string {
	if i.Type == IntersectionFileMerge {
		return []string{i.SourceBatch, i.TargetBatch}
	}
	return []string{i.SourceBatch}
}

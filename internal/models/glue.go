package models

// InsertionStrategy says how generated glue lands in its target file.
type InsertionStrategy string

const (
	InsertPrepend InsertionStrategy = "prepend"
	InsertAppend  InsertionStrategy = "append"
	InsertNewFile InsertionStrategy = "new_file"
)

// GlueCode is a generated adapter, import or handoff snippet.
type GlueCode struct {
	IntersectionID    string            `json:"intersection_id"`
	Pattern           GluePattern       `json:"pattern"`
	Code              string            `json:"code"`
	TargetLocation    string            `json:"target_location"`
	Imports           []string          `json:"imports,omitempty"`
	InsertionStrategy InsertionStrategy `json:"insertion_strategy"`
	ValidationCommand string            `json:"validation_command,omitempty"`
	Disabled          bool              `json:"disabled,omitempty"`
	Reason            string            `json:"reason,omitempty"`
}

// Empty reports whether there is nothing to inject.
func (g *GlueCode) Empty() bool {
	return g == nil || g.Disabled || g.Code == ""
}

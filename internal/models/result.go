package models

import "time"

// Batch execution status values reported by the external executor.
const (
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
	BatchStatusPending   = "pending"
)

// FileChange is the before/after content of one file in a batch result.
type FileChange struct {
	OldContent string `json:"old_content" yaml:"old_content"`
	Content    string `json:"content" yaml:"content"`
}

// BatchResult is what the external executor returns for one batch.
type BatchResult struct {
	BatchID       string                `json:"batch_id" yaml:"batch_id"`
	Status        string                `json:"status" yaml:"status"`
	CreatedFiles  []string              `json:"created_files,omitempty" yaml:"created_files,omitempty"`
	ModifiedFiles []string              `json:"modified_files,omitempty" yaml:"modified_files,omitempty"`
	Changes       map[string]FileChange `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// IsCompleted returns true if the batch finished successfully.
func (r *BatchResult) IsCompleted() bool {
	return r != nil && r.Status == BatchStatusCompleted
}

// ProducedFiles returns created then modified files, without duplicates.
func (r *BatchResult) ProducedFiles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{r.CreatedFiles, r.ModifiedFiles} {
		for _, f := range group {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// ExecutionStatus is the outcome of applying one intersection.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionSkipped   ExecutionStatus = "skipped"
)

// CommandResult captures one external command invocation.
type CommandResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output,omitempty"` // truncated
	ExitCode int           `json:"exit_code"`
	Passed   bool          `json:"passed"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ExecutionResult is the outcome of applying one intersection to disk.
type ExecutionResult struct {
	IntersectionID string          `json:"intersection_id"`
	Status         ExecutionStatus `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	FilesModified  []string        `json:"files_modified,omitempty"`
	Log            []string        `json:"log,omitempty"`
	Validation     *CommandResult  `json:"validation,omitempty"`
	RolledBack     bool            `json:"rolled_back,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// LayerStatus is the outcome of one validator layer.
type LayerStatus string

const (
	LayerPassed  LayerStatus = "passed"
	LayerFailed  LayerStatus = "failed"
	LayerSkipped LayerStatus = "skipped"
)

// LayerResult is one layer of the integration check.
type LayerResult struct {
	Name     string      `json:"name"`
	Status   LayerStatus `json:"status"`
	Blocking bool        `json:"blocking"`
	Issues   []string    `json:"issues,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// ValidationStatus is the overall integration check outcome.
type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "passed"
	ValidationFailed  ValidationStatus = "failed"
	ValidationSkipped ValidationStatus = "skipped"
)

// ValidationResult is the five-layer integration check outcome.
type ValidationResult struct {
	Status         ValidationStatus `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	Layers         []LayerResult    `json:"layers"`
	BlockingIssues []string         `json:"blocking_issues,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// Layer returns the named layer, or nil.
func (v *ValidationResult) Layer(name string) *LayerResult {
	for i := range v.Layers {
		if v.Layers[i].Name == name {
			return &v.Layers[i]
		}
	}
	return nil
}

// WeaveState is the overall status of a weaving run.
type WeaveState string

const (
	WeaveCompleted WeaveState = "completed"
	WeavePartial   WeaveState = "partial"
	WeaveFailed    WeaveState = "failed"
	WeaveDisabled  WeaveState = "disabled"
	WeaveNothing   WeaveState = "nothing_ready"
)

// WeaveStatus is the compiled outcome of one weaving run.
type WeaveStatus struct {
	RunID              string               `json:"run_id"`
	Status             WeaveState           `json:"status"`
	Reason             string               `json:"reason"`
	TotalIntersections int                  `json:"total_intersections"`
	ReadyIntersections int                  `json:"ready_intersections"`
	Completed          []string             `json:"completed"`
	Failed             []string             `json:"failed"`
	Skipped            []string             `json:"skipped,omitempty"`
	AutoMerged         int                  `json:"auto_merged"`
	ManualReview       int                  `json:"manual_review"`
	ValidationErrors   []string             `json:"validation_errors,omitempty"`
	Validation         *ValidationResult    `json:"validation,omitempty"`
	Executions         []ExecutionResult    `json:"executions,omitempty"`
	Interfaces         []PredictedInterface `json:"interfaces,omitempty"`
}

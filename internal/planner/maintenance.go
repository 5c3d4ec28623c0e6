package planner

import "context"

// Maintenance is an always-on background task that must be paused while a
// planning run holds the tree.
type Maintenance interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// NoopMaintenance is used when nothing runs in the background.
type NoopMaintenance struct{}

func (NoopMaintenance) Pause(context.Context) error  { return nil }
func (NoopMaintenance) Resume(context.Context) error { return nil }

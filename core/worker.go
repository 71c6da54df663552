package core

import "time"

// Worker is a unit of scheduled work run by the Orchestrator.
type Worker interface {
	Name() string
	Schedule() string
	Ready(now time.Time) bool
	Execute()
}

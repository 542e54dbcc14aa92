package models

// BatchStatus is the lifecycle state of a download batch
type BatchStatus string

const (
	BatchStatusUnset     BatchStatus = ""          // Zero value = not yet submitted
	BatchStatusPending   BatchStatus = "pending"   // Accepted, no worker started yet
	BatchStatusRunning   BatchStatus = "running"   // Workers draining the task queue
	BatchStatusCompleted BatchStatus = "completed" // Every item has a terminal outcome
)

// String implements fmt.Stringer for logging
func (s BatchStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusRunning, BatchStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo enforces Pending -> Running -> Completed
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	switch s {
	case BatchStatusUnset:
		return next == BatchStatusPending
	case BatchStatusPending:
		return next == BatchStatusRunning
	case BatchStatusRunning:
		return next == BatchStatusCompleted
	}
	return false
}

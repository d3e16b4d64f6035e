package utility

import "github.com/google/uuid"

type ExecutionID = uuid.UUID

// NewExecutionID creates a time ordered identifier for a single replay or optimization run.
func NewExecutionID() ExecutionID {
	return uuid.Must(uuid.NewV7())
}

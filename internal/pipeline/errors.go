package pipeline

import "fmt"

// ValidationError reports generator-mode input that does not have the
// expected shape. It is fatal for the ingestion call that raised it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid generator input: %s", e.Reason)
}

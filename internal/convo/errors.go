package convo

import "fmt"

// ValidationError signals a malformed request at the C5 operation boundary
// (e.g. an empty question), distinct from a provider ConfigError.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation error: %s", e.Reason) }

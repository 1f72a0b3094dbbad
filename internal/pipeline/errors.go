package pipeline

import "fmt"

// ConfigurationError reports a module that has nothing to do. It is logged,
// never returned: the phase completes with an empty file list.
type ConfigurationError struct {
	Module string
	Phase  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s phase of %s: %s", e.Phase, e.Module, e.Reason)
}

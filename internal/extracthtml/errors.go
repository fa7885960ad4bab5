package extracthtml

import "errors"

// Error codes reported to callers and observers.
const (
	CodeNoSelectors     = "NO_SELECTORS"
	CodeControlNotFound = "CONTROL_NOT_FOUND"
)

// ErrNoSelectors is returned by Run for an empty rule set.
var ErrNoSelectors = errors.New("extracthtml: " + CodeNoSelectors + ": no selectors given")

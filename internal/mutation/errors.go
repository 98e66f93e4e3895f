package mutation

import (
	"fmt"
	"strings"

	"github.com/roach88/profilesync/internal/model"
)

// ValidationError reports one property that was dropped at encode time.
// Validation errors are never fatal: the remaining properties of the same
// call are still dispatched.
type ValidationError struct {
	Kind     model.ActionKind
	Property string
	Message  string
}

func (e ValidationError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Property, e.Message)
}

// ValidationErrors collects every dropped property of one call.
// Returns all errors (not fail-fast) so callers see each bad key once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "no validation errors"
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// Err returns e as an error, or nil when empty. Use this instead of
// returning a nil ValidationErrors through an error interface.
func (e ValidationErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSuggestionsDisabled is returned when no prompt suggester is configured.
var ErrSuggestionsDisabled = errors.New("prompt suggestions are disabled")

// NotFoundError reports a missing domain object.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError lists every rule a piece of user input broke.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

package domain

import "fmt"

// NotFoundError represents a missing row.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing rows.
var ErrNotFound = NotFoundError{}

// ModelInactiveError rejects writes against a graph that is not active.
type ModelInactiveError struct {
	Message string
}

func (e ModelInactiveError) Error() string {
	if e.Message == "" {
		return "model is not yet active"
	}
	return e.Message
}

func (e ModelInactiveError) Is(target error) bool {
	_, ok := target.(ModelInactiveError)
	if ok {
		return true
	}
	_, ok = target.(*ModelInactiveError)
	return ok
}

// TileValidationError aborts a tile save before any row is written. Message
// aggregates every offending field or duplicate value.
type TileValidationError struct {
	Message string
}

func (e TileValidationError) Error() string {
	return e.Message
}

func (e TileValidationError) Is(target error) bool {
	_, ok := target.(TileValidationError)
	if ok {
		return true
	}
	_, ok = target.(*TileValidationError)
	return ok
}

// InvalidNodeNameError is raised by name-based node lookup when no node
// matches. No guess is made.
type InvalidNodeNameError struct {
	Name string
}

func (e InvalidNodeNameError) Error() string {
	return fmt.Sprintf("no node named %q", e.Name)
}

func (e InvalidNodeNameError) Is(target error) bool {
	_, ok := target.(InvalidNodeNameError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidNodeNameError)
	return ok
}

// MultipleNodesFoundError is raised by name-based node lookup when the name
// is ambiguous.
type MultipleNodesFoundError struct {
	Name  string
	Count int
}

func (e MultipleNodesFoundError) Error() string {
	return fmt.Sprintf("%d nodes named %q", e.Count, e.Name)
}

func (e MultipleNodesFoundError) Is(target error) bool {
	_, ok := target.(MultipleNodesFoundError)
	if ok {
		return true
	}
	_, ok = target.(*MultipleNodesFoundError)
	return ok
}

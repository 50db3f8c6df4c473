package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors of the relational core. Typed errors below match them via errors.Is.
var (
	// ErrUnknownEntityType is returned when an entity type name is not registered
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrQueryExecution is returned when the query executor reports a failure
	ErrQueryExecution = errors.New("query execution failed")

	// ErrBadArgumentCount is returned when an entry point gets the wrong number of arguments
	ErrBadArgumentCount = errors.New("bad argument count")

	// ErrRelationshipCycle is returned when relationship traversal would revisit an edge
	ErrRelationshipCycle = errors.New("relationship cycle detected")

	// ErrEmptyChain is returned when a chain is built from zero levels
	ErrEmptyChain = errors.New("chain requires at least one level")
)

// UnknownEntityTypeError names the entity type that could not be resolved
type UnknownEntityTypeError struct {
	Name string
}

func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("unknown entity type: %q", e.Name)
}

// Is reports whether target is ErrUnknownEntityType
func (e *UnknownEntityTypeError) Is(target error) bool {
	return target == ErrUnknownEntityType
}

// QueryExecutionError keeps the failing query next to the executor error
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v (query: %s)", e.Err, e.Query)
}

// Is reports whether target is ErrQueryExecution
func (e *QueryExecutionError) Is(target error) bool {
	return target == ErrQueryExecution
}

// Unwrap returns the executor error
func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// BadArgumentCountError describes an entry point called with the wrong arity
type BadArgumentCountError struct {
	Op       string // Operation name (e.g., "User.GetOne")
	Expected string // Expected cardinality (e.g., "exactly 1")
	Got      int
}

func (e *BadArgumentCountError) Error() string {
	return fmt.Sprintf("incorrect number of parameters for %s: expected %s, got %d", e.Op, e.Expected, e.Got)
}

// Is reports whether target is ErrBadArgumentCount
func (e *BadArgumentCountError) Is(target error) bool {
	return target == ErrBadArgumentCount
}

// RelationshipCycleError carries the edge path that closed the cycle
type RelationshipCycleError struct {
	Path []string // Visited edges, "Entity.kind.alias"
	Edge string   // The repeated edge
}

func (e *RelationshipCycleError) Error() string {
	return fmt.Sprintf("relationship cycle detected at %s (path: %s)", e.Edge, strings.Join(e.Path, " -> "))
}

// Is reports whether target is ErrRelationshipCycle
func (e *RelationshipCycleError) Is(target error) bool {
	return target == ErrRelationshipCycle
}

// IsUnknownEntityType reports whether err is (or wraps) an unknown entity type error
func IsUnknownEntityType(err error) bool {
	return errors.Is(err, ErrUnknownEntityType)
}

// IsQueryExecution reports whether err is (or wraps) a query execution error
func IsQueryExecution(err error) bool {
	return errors.Is(err, ErrQueryExecution)
}

// IsBadArgumentCount reports whether err is (or wraps) a bad argument count error
func IsBadArgumentCount(err error) bool {
	return errors.Is(err, ErrBadArgumentCount)
}

// IsRelationshipCycle reports whether err is (or wraps) a relationship cycle error
func IsRelationshipCycle(err error) bool {
	return errors.Is(err, ErrRelationshipCycle)
}

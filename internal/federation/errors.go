package federation

import (
	"errors"
	"fmt"
	"reflect"
)

// Error codes reported in GraphQL error extensions.
const (
	CodeMissingTypename        = "MISSING_TYPENAME"
	CodeInvalidTypename        = "INVALID_TYPENAME"
	CodeEntityNotFound         = "ENTITY_NOT_FOUND"
	CodeResolverExecutionError = "RESOLVER_EXECUTION_ERROR"
)

// ErrEmptyEntityUnion is returned when entities are required but no type
// declares a key.
var ErrEmptyEntityUnion = errors.New("federation: no entity types found for the _Entity union")

// ConflictingFieldMarkerError reports two sources assigning different values
// to the same field marker.
type ConflictingFieldMarkerError struct {
	TypeName          string
	FieldName         string
	Marker            string
	Existing          string
	Conflicting       string
	ExistingSource    string
	ConflictingSource string
}

func (e *ConflictingFieldMarkerError) Error() string {
	msg := fmt.Sprintf("federation: conflicting @%s on %s.%s: %q and %q",
		e.Marker, e.TypeName, e.FieldName, e.Existing, e.Conflicting)
	if e.ExistingSource != "" || e.ConflictingSource != "" {
		msg += fmt.Sprintf(" (declared at %s and %s)", e.ExistingSource, e.ConflictingSource)
	}
	return msg
}

// UnresolvableRuntimeTypeError reports a resolver registered by Go type whose
// type has no schema binding.
type UnresolvableRuntimeTypeError struct {
	Type reflect.Type
}

func (e *UnresolvableRuntimeTypeError) Error() string {
	return fmt.Sprintf("federation: no schema type is bound to Go type %s", e.Type)
}

// MissingTypenameError reports a representation without __typename.
type MissingTypenameError struct {
	Index int
}

func (e *MissingTypenameError) Error() string {
	return fmt.Sprintf("representation at index %d is missing __typename", e.Index)
}

func (e *MissingTypenameError) Extensions() map[string]any {
	return map[string]any{"code": CodeMissingTypename, "index": e.Index}
}

// InvalidTypenameError reports a __typename that is not a string.
type InvalidTypenameError struct {
	Index int
	Kind  string
}

func (e *InvalidTypenameError) Error() string {
	return fmt.Sprintf("representation at index %d has a non-string __typename (%s)", e.Index, e.Kind)
}

func (e *InvalidTypenameError) Extensions() map[string]any {
	return map[string]any{"code": CodeInvalidTypename, "index": e.Index}
}

// EntityNotFoundError reports a __typename without a registered resolver.
type EntityNotFoundError struct {
	TypeName string
	Index    int
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("no entity resolver registered for type %q (index %d)", e.TypeName, e.Index)
}

func (e *EntityNotFoundError) Extensions() map[string]any {
	return map[string]any{"code": CodeEntityNotFound, "typename": e.TypeName, "index": e.Index}
}

// ResolverExecutionError wraps a failure or panic of an entity resolver.
type ResolverExecutionError struct {
	TypeName string
	Index    int
	Cause    error
}

func (e *ResolverExecutionError) Error() string {
	return fmt.Sprintf("entity resolver for %q failed at index %d: %v", e.TypeName, e.Index, e.Cause)
}

func (e *ResolverExecutionError) Unwrap() error { return e.Cause }

func (e *ResolverExecutionError) Extensions() map[string]any {
	return map[string]any{"code": CodeResolverExecutionError, "typename": e.TypeName, "index": e.Index}
}

// panicError carries a recovered panic value as the cause of a
// ResolverExecutionError.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

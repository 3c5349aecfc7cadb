package executor

import (
	"context"
)

// Runtime resolves field values for the Executor.
//
// ResolveSync is called for fields that are not marked Async, in document
// order, as soon as the field is reached. Fields marked Async are never passed
// to ResolveSync; they are collected per depth and passed to
// BatchResolveAsync together, once per depth, after all synchronous work of
// that depth has run. BatchResolveAsync is not called for an empty depth and
// never receives tasks below a position that was already nulled.
//
// Values returned by a Runtime are completed against the schema: lists may be
// any slice, and a list item that is an error is reported at the item path.
// Errors implementing
//
//	Extensions() map[string]any
//
// contribute the extensions of the reported GraphQL error.
//
// Implementations must be safe for concurrent use by separate requests and
// must not mutate source or args.
type Runtime interface {
	// ResolveSync resolves field of objectType on source. Returning (nil, nil)
	// yields null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of queued fields. It must return
	// one result per task, in task order; a failed task does not affect the
	// others.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the object type of a value of an interface or union.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// ResolveUnionConcreteValue and ResolveInterfaceConcreteValue unwrap an
	// abstract value before it is completed as its object type.
	ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error)
	ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error)

	// SerializeLeafValue converts a scalar or enum value to its JSON-ready
	// form. Enums serialize to their value name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// AsyncResolveTask is one queued field.
type AsyncResolveTask struct {
	ObjectType string
	Field      string
	// Source is the parent object value, nil for root fields.
	Source any
	Args   map[string]any
	// Path is the response path of the field, e.g. ["_entities"].
	Path Path
}

type AsyncResolveResult struct {
	Value any
	Error error
}

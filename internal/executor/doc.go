// Package executor runs GraphQL operations against a schema.Schema through a
// pluggable Runtime.
//
// Execution is breadth first. Fields whose definition is marked Async are
// queued while the current depth expands and are handed to
// Runtime.BatchResolveAsync in a single call per depth; every other field is
// resolved in place with Runtime.ResolveSync. The federation layer relies on
// this to resolve all representations of an _entities selection together.
//
// Errors are located by response path. A null in a Non-Null position
// propagates to the closest nullable ancestor, and queued work below a nulled
// position is dropped before the next batch runs.
package executor

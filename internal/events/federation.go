package events

import "time"

// EntityBatchStart is emitted when an _entities field starts resolving its
// representations.
type EntityBatchStart struct {
	Size int
}

// EntityBatchFinish is emitted once every representation of the batch has an
// outcome.
type EntityBatchFinish struct {
	Size     int
	Failed   int
	Duration time.Duration
}

// EntityResolveFinish is emitted for each representation of a batch.
type EntityResolveFinish struct {
	TypeName string
	Index    int
	Found    bool
	Err      error
	Duration time.Duration
}

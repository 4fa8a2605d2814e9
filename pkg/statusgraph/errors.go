package statusgraph

import "errors"

var (
	// ErrUnknownWorkflow indicates the workflow has no stored definition.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrDuplicateEdge indicates an explicit edit tried to add an edge that already exists.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrEdgeNotFound indicates an edit targeted an edge the workflow does not have.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrUnknownStatus indicates an edge endpoint is not a catalogued status code.
	ErrUnknownStatus = errors.New("unknown status code")

	// ErrForeignStatus indicates an edge endpoint belongs to another namespace than its workflow.
	ErrForeignStatus = errors.New("status outside workflow namespace")
)

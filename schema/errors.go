package schema

import "github.com/d-j-hatton/python-smartem/errors"

var (
	// ErrAmbiguousChain is returned when a walked entity has more than one foreign key.
	ErrAmbiguousChain = errors.New("ambiguous foreign key chain")

	// ErrChainTooDeep is returned when a walk exceeds the graph's maximum depth.
	ErrChainTooDeep = errors.New("foreign key chain exceeds maximum depth")

	// ErrUnknownEntity is returned for entities missing from the graph.
	ErrUnknownEntity = errors.New("unknown entity")
)

package kernel

import (
	"errors"

	"github.com/sarchlab/diligent/connector"
)

var (
	// ErrUnknownNode is returned when an id does not name a node.
	ErrUnknownNode = errors.New("kernel: unknown node")

	// ErrUnknownModel is returned when an edge model name is not
	// registered.
	ErrUnknownModel = errors.New("kernel: unknown edge model")

	// ErrDuplicateModel is returned when an edge model name is registered
	// twice.
	ErrDuplicateModel = errors.New("kernel: edge model already registered")

	// ErrNoSuchEdge is returned when a deletion does not match any edge.
	ErrNoSuchEdge = connector.ErrNoSuchEdge

	// ErrInvalidDelay is returned when an edge has a delay smaller than the
	// minimum delay of the kernel.
	ErrInvalidDelay = errors.New("kernel: edge delay below the minimum delay")

	// ErrDanglingConnector is returned when a collection refers to a
	// connector that no longer exists.
	ErrDanglingConnector = errors.New("kernel: dangling connector handle")
)

package updating

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of all errors caused by a missing or invalid
// updater configuration.
var ErrConfiguration = errors.New("updating: configuration error")

var (
	// ErrInvalidInterval is returned when the update interval is not
	// positive.
	ErrInvalidInterval = fmt.Errorf(
		"%w: the update interval must be larger than 0", ErrConfiguration)

	// ErrInvalidLatency is returned when the acceptable latency is
	// negative.
	ErrInvalidLatency = fmt.Errorf(
		"%w: the maximum acceptable delay must be larger or equal to 0",
		ErrConfiguration)

	// ErrNotSetUp is returned when a diligent connection is created before
	// the updater was set up.
	ErrNotSetUp = fmt.Errorf(
		"%w: the connection update manager was not set up before the first "+
			"connection was made", ErrConfiguration)

	// ErrNotValid is returned when connections exist but the updater does
	// not have a valid configuration.
	ErrNotValid = fmt.Errorf(
		"%w: the connection update manager was not set up correctly before "+
			"the simulation started", ErrConfiguration)
)

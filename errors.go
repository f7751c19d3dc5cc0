package remesh

import "errors"

var (
	// ErrNoBoundary is returned when boundary alignment is requested on
	// a mesh without open boundary edges.
	ErrNoBoundary = errors.New("remesh: mesh has no boundary edges")
	// ErrInvalidParameters is returned by Params.Validate.
	ErrInvalidParameters = errors.New("remesh: invalid parameters")
)

package model

import "errors"

var (
	// ErrInvalidPath indicates a path that does not address an element in the tree.
	ErrInvalidPath = errors.New("invalid path")

	// ErrOutOfBounds indicates an offset past the end of its parent.
	ErrOutOfBounds = errors.New("offset out of bounds")

	// ErrNotFlat indicates a range whose boundaries have different parents.
	ErrNotFlat = errors.New("range is not flat")

	// ErrUnknownRoot indicates a root name that is not in the tree.
	ErrUnknownRoot = errors.New("unknown root")

	// ErrRootExists indicates an attempt to create a root twice.
	ErrRootExists = errors.New("root already exists")

	// ErrMarkup indicates malformed markup notation.
	ErrMarkup = errors.New("malformed markup")
)

package ot

import "errors"

var (
	// ErrPrecondition indicates an operation that does not fit the tree it is
	// applied to. It means a transformation bug upstream and is fatal for the
	// document.
	ErrPrecondition = errors.New("operation precondition violated")

	// ErrNeedsResync indicates a document that hit a fatal error and must be
	// reloaded from a fresh snapshot.
	ErrNeedsResync = errors.New("document needs resync")

	// ErrVersionMismatch indicates an operation whose base version is not the
	// current document version.
	ErrVersionMismatch = errors.New("base version mismatch")

	// ErrUnknownOperation indicates an encoded operation with an unknown type.
	ErrUnknownOperation = errors.New("unknown operation type")

	// ErrNothingToUndo indicates an empty undo or redo stack.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrMarkerExists indicates adding a marker under a taken name.
	ErrMarkerExists = errors.New("marker already exists")

	// ErrMarkerNotFound indicates updating or removing a missing marker.
	ErrMarkerNotFound = errors.New("marker not found")
)

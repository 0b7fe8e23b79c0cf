package engine

import "errors"

const (
	// MinStrokeLength is the bounding-box extent a stroke must exceed to be kept.
	MinStrokeLength = 0.01

	// Epsilon is the tolerance for geometric comparisons.
	Epsilon = 1e-6
)

// Precondition failures: the operation did not start and nothing changed.
var (
	ErrNoCurrentCanvas = errors.New("no current canvas")
	ErrNoSelection     = errors.New("no entities selected")
	ErrNoTarget        = errors.New("no target canvas")
	ErrNotOwned        = errors.New("entity does not belong to this scene")
	ErrNoStroke        = errors.New("no stroke to edit")
	ErrBookmarkRange   = errors.New("bookmark row out of range")
	ErrSessionActive   = errors.New("edit session already active")
	ErrSessionIdle     = errors.New("no active edit session")
	ErrUnknownEvent    = errors.New("unknown pointer event")
)

// ErrGeometry marks data-integrity problems in entity geometry. It is
// logged and degrades to a safe default; it never aborts an operation.
var ErrGeometry = errors.New("geometry warning")

// ErrInvalidDocument is returned when a document record cannot be loaded.
var ErrInvalidDocument = errors.New("invalid scene document")

var preconditions = []error{
	ErrNoCurrentCanvas, ErrNoSelection, ErrNoTarget, ErrNotOwned, ErrNoStroke,
	ErrBookmarkRange, ErrSessionActive, ErrSessionIdle, ErrUnknownEvent,
}

// IsPrecondition reports whether err is a precondition failure.
func IsPrecondition(err error) bool {
	for _, p := range preconditions {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

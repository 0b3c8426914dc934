// Package fluiderr defines the error taxonomy used across the fluid
// simulation core. No exceptions for control flow: every fallible
// operation returns one of these kinds, wrapped with context.
package fluiderr

import "errors"

// Kind classifies a failure the way callers need to react to it.
type Kind int

const (
	// InvalidConfig marks non-power-of-two grid constants, a zero-size
	// world, or an unknown viscosity referenced by an API call.
	InvalidConfig Kind = iota
	// OutOfBounds marks an API-level index outside the addressable
	// grid. Queries that merely fall in the one-voxel sentinel border
	// are NOT errors — see grid.IsBorder.
	OutOfBounds
	// Conflict marks a write attempted while the simulation has not
	// finished draining a previous tick.
	Conflict
	// ResourceExhausted marks a failed allocation of a block's voxel
	// buffers (fluidsim.NewBlock, reached through engine.New). A tick
	// that the engine skips under host memory pressure is logged at
	// WARN and is not reported as this kind.
	ResourceExhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case OutOfBounds:
		return "OutOfBounds"
	case Conflict:
		return "Conflict"
	case ResourceExhausted:
		return "ResourceExhausted"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by the core. Op names the
// failing operation for logs; Err carries the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op with the given kind, optionally wrapping
// cause (may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

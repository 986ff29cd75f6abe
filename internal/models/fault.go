package models

import (
	"errors"
	"fmt"
	"strings"
)

// FaultKind classifies failures by how far their effect reaches.
type FaultKind int

const (
	// FaultUnknown is reported for errors that carry no Fault.
	FaultUnknown FaultKind = iota
	// PersistenceFault: store unreachable, malformed row or constraint
	// violation. Fatal to the session that caused it.
	PersistenceFault
	// IOFault: output directory creation or source stat failed. Fatal to
	// one file.
	IOFault
	// EngineFault: the engine failed to load or raised during execution.
	// Fatal to one file.
	EngineFault
	// WalkFault: a directory entry could not be listed. The subtree is
	// skipped.
	WalkFault
)

// String returns the string representation of FaultKind.
func (k FaultKind) String() string {
	switch k {
	case PersistenceFault:
		return "PersistenceFault"
	case IOFault:
		return "IOFault"
	case EngineFault:
		return "EngineFault"
	case WalkFault:
		return "WalkFault"
	default:
		return "UnknownFault"
	}
}

// Fault is the error type shared by every component.
type Fault struct {
	Kind FaultKind
	Op   string // operation that failed, e.g. "mkdir", "load engine"
	Path string // file or directory involved, optional
	Err  error  // underlying error, optional
}

// NewFault creates a Fault.
func NewFault(kind FaultKind, op, path string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Path: path, Err: err}
}

// Error implements the error interface for Fault.
func (f *Fault) Error() string {
	var sb strings.Builder
	sb.WriteString(f.Kind.String())
	if f.Op != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Op)
	}
	if f.Path != "" {
		sb.WriteString(fmt.Sprintf(" %s", f.Path))
	}
	if f.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", f.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (f *Fault) Unwrap() error {
	return f.Err
}

// FaultKindOf returns the kind of the first Fault in err's chain.
func FaultKindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultUnknown
}

// IsFault reports whether err carries a Fault of the given kind.
func IsFault(err error, kind FaultKind) bool {
	return err != nil && FaultKindOf(err) == kind
}

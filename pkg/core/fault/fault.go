// Package fault classifies failures of the ingestion pipeline.
//
// A fault carries the kind of failure, the pipeline stage and the company
// identifier so batch summaries can attribute it.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the failure category.
type Kind int

const (
	// Fatal aborts the current unit of work (one identifier or one upsert batch).
	Fatal Kind = iota
	// NotFound is a valid absence of data. Never retried, never logged as an error.
	NotFound
	// Transient covers timeouts, rate limiting and unreadable responses.
	Transient
	// Malformed marks a single record that failed validation.
	Malformed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Transient:
		return "transient"
	case Malformed:
		return "malformed"
	default:
		return "fatal"
	}
}

// Stage names used across the pipeline.
const (
	StageResolve = "resolve"
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageStore   = "store"
)

// Error is a classified failure.
type Error struct {
	Kind       Kind
	Stage      string
	Identifier string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Stage != "" && e.Identifier != "":
		return fmt.Sprintf("%s %s: %s", e.Stage, e.Identifier, msg)
	case e.Stage != "":
		return fmt.Sprintf("%s: %s", e.Stage, msg)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind, stage and identifier.
func New(kind Kind, stage, identifier string, err error) error {
	return &Error{Kind: kind, Stage: stage, Identifier: identifier, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, stage, identifier, format string, args ...any) error {
	return New(kind, stage, identifier, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are Fatal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Fatal
}

// StageOf returns the stage of the outermost classified error carrying one.
func StageOf(err error) string {
	for err != nil {
		if fe, ok := err.(*Error); ok && fe.Stage != "" {
			return fe.Stage
		}
		err = errors.Unwrap(err)
	}
	return ""
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == NotFound
}

func IsTransient(err error) bool {
	return err != nil && KindOf(err) == Transient
}

package anicaerr

import "fmt"

// Location pinpoints an error within a textual artifact: an asm seed file, a
// config file, or a serialized abstract block. Line/Column are 1-based; Line
// 0 means "no precise location".
type Location struct {
	File   string
	Line   int
	Column int
}

// Error is AnICA's single structured error type. Every error the core raises
// carries one of the six kinds from spec §7, a stable code, a message, an
// optional cause, and an optional source location for diagnostics that can
// be pinned to a file.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Location Location
	Notes    []string
	Cause    error
}

func (e *Error) Error() string {
	if e.Location.Line > 0 {
		return fmt.Sprintf("%s[%s]: %s (%s:%d:%d)", e.Kind, e.Code, e.Message, e.Location.File, e.Location.Line, e.Location.Column)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Recoverable reports whether this error should be handled locally by the
// core rather than propagated as a fatal command failure.
func (e *Error) Recoverable() bool { return e.Kind.Recoverable() }

// Builder provides a fluent interface for constructing an Error with
// optional notes, mirroring the suggestion/note accumulation style used
// throughout the rest of the toolchain's diagnostics.
type Builder struct {
	err Error
}

// New starts building an error of the given kind and code.
func New(kind Kind, code, message string) *Builder {
	return &Builder{err: Error{Kind: kind, Code: code, Message: message}}
}

func (b *Builder) At(file string, line, column int) *Builder {
	b.err.Location = Location{File: file, Line: line, Column: column}
	return b
}

func (b *Builder) WithNote(note string) *Builder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

func (b *Builder) WithCause(cause error) *Builder {
	b.err.Cause = cause
	return b
}

func (b *Builder) Build() *Error {
	err := b.err
	return &err
}

// Config builds a ConfigError.
func Config(code, message string) *Builder { return New(KindConfig, code, message) }

// IWHO builds an IWHOError.
func IWHO(code, message string) *Builder { return New(KindIWHO, code, message) }

// Sampling builds a SamplingError.
func Sampling(code, message string) *Builder { return New(KindSampling, code, message) }

// Predictor builds a PredictorError.
func Predictor(code, message string) *Builder { return New(KindPredictor, code, message) }

// Discovery builds a DiscoveryError.
func Discovery(code, message string) *Builder { return New(KindDiscovery, code, message) }

// UserAbort builds a UserInterrupt.
func UserAbort(code, message string) *Builder { return New(KindUserAbort, code, message) }

// As reports whether err is (or wraps) an *Error of the given kind, and
// returns it.
func As(err error, kind Kind) (*Error, bool) {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			if ae.Kind == kind {
				return ae, true
			}
			err = ae.Cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

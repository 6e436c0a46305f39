// Package errs provides the structured error envelope shared by the tracker
// packages.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Kind classifies a failure by how callers are expected to react to it.
type Kind string

const (
	// KindNotFound indicates the upstream answered but had nothing for the key.
	KindNotFound Kind = "not_found"
	// KindUpstream indicates a network, timeout, non-2xx or malformed response.
	KindUpstream Kind = "upstream_unavailable"
	// KindDataQuality indicates a record lacking a required identifier.
	KindDataQuality Kind = "data_quality"
	// KindFatal indicates misconfiguration that prevents startup.
	KindFatal Kind = "fatal"
)

// E is the error envelope produced by upstream clients and tracker components.
type E struct {
	Kind   Kind
	Op     string
	Source string
	HTTP   int
	Msg    string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and kind.
func New(op string, kind Kind, opts ...Option) *E {
	e := &E{Op: strings.TrimSpace(op), Kind: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithSource records which upstream produced the failure.
func WithSource(source string) Option {
	return func(e *E) {
		e.Source = strings.TrimSpace(source)
	}
}

// WithHTTP records the HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithMessage attaches a human-readable message.
func WithMessage(msg string) Option {
	trimmed := strings.TrimSpace(msg)
	return func(e *E) {
		e.Msg = trimmed
	}
}

// WithCause sets the underlying cause.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 6)
	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}
	kind := string(e.Kind)
	if kind == "" {
		kind = "unknown"
	}
	parts = append(parts, "kind="+kind)
	if e.Source != "" {
		parts = append(parts, "source="+e.Source)
	}
	if e.HTTP != 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Msg != "" {
		parts = append(parts, "msg="+strconv.Quote(e.Msg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// KindOf returns the kind of the first envelope in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a not-found envelope.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsUpstream reports whether err is an upstream-unavailable envelope.
func IsUpstream(err error) bool {
	return KindOf(err) == KindUpstream
}

// FromStatus maps an upstream HTTP status to an envelope: 404 is NotFound,
// everything else is Upstream.
func FromStatus(op, source string, status int, body string) *E {
	kind := KindUpstream
	if status == 404 {
		kind = KindNotFound
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return New(op, kind, WithSource(source), WithHTTP(status), WithMessage(body))
}

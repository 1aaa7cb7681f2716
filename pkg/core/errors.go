package core

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration error kinds. Match them with errors.Is.
var (
	ErrUnresolvedRef    = errors.New("unresolved reference")
	ErrCycle            = errors.New("dependency cycle")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrInvalidAssertion = errors.New("invalid test declaration")
	ErrDuplicateModel   = errors.New("duplicate model")
	ErrInvalidModel     = errors.New("invalid model definition")
	ErrInvalidConfig    = errors.New("invalid project configuration")
)

// ErrTestsFailed is wrapped by AssertionFailure so callers can exit non-zero.
var ErrTestsFailed = errors.New("tests failed")

// Problem locates a single configuration problem.
type Problem struct {
	// Model is the offending model (may be empty for project-level problems)
	Model string
	// Source is the file the declaration came from, if known
	Source string
	Detail string
}

func (p Problem) String() string {
	var b strings.Builder
	if p.Source != "" {
		b.WriteString(p.Source)
		b.WriteString(": ")
	}
	if p.Model != "" {
		b.WriteString("model ")
		b.WriteString(p.Model)
		b.WriteString(": ")
	}
	b.WriteString(p.Detail)
	return b.String()
}

// ConfigurationError is raised before execution begins. Nothing runs when
// one is returned.
type ConfigurationError struct {
	Kind     error
	Problems []Problem
}

// NewConfigurationError builds a single-problem configuration error.
func NewConfigurationError(kind error, model, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Kind:     kind,
		Problems: []Problem{{Model: model, Detail: fmt.Sprintf(format, args...)}},
	}
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	switch len(e.Problems) {
	case 0:
		return "configuration error: " + e.Kind.Error()
	case 1:
		return fmt.Sprintf("configuration error: %s: %s", e.Kind, e.Problems[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "configuration error: %d %s problems:", len(e.Problems), e.Kind)
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p.String())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Kind }

// MaterializationError reports a model the store rejected. Models completed
// before it stay materialized.
type MaterializationError struct {
	Model           string
	Relation        string
	Materialization Materialization
	Err             error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("model %s failed to materialize as %s %s: %v", e.Model, e.Materialization, e.Relation, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// AssertionFailure aggregates every failing assertion of a test run.
type AssertionFailure struct {
	Failed []*AssertionResult
}

func (e *AssertionFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d test(s) failed:", len(e.Failed))
	for _, r := range e.Failed {
		b.WriteString("\n  - ")
		b.WriteString(r.Assertion.Name)
		if r.Err != nil {
			fmt.Fprintf(&b, ": error: %v", r.Err)
		} else {
			fmt.Fprintf(&b, ": %d failing row(s) for %s", r.Failures, r.Assertion)
		}
	}
	return b.String()
}

func (e *AssertionFailure) Unwrap() error { return ErrTestsFailed }

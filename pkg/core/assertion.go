package core

import (
	"fmt"
	"time"
)

// AssertionKind names a column-level data-quality check.
type AssertionKind string

// Assertion kinds.
const (
	AssertNotNull        AssertionKind = "not_null"
	AssertUnique         AssertionKind = "unique"
	AssertAcceptedValues AssertionKind = "accepted_values"
	AssertRelationships  AssertionKind = "relationships"
)

// ParseAssertionKind validates an assertion kind name.
func ParseAssertionKind(s string) (AssertionKind, error) {
	switch k := AssertionKind(s); k {
	case AssertNotNull, AssertUnique, AssertAcceptedValues, AssertRelationships:
		return k, nil
	default:
		return "", fmt.Errorf("unknown test %q, must be one of: not_null, unique, accepted_values, relationships", s)
	}
}

// Severity controls whether a failing assertion fails the test run.
type Severity string

// Assertion severities.
const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// ParseSeverity validates a severity. Empty means error.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case "", SeverityError:
		return SeverityError, nil
	case SeverityWarn:
		return SeverityWarn, nil
	default:
		return "", fmt.Errorf("invalid severity %q, must be error or warn", s)
	}
}

// Assertion is a declared check bound to one column of one model.
type Assertion struct {
	// Name is the stable identifier, e.g. "not_null_stg_orders_order_id"
	Name   string
	Model  string
	Column string
	Kind   AssertionKind

	// Values is the accepted set for accepted_values
	Values []string
	// Quote renders Values as string literals (default true)
	Quote bool

	// ToModel and ToColumn are the parent side of a relationships check
	ToModel  string
	ToColumn string

	Severity Severity
	// Where optionally restricts the tested rows (SQL predicate)
	Where string

	// Source is the file the declaration came from
	Source string
}

// AssertionName builds the conventional assertion name.
func AssertionName(kind AssertionKind, model, column string) string {
	return fmt.Sprintf("%s_%s_%s", kind, model, column)
}

// String describes the assertion for messages.
func (a *Assertion) String() string {
	switch a.Kind {
	case AssertRelationships:
		return fmt.Sprintf("%s(%s.%s -> %s.%s)", a.Kind, a.Model, a.Column, a.ToModel, a.ToColumn)
	case AssertAcceptedValues:
		return fmt.Sprintf("%s(%s.%s in %v)", a.Kind, a.Model, a.Column, a.Values)
	default:
		return fmt.Sprintf("%s(%s.%s)", a.Kind, a.Model, a.Column)
	}
}

// AssertionStatus is the outcome of evaluating one assertion.
type AssertionStatus string

// Assertion outcomes.
const (
	AssertionPass  AssertionStatus = "pass"
	AssertionFail  AssertionStatus = "fail"
	AssertionWarn  AssertionStatus = "warn"
	AssertionError AssertionStatus = "error"
)

// AssertionResult is the evaluated outcome of one assertion.
type AssertionResult struct {
	Assertion *Assertion
	Status    AssertionStatus
	// Failures is the violating-row count
	Failures int64
	Err      error
	Duration time.Duration
}

// Passed reports whether the result does not fail a test run.
func (r *AssertionResult) Passed() bool {
	return r.Status == AssertionPass || r.Status == AssertionWarn
}

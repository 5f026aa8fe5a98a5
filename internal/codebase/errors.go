package codebase

import (
	"errors"
	"fmt"
)

// unknownCodebaseError signals a lookup for an identifier nobody
// registered. Fatal at Task construction.
type unknownCodebaseError struct{ name string }

func (e unknownCodebaseError) Error() string { return "unknown codebase: " + e.name }

// IsUnknownCodebase reports whether err indicates an unregistered
// codebase identifier.
func IsUnknownCodebase(err error) bool {
	var t unknownCodebaseError
	return errors.As(err, &t)
}

// duplicateRegistrationError signals a second Register under an
// identifier that is already bound.
type duplicateRegistrationError struct{ name string }

func (e duplicateRegistrationError) Error() string {
	return "codebase already registered: " + e.name
}

// IsDuplicateRegistration reports whether err indicates a rebind
// attempt on the registry.
func IsDuplicateRegistration(err error) bool {
	var t duplicateRegistrationError
	return errors.As(err, &t)
}

// invalidNameError signals a Register call with an unusable
// identifier.
type invalidNameError struct{ reason string }

func (e invalidNameError) Error() string { return "invalid codebase name: " + e.reason }

// IsInvalidName reports whether err indicates an unusable registration
// identifier.
func IsInvalidName(err error) bool {
	var t invalidNameError
	return errors.As(err, &t)
}

// backendLoadError signals a missing or corrupt backend artifact.
// Unrecoverable for the task that requested it.
type backendLoadError struct {
	path  string
	cause error
}

func (e backendLoadError) Error() string {
	return fmt.Sprintf("load backend model %s: %v", e.path, e.cause)
}

func (e backendLoadError) Unwrap() error { return e.cause }

// ErrBackendLoad wraps a backend artifact failure for path.
func ErrBackendLoad(path string, cause error) error {
	return backendLoadError{path: path, cause: cause}
}

// IsBackendLoadError reports whether err indicates a backend artifact
// that could not be loaded.
func IsBackendLoadError(err error) bool {
	var t backendLoadError
	return errors.As(err, &t)
}

// checkpointLoadError signals an unreadable or shape-incompatible
// reference-model checkpoint.
type checkpointLoadError struct {
	path  string
	cause error
}

func (e checkpointLoadError) Error() string {
	return fmt.Sprintf("load checkpoint %s: %v", e.path, e.cause)
}

func (e checkpointLoadError) Unwrap() error { return e.cause }

// ErrCheckpointLoad wraps a checkpoint failure for path.
func ErrCheckpointLoad(path string, cause error) error {
	return checkpointLoadError{path: path, cause: cause}
}

// IsCheckpointLoadError reports whether err indicates a checkpoint that
// could not be loaded.
func IsCheckpointLoadError(err error) bool {
	var t checkpointLoadError
	return errors.As(err, &t)
}

// unsupportedInputError signals image data the plugin cannot decode.
// Per-sample: evaluation keeps going and produces partial results.
type unsupportedInputError struct {
	name  string
	cause error
}

func (e unsupportedInputError) Error() string {
	return fmt.Sprintf("unsupported input %s: %v", e.name, e.cause)
}

func (e unsupportedInputError) Unwrap() error { return e.cause }

// ErrUnsupportedInput wraps an undecodable image identified by name.
func ErrUnsupportedInput(name string, cause error) error {
	return unsupportedInputError{name: name, cause: cause}
}

// IsUnsupportedInput reports whether err indicates image data the
// plugin could not decode.
func IsUnsupportedInput(err error) bool {
	var t unsupportedInputError
	return errors.As(err, &t)
}

// unsupportedMetricError signals a metric name the domain does not
// recognize. Misconfiguration: fail before running inference.
type unsupportedMetricError struct {
	codebase string
	metric   string
}

func (e unsupportedMetricError) Error() string {
	return "unsupported metric for " + e.codebase + ": " + e.metric
}

// ErrUnsupportedMetric reports metric as unknown to codebase name.
func ErrUnsupportedMetric(codebase, metric string) error {
	return unsupportedMetricError{codebase: codebase, metric: metric}
}

// IsUnsupportedMetric reports whether err indicates an unrecognized
// metric name.
func IsUnsupportedMetric(err error) bool {
	var t unsupportedMetricError
	return errors.As(err, &t)
}

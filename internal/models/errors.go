package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by services and handlers. Handlers map these to
// HTTP responses with errors.Is, services wrap them with context.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrConfiguration      = errors.New("required configuration is missing")
	ErrUpstream           = errors.New("upstream provider returned an error")
	ErrValidation         = errors.New("request validation failed")
	ErrDependencyNotReady = errors.New("required dependency is not ready")
	ErrStepNotReady       = errors.New("wizard step is not ready")
	ErrBatchCancelled     = errors.New("generation batch cancelled")
	ErrBatchInProgress    = errors.New("a generation batch is already running for this production")
)

// ConfigurationError reports a missing credential or environment value.
// Never retried; the message carries a remediation hint for the operator.
type ConfigurationError struct {
	Key  string
	Hint string
}

func (e *ConfigurationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("configuration value %s is not set (%s)", e.Key, e.Hint)
	}
	return fmt.Sprintf("configuration value %s is not set", e.Key)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UpstreamError carries the status code and body text returned by a
// generation or storage provider.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DependencyNotReadyError aborts a whole batch when prerequisite data is
// missing, e.g. video generation requested for segments without finished
// audio. Missing lists the offending segment indices.
type DependencyNotReadyError struct {
	Step    WizardStep
	Missing []int
	Reason  string
}

func (e *DependencyNotReadyError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("step %s: %s", e.Step, e.Reason)
	}
	parts := make([]string, len(e.Missing))
	for i, idx := range e.Missing {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("step %s: %s (segments %s)", e.Step, e.Reason, strings.Join(parts, ", "))
}

func (e *DependencyNotReadyError) Unwrap() error { return ErrDependencyNotReady }

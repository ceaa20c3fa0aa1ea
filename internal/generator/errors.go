package generator

import "fmt"

// InvalidReason tells apart the ways a generate or refine request can be
// rejected before reaching the gateway.
type InvalidReason string

const (
	ReasonMissingFilename  InvalidReason = "missing_filename"
	ReasonEmptyFeedback    InvalidReason = "empty_feedback"
	ReasonMissingCode      InvalidReason = "missing_code"
	ReasonArtifactNotFound InvalidReason = "artifact_not_found"
	ReasonSpecNotFound     InvalidReason = "spec_not_found"
)

// InvalidInputError is returned for requests that cannot be served as given.
type InvalidInputError struct {
	Reason  InvalidReason
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

// NotFound reports whether the request referred to something that is not stored.
func (e *InvalidInputError) NotFound() bool {
	return e.Reason == ReasonArtifactNotFound || e.Reason == ReasonSpecNotFound
}

func invalidInput(reason InvalidReason, format string, args ...any) error {
	return &InvalidInputError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// GenerationError reports a gateway failure or an empty generation result.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return e.Op + ": generation returned an empty result"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

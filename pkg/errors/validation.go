package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateID validates an identifier arriving on the wire (node, edge
// endpoint, pipeline). It rejects values that could not have been produced
// by a well-formed snapshot export.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters
//   - No null bytes
//   - Maximum length of 256 characters
//
// Kind-specific validation should be done separately by the snapshot decoder.
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "identifier cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "identifier too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "identifier contains invalid control characters")
		}
	}

	if strings.Contains(id, "\x00") {
		return New(ErrCodeInvalidInput, "identifier contains null byte")
	}

	return nil
}

// nodeIDRegex matches node identifiers as emitted by pipeline exporters:
// hex digests, dotted names, and namespaced dataset names.
var nodeIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@/-]*$`)

// ValidateNodeID validates a node identifier.
func ValidateNodeID(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	if !nodeIDRegex.MatchString(id) {
		return New(ErrCodeInvalidNode, "invalid node identifier: %q", id)
	}

	return nil
}

// pipelineIDRegex matches modular pipeline identifiers, which are
// dot-separated namespaces.
var pipelineIDRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidatePipelineID validates a modular pipeline identifier.
func ValidatePipelineID(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	if !pipelineIDRegex.MatchString(id) {
		return New(ErrCodeInvalidPipeline, "invalid pipeline identifier: %q", id)
	}

	return nil
}

// ValidateTag validates a tag name.
// Tags are free-form labels but must be printable and reasonably short.
func ValidateTag(tag string) error {
	if tag == "" {
		return New(ErrCodeInvalidInput, "tag cannot be empty")
	}

	if len(tag) > 128 {
		return New(ErrCodeInvalidInput, "tag too long (max 128 characters)")
	}

	for _, r := range tag {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "tag contains invalid control characters: %q", tag)
		}
	}

	return nil
}

// metricNameRegex matches tracked metric names (dotted, like node ids).
var metricNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// ValidateMetricName validates a tracked metric name.
func ValidateMetricName(name string) error {
	if err := ValidateID(name); err != nil {
		return err
	}

	if !metricNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid metric name: %q", name)
	}

	return nil
}

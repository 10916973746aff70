package loader

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadError wraps a YAML load failure with the file path, matching
// spec.md §4.4's "surfaced with file path and a structured cause"
// requirement.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// decodeStrict parses data into out, rejecting unknown fields.
func decodeStrict(path string, data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return &LoadError{Path: path, Cause: err}
	}
	return nil
}

// loadFileIfPresent reads and strictly decodes path into out. It returns
// (false, nil) when the file does not exist, so callers can implement
// stack.yml > scope.yml > default precedence.
func loadFileIfPresent(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &LoadError{Path: path, Cause: err}
	}
	if err := decodeStrict(path, data, out); err != nil {
		return false, err
	}
	return true, nil
}

package tool

import "fmt"

// Param validation helpers shared by the tool implementations. Validation
// failures go back to the model as error payloads, so the messages are
// written for an LLM to read and correct.

// RequireField rejects an empty string value.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("'%s' is required", name)
	}
	return nil
}

// ValidateRange rejects values outside [min, max].
func ValidateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be %d-%d", name, min, max)
	}
	return nil
}

// ValidateAll returns the first failing check.
func ValidateAll(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

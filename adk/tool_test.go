package adk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolErrorWrapsSentinelsForErrorsIs(t *testing.T) {
	cases := []struct {
		name string
		err  *ToolError
		want error
	}{
		{"missing", NewMissingParameterError("t1", "prompt"), ErrMissingParameter},
		{"invalid", NewInvalidParameterError("t1", "prompt", "must not be empty"), ErrInvalidParameter},
		{"execution", NewExecutionFailedError("t1", "boom"), ErrExecutionFailed},
		{"timeout", NewToolTimeoutError("t1"), ErrToolTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, tc.want))
		})
	}
}

func TestToolErrorMessageIncludesParamWhenPresent(t *testing.T) {
	err := NewInvalidParameterError("structured-output", "schema", "not an object")
	assert.Contains(t, err.Error(), "structured-output")
	assert.Contains(t, err.Error(), "schema")
	assert.Contains(t, err.Error(), "not an object")
}

func TestToolErrorMessageOmitsParamWhenAbsent(t *testing.T) {
	err := NewExecutionFailedError("structured-output", "generator returned no structured response")
	assert.NotContains(t, err.Error(), "\"\"")
	assert.Contains(t, err.Error(), "generator returned no structured response")
}

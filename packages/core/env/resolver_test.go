package env

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResolverResolve(t *testing.T) {
	t.Setenv("RESTEXEC_TOKEN", "s3cret")

	tests := []struct {
		name      string
		input     string
		variables map[string]any
		captures  map[string]string
		expected  string
	}{
		{name: "no variables", input: "hello world", expected: "hello world"},
		{
			name:      "simple variable",
			input:     "hello {{name}}",
			variables: map[string]any{"name": "world"},
			expected:  "hello world",
		},
		{
			name:      "padded expression",
			input:     "/users/{{ id }}",
			variables: map[string]any{"id": 7},
			expected:  "/users/7",
		},
		{
			name:     "environment variable",
			input:    "Bearer {{$RESTEXEC_TOKEN}}",
			expected: "Bearer s3cret",
		},
		{
			name:     "capture by step",
			input:    "/projects/{{login.projectId}}",
			captures: map[string]string{"login": "projectId"},
			expected: "/projects/captured",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}} {{$RESTEXEC_MISSING_VAR}} {{nope()}}",
			expected: "hello {{unknown}} {{$RESTEXEC_MISSING_VAR}} {{nope()}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			for step, name := range tt.captures {
				r.SetCapture(step, name, "captured")
			}
			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolverFunctions(t *testing.T) {
	r := NewResolver()

	id := r.Resolve("{{uuid()}}")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, r.Resolve("{{uuid()}}"))

	assert.Regexp(t, `^\d+$`, r.Resolve("{{timestamp()}}"))
	assert.NotContains(t, r.Resolve("{{now()}}"), "{{")
}

func TestResolverUnresolved(t *testing.T) {
	r := NewResolver()
	r.SetStringVariables(map[string]string{"bar": "middle"})
	r.SetCapture("setup", "projectId", "1")

	assert.Equal(t, []string{"foo", "baz"}, r.GetUnresolvedVariables("{{foo}} {{bar}} {{baz}} {{projectId}} {{setup.projectId}}"))
	assert.False(t, r.HasUnresolvedVariables("{{bar}} {{uuid()}}"))
	assert.True(t, r.HasUnresolvedVariables("{{other.projectId}}"))
	assert.Nil(t, r.GetUnresolvedVariables("plain"))
}

func TestResolverWarnings(t *testing.T) {
	r := NewResolver()
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, format)
	})

	r.Resolve("{{missing}}")
	assert.Len(t, warnings, 1)

	v, ok := r.GetVariable("missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

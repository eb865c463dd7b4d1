package expression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngine_Evaluate(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name     string
		expr     string
		env      map[string]interface{}
		expected interface{}
		wantErr  bool
	}{
		{
			name:     "Simple Math",
			expr:     "1 + 1",
			env:      nil,
			expected: 2,
		},
		{
			name:     "Field Access",
			expr:     "data.amount > 100",
			env:      map[string]interface{}{"data": map[string]interface{}{"amount": 250}},
			expected: true,
		},
		{
			name:     "Nested Access",
			expr:     "data.applicant.name",
			env:      map[string]interface{}{"data": map[string]interface{}{"applicant": map[string]interface{}{"name": "Acme"}}},
			expected: "Acme",
		},
		{
			name:     "Date Function",
			expr:     "TODAY()",
			env:      nil,
			expected: time.Now().Format("2006-01-02"),
		},
		{
			name:     "String Function",
			expr:     "UPPER(data.status)",
			env:      map[string]interface{}{"data": map[string]interface{}{"status": "open"}},
			expected: "OPEN",
		},
		{
			name:     "Ternary",
			expr:     "data.score > 50 ? 'Pass' : 'Fail'",
			env:      map[string]interface{}{"data": map[string]interface{}{"score": 80}},
			expected: "Pass",
		},
		{
			name:     "Coalesce Empty String",
			expr:     "COALESCE(data.nickname, data.name)",
			env:      map[string]interface{}{"data": map[string]interface{}{"nickname": "", "name": "Jo"}},
			expected: "Jo",
		},
		{
			name:    "Invalid Expression",
			expr:    "data ..",
			env:     map[string]interface{}{"data": map[string]interface{}{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Evaluate(tt.expr, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestEngine_EvaluateString(t *testing.T) {
	e := NewEngine()

	out, err := e.EvaluateString("data.amount", map[string]interface{}{"data": map[string]interface{}{"amount": 42}})
	assert.NoError(t, err)
	assert.Equal(t, "42", out)
}

func TestEngine_ProgramCache(t *testing.T) {
	e := NewEngine()
	env := map[string]interface{}{"x": 1}

	_, err := e.Evaluate("x + 1", env)
	assert.NoError(t, err)

	// Second evaluation hits the cache
	result, err := e.Evaluate("x + 1", env)
	assert.NoError(t, err)
	assert.Equal(t, 2, result)
	assert.Len(t, e.programCache, 1)
}

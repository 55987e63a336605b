package optimizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/internal/instruction"
)

func completeDocument() instruction.Document {
	return instruction.Document{
		Identity: instruction.Identity{
			Persona:      "You are an expert reviewer of production systems.",
			Capabilities: []string{"code review", "testing"},
			Constraints:  []string{"never guess"},
		},
		Parameters: instruction.Parameters{
			Expertise: "software engineering",
			Custom:    map[string]string{"code_style": "idiomatic"},
		},
		Execution: instruction.Execution{
			Directives: []instruction.Directive{instruction.Plain("Review every change.")},
			Steps:      []instruction.Step{instruction.PlainStep("Analyze the diff.")},
		},
		ErrorHandling: instruction.ErrorHandling{Fallback: "ask the user"},
		AgentLoop:     instruction.AgentLoop{Analyze: "Read the change."},
	}
}

func TestScore_CompleteDocument(t *testing.T) {
	doc := completeDocument()

	q := Score(&doc, 300)

	assert.Equal(t, 1.0, q.Completeness)
	assert.Equal(t, 1.0, q.Clarity)
	assert.Equal(t, 1.0, q.Specificity)
	assert.Equal(t, 1.0, q.Efficiency)
	assert.InDelta(t, 1.0, q.Score, 1e-9)
	assert.Empty(t, q.Feedback)
}

func TestScore_EmptyDocument(t *testing.T) {
	var doc instruction.Document

	q := Score(&doc, 0)

	assert.GreaterOrEqual(t, q.Score, 0.0)
	assert.LessOrEqual(t, q.Score, 1.0)
	assert.NotEmpty(t, q.Feedback)

	// Every completeness defect fires: 1 - 0.2 - 0.2 - 0.1 - 0.1 - 0.1.
	assert.InDelta(t, 0.3, q.Completeness, 1e-9)
}

func TestScore_Deductions(t *testing.T) {
	t.Run("missing persona", func(t *testing.T) {
		doc := completeDocument()
		doc.Identity.Persona = ""

		q := Score(&doc, 300)

		assert.InDelta(t, 0.8, q.Completeness, 1e-9)
		assert.Contains(t, q.Feedback[0], "persona")
	})

	t.Run("short persona hurts clarity", func(t *testing.T) {
		doc := completeDocument()
		doc.Identity.Persona = "helper"

		q := Score(&doc, 300)

		assert.InDelta(t, 0.9, q.Clarity, 1e-9)
	})

	t.Run("vague phrasing hurts clarity", func(t *testing.T) {
		doc := completeDocument()
		doc.Execution.Directives = []instruction.Directive{
			instruction.Plain("Handle edge cases, errors, etc."),
		}

		q := Score(&doc, 300)

		assert.InDelta(t, 0.9, q.Clarity, 1e-9)
	})

	t.Run("no constraints hurts specificity", func(t *testing.T) {
		doc := completeDocument()
		doc.Identity.Constraints = nil

		q := Score(&doc, 300)

		assert.InDelta(t, 0.9, q.Specificity, 1e-9)
	})
}

func TestScore_TokenTiers(t *testing.T) {
	doc := completeDocument()

	tests := []struct {
		name       string
		tokens     int
		efficiency float64
	}{
		{"under 500", 500, 1.0},
		{"over 500", 501, 0.9},
		{"over 700", 800, 0.8},
		{"over 1000", 1500, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Score(&doc, tt.tokens)
			assert.InDelta(t, tt.efficiency, q.Efficiency, 1e-9)

			// Only the highest tier fires, so never more than one
			// efficiency feedback entry.
			count := 0
			for _, f := range q.Feedback {
				if containsToken(f) {
					count++
				}
			}
			assert.LessOrEqual(t, count, 1)
		})
	}
}

func containsToken(s string) bool {
	return strings.Contains(s, "tokens")
}

func TestScore_BoundedUnderStackedDefects(t *testing.T) {
	doc := instruction.Document{
		Identity: instruction.Identity{Persona: "x"},
	}

	q := Score(&doc, 5000)

	for _, v := range []float64{q.Score, q.Completeness, q.Clarity, q.Specificity, q.Efficiency} {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
}

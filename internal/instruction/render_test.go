package instruction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SectionOrder(t *testing.T) {
	doc := sampleTemplate().Document
	out := Render(&doc, nil)

	headers := []string{"## Identity", "## Parameters", "## Context", "## Execution", "## Error Handling", "## Agent Loop"}
	last := -1
	for _, h := range headers {
		idx := strings.Index(out, h)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", h)
		assert.Greater(t, idx, last, "section %q out of order", h)
		last = idx
	}
}

func TestRender_EmptyDocument(t *testing.T) {
	var doc Document
	assert.Equal(t, "", Render(&doc, nil))
}

func TestRender_OmitsEmptySections(t *testing.T) {
	doc := Document{
		Identity: Identity{Persona: "You are a research assistant."},
	}

	out := Render(&doc, nil)

	assert.Contains(t, out, "## Identity")
	assert.NotContains(t, out, "## Parameters")
	assert.NotContains(t, out, "## Execution")
}

func TestRender_GuardedDirectives(t *testing.T) {
	doc := Document{
		Context: Context{
			Custom: map[string]string{"programming_language": "go"},
		},
		Execution: Execution{
			Directives: []Directive{
				Plain("Always explain your reasoning."),
				Conditional("Use gofmt formatting.", "programming_language == 'go'"),
				Conditional("Use black formatting.", "programming_language == 'python'"),
				Conditional("This never renders.", "broken =="),
			},
		},
	}

	out := Render(&doc, nil)

	assert.Contains(t, out, "Always explain your reasoning.")
	assert.Contains(t, out, "Use gofmt formatting.")
	assert.NotContains(t, out, "Use black formatting.")
	assert.NotContains(t, out, "This never renders.")
}

func TestRender_ExtraContextOverridesDocument(t *testing.T) {
	doc := Document{
		Context: Context{
			Custom: map[string]string{"priority_mode": "quality"},
		},
		Execution: Execution{
			Directives: []Directive{
				Conditional("Prefer speed over polish.", "priority_mode == 'speed'"),
			},
		},
	}

	withoutExtra := Render(&doc, nil)
	assert.NotContains(t, withoutExtra, "Prefer speed over polish.")

	withExtra := Render(&doc, map[string]string{"priority_mode": "speed"})
	assert.Contains(t, withExtra, "Prefer speed over polish.")
}

func TestRender_NumberedSteps(t *testing.T) {
	doc := Document{
		Execution: Execution{
			Steps: []Step{
				PlainStep("Analyze the input."),
				PlainStep("Implement the change."),
				PlainStep("Validate the result."),
			},
		},
	}

	out := Render(&doc, nil)

	assert.Contains(t, out, "1. Analyze the input.")
	assert.Contains(t, out, "2. Implement the change.")
	assert.Contains(t, out, "3. Validate the result.")
}

func TestRender_StepNumberingSkipsDroppedSteps(t *testing.T) {
	doc := Document{
		Execution: Execution{
			Steps: []Step{
				PlainStep("First step."),
				ConditionalStep("Hidden step.", "missing_key"),
				PlainStep("Second step."),
			},
		},
	}

	out := Render(&doc, nil)

	assert.Contains(t, out, "1. First step.")
	assert.Contains(t, out, "2. Second step.")
	assert.NotContains(t, out, "Hidden step.")
	assert.NotContains(t, out, "3.")
}

func TestRender_ContextFieldsAvailableToConditions(t *testing.T) {
	doc := Document{
		Context: Context{
			Project:  "billing",
			Priority: "speed",
		},
		Execution: Execution{
			Directives: []Directive{
				Conditional("Billing rules apply.", "project == 'billing' and priority == 'speed'"),
			},
		},
	}

	out := Render(&doc, nil)
	assert.Contains(t, out, "Billing rules apply.")
}

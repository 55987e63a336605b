package instruction

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTemplate() Template {
	return Template{
		ID:      "software-development/standard",
		Version: 3,
		Document: Document{
			Identity: Identity{
				Persona:      "You are an expert software engineer.",
				Capabilities: []string{"code review", "debugging"},
				Constraints:  []string{"never invent APIs"},
			},
			Parameters: Parameters{
				Intelligence: "high",
				Verbosity:    "concise",
				Expertise:    "software engineering",
				Custom:       map[string]string{"code_style": "idiomatic"},
			},
			Context: Context{
				Priority: "quality",
				Custom:   map[string]string{"programming_language": "go"},
			},
			Execution: Execution{
				Directives: []Directive{
					Plain("Prefer small, reviewable changes."),
					Conditional("Follow go conventions.", "programming_language == 'go'"),
				},
				Steps: []Step{
					PlainStep("Analyze the requirements."),
					ConditionalStep("Run the test suite.", "task_type == 'debugging'"),
				},
			},
			ErrorHandling: ErrorHandling{
				Strategies: []Strategy{{Name: "retry", Action: "retry once with backoff"}},
				Fallback:   "ask the user",
				Recovery:   "summarize what failed",
			},
			AgentLoop: AgentLoop{
				Analyze: "Understand the task.",
				Plan:    "Outline the approach.",
				Execute: "Carry out the plan.",
				Reflect: "Check the result.",
			},
		},
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	original := sampleTemplate()

	data, err := MarshalTemplate(original)
	require.NoError(t, err)

	parsed, err := UnmarshalTemplate(data)
	require.NoError(t, err)

	if diff := cmp.Diff(original, parsed); diff != "" {
		t.Errorf("template changed across round trip (-want +got):\n%s", diff)
	}
}

func TestMarshalTemplate_StableOutput(t *testing.T) {
	tmpl := sampleTemplate()

	first, err := MarshalTemplate(tmpl)
	require.NoError(t, err)
	second, err := MarshalTemplate(tmpl)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestMarshalTemplate_OmitsEmptySections(t *testing.T) {
	tmpl := Template{
		ID: "minimal",
		Document: Document{
			Identity: Identity{Persona: "You are a helpful assistant."},
		},
	}

	data, err := MarshalTemplate(tmpl)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "<identity>")
	assert.NotContains(t, out, "<parameters")
	assert.NotContains(t, out, "<execution>")
	assert.NotContains(t, out, "<agent-loop>")
}

func TestUnmarshalTemplate(t *testing.T) {
	t.Run("conditions survive as attributes", func(t *testing.T) {
		src := `<template id="t" version="1">
  <execution>
    <directive condition="language == 'go'">Use gofmt.</directive>
    <directive>Always cite sources.</directive>
    <step condition="task_type == 'testing'">Write table tests.</step>
  </execution>
</template>`

		tmpl, err := UnmarshalTemplate([]byte(src))
		require.NoError(t, err)

		require.Len(t, tmpl.Document.Execution.Directives, 2)
		assert.Equal(t, "language == 'go'", tmpl.Document.Execution.Directives[0].Condition)
		assert.Equal(t, "Use gofmt.", tmpl.Document.Execution.Directives[0].Text)
		assert.Empty(t, tmpl.Document.Execution.Directives[1].Condition)

		require.Len(t, tmpl.Document.Execution.Steps, 1)
		assert.Equal(t, "task_type == 'testing'", tmpl.Document.Execution.Steps[0].Condition)
	})

	t.Run("whitespace around text is trimmed", func(t *testing.T) {
		src := `<template>
  <identity>
    <persona>
      You are a data analyst.
    </persona>
  </identity>
</template>`

		tmpl, err := UnmarshalTemplate([]byte(src))
		require.NoError(t, err)
		assert.Equal(t, "You are a data analyst.", tmpl.Document.Identity.Persona)
	})

	t.Run("malformed XML errors", func(t *testing.T) {
		_, err := UnmarshalTemplate([]byte("<template><identity></template>"))
		assert.Error(t, err)
	})
}

func TestDocumentClone(t *testing.T) {
	original := sampleTemplate().Document
	clone := original.Clone()

	clone.Identity.Capabilities[0] = "changed"
	clone.Parameters.Custom["code_style"] = "changed"
	clone.Execution.Directives[0].Text = "changed"
	clone.ErrorHandling.Strategies[0].Name = "changed"

	assert.Equal(t, "code review", original.Identity.Capabilities[0])
	assert.Equal(t, "idiomatic", original.Parameters.Custom["code_style"])
	assert.Equal(t, "Prefer small, reviewable changes.", original.Execution.Directives[0].Text)
	assert.Equal(t, "retry", original.ErrorHandling.Strategies[0].Name)
}

func TestDocumentIsEmpty(t *testing.T) {
	var d Document
	assert.True(t, d.IsEmpty())

	d.Execution.Directives = []Directive{Plain("x")}
	assert.False(t, d.IsEmpty())

	full := sampleTemplate().Document
	assert.False(t, full.IsEmpty())
}

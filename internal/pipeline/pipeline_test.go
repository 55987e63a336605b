package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/internal/analytics"
	"promptforge/internal/classifier"
	"promptforge/internal/instruction"
	"promptforge/internal/optimizer"
	"promptforge/internal/store"
)

// captureSink records events in memory for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (s *captureSink) Record(event analytics.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) all() []analytics.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]analytics.Event(nil), s.events...)
}

// panicStore simulates an internal failure deep in a stage.
type panicStore struct{}

func (panicStore) Lookup(string) (instruction.Template, bool) {
	panic("store exploded")
}

func testStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	s.Replace([]instruction.Template{
		{
			ID: "software-development/standard",
			Document: instruction.Document{
				Identity: instruction.Identity{
					Persona:      "You are an expert software engineer.",
					Capabilities: []string{"debugging", "code review"},
					Constraints:  []string{"never invent APIs"},
				},
				Parameters: instruction.Parameters{Expertise: "software engineering"},
				Execution: instruction.Execution{
					Directives: []instruction.Directive{
						instruction.Plain("Explain the root cause before the fix."),
					},
					Steps: []instruction.Step{
						instruction.PlainStep("Analyze the failure."),
						instruction.PlainStep("Implement the fix."),
						instruction.PlainStep("Test the change."),
					},
				},
				ErrorHandling: instruction.ErrorHandling{Fallback: "ask for more detail"},
				AgentLoop:     instruction.AgentLoop{Analyze: "Read the report.", Execute: "Apply the fix."},
			},
		},
		{
			ID: "software-development/debugging",
			Document: instruction.Document{
				Execution: instruction.Execution{
					Directives: []instruction.Directive{
						instruction.Plain("Reproduce the bug before changing code."),
					},
				},
			},
		},
		{
			ID: "language/python",
			Document: instruction.Document{
				Execution: instruction.Execution{
					Directives: []instruction.Directive{
						instruction.Conditional("Follow PEP 8.", "programming_language == 'python'"),
					},
				},
			},
		},
		{
			ID: "general/default",
			Document: instruction.Document{
				Identity: instruction.Identity{Persona: "You are a helpful generalist."},
			},
		},
	})
	return s
}

func TestConstruct_EndToEnd(t *testing.T) {
	sink := &captureSink{}
	p := New(testStore(t), WithSink(sink))

	result := p.Construct(context.Background(), Request{
		Task: "Fix a bug in my Python script that crashes on startup",
	})

	require.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.PromptID)

	assert.Equal(t, classifier.CategorySoftwareDevelopment, result.Classification.Category)
	assert.Equal(t, []string{
		"software-development/standard",
		"software-development/debugging",
		"language/python",
	}, result.TemplateIDs)

	assert.Contains(t, result.Prompt, "You are an expert software engineer.")
	assert.Contains(t, result.Prompt, "Reproduce the bug before changing code.")
	// The python condition holds because the classifier extracted the language.
	assert.Contains(t, result.Prompt, "Follow PEP 8.")

	assert.Greater(t, result.TokenCount, 0)
	assert.Greater(t, result.QualityScore, 0.0)
	assert.LessOrEqual(t, result.QualityScore, 1.0)
	assert.Greater(t, result.Elapsed.Nanoseconds(), int64(0))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, result.PromptID, events[0].PromptID)
	assert.Equal(t, result.TemplateIDs, events[0].TemplateIDs)
	assert.Equal(t, result.TokenCount, events[0].TokenCount)
}

func TestConstruct_PreferredTemplate(t *testing.T) {
	p := New(testStore(t), WithSink(analytics.NopSink{}))

	result := p.Construct(context.Background(), Request{
		Task:        "Fix a bug in my Python script",
		Preferences: map[string]any{"preferred_template_id": "general/default"},
	})

	require.True(t, result.Success)
	assert.Equal(t, []string{"general/default"}, result.TemplateIDs)
	assert.Contains(t, result.Prompt, "You are a helpful generalist.")
}

func TestConstruct_CallerContextFlowsIntoPrompt(t *testing.T) {
	p := New(testStore(t), WithSink(analytics.NopSink{}))

	result := p.Construct(context.Background(), Request{
		Task: "Fix a bug in my Python script",
		Context: map[string]any{
			"project":  "billing",
			"priority": "speed",
		},
	})

	require.True(t, result.Success)
	assert.Contains(t, result.Prompt, "Project: billing")
	assert.Contains(t, result.Prompt, "Priority: speed")
}

func TestConstruct_EmptySelectionStillSucceeds(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	p := New(s, WithSink(analytics.NopSink{}))

	result := p.Construct(context.Background(), Request{Task: "Fix a bug in my code"})

	require.True(t, result.Success)
	assert.Empty(t, result.TemplateIDs)
	assert.NotEmpty(t, result.PromptID)
	// No templates means a sparse prompt and low quality, never a failure.
	assert.LessOrEqual(t, result.QualityScore, 1.0)
}

func TestConstruct_EmptyTaskDegrades(t *testing.T) {
	p := New(testStore(t), WithSink(analytics.NopSink{}))

	result := p.Construct(context.Background(), Request{Task: ""})

	require.True(t, result.Success)
	assert.Equal(t, classifier.CategoryGeneral, result.Classification.Category)
}

func TestConstruct_PanicBecomesFailure(t *testing.T) {
	p := New(panicStore{}, WithSink(analytics.NopSink{}))

	result := p.Construct(context.Background(), Request{
		Task:        "Fix a bug",
		Preferences: map[string]any{"preferred_template_id": "anything"},
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "construction failed")
	assert.Contains(t, result.Error, "store exploded")
	assert.Empty(t, result.Prompt)
	assert.NotEmpty(t, result.PromptID)
	assert.GreaterOrEqual(t, result.Elapsed.Nanoseconds(), int64(0))
}

func TestConstruct_CancelledContext(t *testing.T) {
	p := New(testStore(t), WithSink(analytics.NopSink{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.Construct(ctx, Request{Task: "Fix a bug"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "context canceled")
}

func TestConstruct_OptimizationLevels(t *testing.T) {
	p := New(testStore(t), WithSink(analytics.NopSink{}))
	task := "Fix a bug in my Python script that crashes on startup"

	minimal := p.Construct(context.Background(), Request{Task: task, Level: optimizer.LevelMinimal})
	aggressive := p.Construct(context.Background(), Request{Task: task, Level: optimizer.LevelAggressive})

	require.True(t, minimal.Success)
	require.True(t, aggressive.Success)

	assert.LessOrEqual(t, aggressive.TokenCount, minimal.TokenCount)
	// Aggressive keeps only essential workflow steps.
	assert.NotContains(t, aggressive.Prompt, "Reflect:")
}

func TestConstruct_ConcurrentRequests(t *testing.T) {
	sink := &captureSink{}
	p := New(testStore(t), WithSink(sink))

	tasks := []string{
		"Fix a bug in my Python script",
		"Analyze this csv dataset for trends",
		"Write a blog article about testing",
		"Plan the next sprint backlog",
	}

	var wg sync.WaitGroup
	results := make([]Result, len(tasks)*4)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Construct(context.Background(), Request{Task: tasks[i%len(tasks)]})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range results {
		assert.True(t, r.Success)
		assert.False(t, seen[r.PromptID], "prompt IDs must be unique")
		seen[r.PromptID] = true
	}
	assert.Len(t, sink.all(), len(results))
}

func TestConstruct_PromptIsRenderedMarkdown(t *testing.T) {
	p := New(testStore(t), WithSink(analytics.NopSink{}))

	result := p.Construct(context.Background(), Request{
		Task: "Fix a bug in my Python script that crashes on startup",
	})

	require.True(t, result.Success)
	lines := strings.Split(result.Prompt, "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "## "), "prompt starts with a section header")
}

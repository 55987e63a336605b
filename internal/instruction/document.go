// Package instruction defines the structured instruction document: the
// central artifact the pipeline classifies toward, composes from templates,
// optimizes, and finally flattens into prompt text for a language model.
package instruction

// Directive is a declarative rule attached to the execution section. A
// directive is either plain (empty Condition) or guarded by a restricted
// condition expression over context keys. It is never both.
type Directive struct {
	Text      string `xml:",chardata"`
	Condition string `xml:"condition,attr,omitempty"`
}

// Step is an ordered procedural instruction, with the same plain/guarded
// shape as Directive. Unlike directives, step order and repetition are
// meaningful.
type Step struct {
	Text      string `xml:",chardata"`
	Condition string `xml:"condition,attr,omitempty"`
}

// Plain returns an unconditional directive.
func Plain(text string) Directive {
	return Directive{Text: text}
}

// Conditional returns a directive guarded by a condition expression.
func Conditional(text, condition string) Directive {
	return Directive{Text: text, Condition: condition}
}

// PlainStep returns an unconditional workflow step.
func PlainStep(text string) Step {
	return Step{Text: text}
}

// ConditionalStep returns a workflow step guarded by a condition expression.
func ConditionalStep(text, condition string) Step {
	return Step{Text: text, Condition: condition}
}

// Identity describes who the downstream model should be.
type Identity struct {
	Persona      string
	Capabilities []string
	Constraints  []string
}

// Parameters holds the five enumerated generation knobs plus open extension
// parameters. The knobs are free strings with conventional values
// ("high"/"standard", "concise"/"detailed", ...); templates decide the
// vocabulary.
type Parameters struct {
	Intelligence string
	Verbosity    string
	Creativity   string
	Format       string
	Expertise    string
	Custom       map[string]string
}

// Context carries caller-supplied situation: project label, history and
// priority strings, and an open map referenced by directive conditions.
type Context struct {
	Project  string
	History  string
	Priority string
	Custom   map[string]string
}

// Execution holds the ordered directive and workflow step lists.
type Execution struct {
	Directives []Directive
	Steps      []Step
}

// Strategy is a named recovery strategy in the error-handling section.
type Strategy struct {
	Name   string
	Action string
}

// ErrorHandling describes how the model should recover from failures.
type ErrorHandling struct {
	Strategies []Strategy
	Fallback   string
	Recovery   string
}

// AgentLoop holds the four phase instructions of the agent loop.
type AgentLoop struct {
	Analyze string
	Plan    string
	Execute string
	Reflect string
}

// Document is the structured instruction document. Every section is
// optional; the zero value is the empty document.
type Document struct {
	Identity      Identity
	Parameters    Parameters
	Context       Context
	Execution     Execution
	ErrorHandling ErrorHandling
	AgentLoop     AgentLoop
}

// Template is an immutable, identifier-addressed document fetched from a
// template store. The pipeline never mutates a template in place; merges
// always operate on clones.
type Template struct {
	ID       string
	Version  int
	Document Document
}

// IsEmpty reports whether every section of the document is empty.
func (d *Document) IsEmpty() bool {
	return d.Identity.Persona == "" &&
		len(d.Identity.Capabilities) == 0 &&
		len(d.Identity.Constraints) == 0 &&
		d.Parameters.Intelligence == "" &&
		d.Parameters.Verbosity == "" &&
		d.Parameters.Creativity == "" &&
		d.Parameters.Format == "" &&
		d.Parameters.Expertise == "" &&
		len(d.Parameters.Custom) == 0 &&
		d.Context.Project == "" &&
		d.Context.History == "" &&
		d.Context.Priority == "" &&
		len(d.Context.Custom) == 0 &&
		len(d.Execution.Directives) == 0 &&
		len(d.Execution.Steps) == 0 &&
		len(d.ErrorHandling.Strategies) == 0 &&
		d.ErrorHandling.Fallback == "" &&
		d.ErrorHandling.Recovery == "" &&
		d.AgentLoop.Analyze == "" &&
		d.AgentLoop.Plan == "" &&
		d.AgentLoop.Execute == "" &&
		d.AgentLoop.Reflect == ""
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() Document {
	clone := *d

	clone.Identity.Capabilities = copyStrings(d.Identity.Capabilities)
	clone.Identity.Constraints = copyStrings(d.Identity.Constraints)
	clone.Parameters.Custom = copyMap(d.Parameters.Custom)
	clone.Context.Custom = copyMap(d.Context.Custom)

	if d.Execution.Directives != nil {
		clone.Execution.Directives = make([]Directive, len(d.Execution.Directives))
		copy(clone.Execution.Directives, d.Execution.Directives)
	}
	if d.Execution.Steps != nil {
		clone.Execution.Steps = make([]Step, len(d.Execution.Steps))
		copy(clone.Execution.Steps, d.Execution.Steps)
	}
	if d.ErrorHandling.Strategies != nil {
		clone.ErrorHandling.Strategies = make([]Strategy, len(d.ErrorHandling.Strategies))
		copy(clone.ErrorHandling.Strategies, d.ErrorHandling.Strategies)
	}

	return clone
}

// Clone returns a deep copy of the template.
func (t Template) Clone() Template {
	return Template{ID: t.ID, Version: t.Version, Document: t.Document.Clone()}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Package composer merges an ordered list of candidate templates into a
// single instruction document. Composition is a deterministic left fold:
// the first candidate is the base, each later candidate is merged onto the
// accumulator as an extension under fixed field-level rules.
package composer

import (
	"promptforge/internal/instruction"
	"promptforge/internal/logging"
)

// Composer folds candidate templates into one document.
type Composer struct{}

// New creates a composer.
func New() *Composer {
	return &Composer{}
}

// Compose merges candidates left to right. An empty candidate list yields an
// empty document, not an error. Inputs are never mutated: the fold operates
// on clones.
func (c *Composer) Compose(candidates []instruction.Template) instruction.Document {
	timer := logging.StartTimer(logging.CategoryComposer, "Compose")
	defer timer.Stop()

	if len(candidates) == 0 {
		return instruction.Document{}
	}

	acc := candidates[0].Document.Clone()
	for _, ext := range candidates[1:] {
		acc = Merge(acc, ext.Document)
	}

	logging.Get(logging.CategoryComposer).Debugf(
		"composed %d candidates: directives=%d steps=%d capabilities=%d",
		len(candidates), len(acc.Execution.Directives), len(acc.Execution.Steps),
		len(acc.Identity.Capabilities))

	return acc
}

// Merge combines an extension document onto a base document and returns a
// new document. Field rules:
//
//   - Scalar strings: extension wins when non-empty, else base is kept.
//   - Sets (capabilities, constraints): union, deduplicated, base items
//     first, then extension items not already present.
//   - Maps (custom parameters, custom context): shallow merge, extension
//     keys overwrite base keys.
//   - Directives: deduplicated by literal text, first occurrence wins —
//     directives are declarative constraints and repeating them adds noise.
//   - Workflow steps: concatenated without deduplication — steps are an
//     ordered procedure, and a repeated step from a later, more specific
//     template is assumed intentional.
func Merge(base, ext instruction.Document) instruction.Document {
	out := base.Clone()

	// Identity
	out.Identity.Persona = pick(base.Identity.Persona, ext.Identity.Persona)
	out.Identity.Capabilities = unionStrings(base.Identity.Capabilities, ext.Identity.Capabilities)
	out.Identity.Constraints = unionStrings(base.Identity.Constraints, ext.Identity.Constraints)

	// Parameters
	out.Parameters.Intelligence = pick(base.Parameters.Intelligence, ext.Parameters.Intelligence)
	out.Parameters.Verbosity = pick(base.Parameters.Verbosity, ext.Parameters.Verbosity)
	out.Parameters.Creativity = pick(base.Parameters.Creativity, ext.Parameters.Creativity)
	out.Parameters.Format = pick(base.Parameters.Format, ext.Parameters.Format)
	out.Parameters.Expertise = pick(base.Parameters.Expertise, ext.Parameters.Expertise)
	out.Parameters.Custom = mergeMaps(base.Parameters.Custom, ext.Parameters.Custom)

	// Context
	out.Context.Project = pick(base.Context.Project, ext.Context.Project)
	out.Context.History = pick(base.Context.History, ext.Context.History)
	out.Context.Priority = pick(base.Context.Priority, ext.Context.Priority)
	out.Context.Custom = mergeMaps(base.Context.Custom, ext.Context.Custom)

	// Execution
	out.Execution.Directives = dedupeDirectives(base.Execution.Directives, ext.Execution.Directives)
	out.Execution.Steps = concatSteps(base.Execution.Steps, ext.Execution.Steps)

	// Error handling
	out.ErrorHandling.Strategies = unionStrategies(base.ErrorHandling.Strategies, ext.ErrorHandling.Strategies)
	out.ErrorHandling.Fallback = pick(base.ErrorHandling.Fallback, ext.ErrorHandling.Fallback)
	out.ErrorHandling.Recovery = pick(base.ErrorHandling.Recovery, ext.ErrorHandling.Recovery)

	// Agent loop
	out.AgentLoop.Analyze = pick(base.AgentLoop.Analyze, ext.AgentLoop.Analyze)
	out.AgentLoop.Plan = pick(base.AgentLoop.Plan, ext.AgentLoop.Plan)
	out.AgentLoop.Execute = pick(base.AgentLoop.Execute, ext.AgentLoop.Execute)
	out.AgentLoop.Reflect = pick(base.AgentLoop.Reflect, ext.AgentLoop.Reflect)

	return out
}

// pick returns the extension value when non-empty, else the base value.
func pick(base, ext string) string {
	if ext != "" {
		return ext
	}
	return base
}

func unionStrings(base, ext []string) []string {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(base)+len(ext))
	out := make([]string, 0, len(base)+len(ext))
	for _, v := range base {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range ext {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func mergeMaps(base, ext map[string]string) map[string]string {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(ext))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range ext {
		out[k] = v
	}
	return out
}

// dedupeDirectives keys on literal directive text: the first occurrence
// wins, so an extension duplicate never displaces a base directive even when
// their conditions differ.
func dedupeDirectives(base, ext []instruction.Directive) []instruction.Directive {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(base)+len(ext))
	out := make([]instruction.Directive, 0, len(base)+len(ext))
	for _, d := range base {
		if !seen[d.Text] {
			seen[d.Text] = true
			out = append(out, d)
		}
	}
	for _, d := range ext {
		if !seen[d.Text] {
			seen[d.Text] = true
			out = append(out, d)
		}
	}
	return out
}

func concatSteps(base, ext []instruction.Step) []instruction.Step {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	out := make([]instruction.Step, 0, len(base)+len(ext))
	out = append(out, base...)
	out = append(out, ext...)
	return out
}

// unionStrategies deduplicates recovery strategies by name, base first.
func unionStrategies(base, ext []instruction.Strategy) []instruction.Strategy {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(base)+len(ext))
	out := make([]instruction.Strategy, 0, len(base)+len(ext))
	for _, s := range base {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	for _, s := range ext {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	return out
}

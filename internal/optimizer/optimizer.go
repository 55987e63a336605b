// Package optimizer shrinks a composed instruction document to fit a size
// budget and scores the result. The three optimization levels are strict
// supersets: aggressive applies everything standard does plus more, and
// standard applies everything minimal does plus more.
package optimizer

import (
	"strings"

	"promptforge/internal/instruction"
	"promptforge/internal/logging"
)

// Level is the optimization severity tier.
type Level string

const (
	LevelMinimal    Level = "minimal"
	LevelStandard   Level = "standard"
	LevelAggressive Level = "aggressive"
)

// ParseLevel maps a string to a Level, defaulting to standard.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelMinimal:
		return LevelMinimal
	case LevelAggressive:
		return LevelAggressive
	default:
		return LevelStandard
	}
}

// List caps per level. Truncation always keeps the first N entries in
// existing order: importance was already encoded by selector precedence and
// composer ordering, so no re-ranking happens here.
const (
	standardMaxCapabilities = 5
	standardMaxConstraints  = 3
	standardMaxDirectives   = 7

	aggressiveMaxCapabilities = 3
	aggressiveMaxConstraints  = 1
	aggressiveMaxDirectives   = 5
)

// fillerSubstitutions strips filler phrasing. Applied in order; keys are
// matched case-insensitively against lower-cased text boundaries.
var fillerSubstitutions = []struct{ from, to string }{
	{"in order to", "to"},
	{"it is important to ", ""},
	{"please make sure to ", ""},
	{"make sure to ", ""},
	{"be sure to ", ""},
	{"you should always", "always"},
	{"you should never", "never"},
	{"take into account", "consider"},
	{"with respect to", "for"},
	{"as well as", "and"},
	{"in the event that", "if"},
	{"prior to", "before"},
}

// essentialStepKeywords gates which workflow steps survive aggressive
// optimization.
var essentialStepKeywords = []string{
	"analyze", "implement", "test", "validate", "design", "develop", "create",
}

// jargonAbbreviations shorten surviving aggressive-mode steps.
var jargonAbbreviations = []struct{ from, to string }{
	{"implementation", "impl"},
	{"configuration", "config"},
	{"documentation", "docs"},
	{"repository", "repo"},
	{"application", "app"},
	{"environment", "env"},
	{"specification", "spec"},
	{"database", "DB"},
}

// Optimizer applies tiered reductions to a document.
type Optimizer struct{}

// New creates an optimizer.
func New() *Optimizer {
	return &Optimizer{}
}

// Optimize returns a reduced copy of the document. The input is never
// mutated. For any document d: size(aggressive) <= size(standard) <=
// size(minimal) <= size(d).
func (o *Optimizer) Optimize(doc instruction.Document, level Level) instruction.Document {
	timer := logging.StartTimer(logging.CategoryOptimizer, "Optimize")
	defer timer.Stop()

	out := doc.Clone()

	// Minimal tier: phrase simplification on the identity text only.
	out.Identity.Persona = simplifyPhrases(out.Identity.Persona)

	if level == LevelMinimal {
		return out
	}

	// Standard tier: cap list fields and simplify remaining entries.
	maxCaps, maxConstraints, maxDirectives := standardMaxCapabilities, standardMaxConstraints, standardMaxDirectives
	if level == LevelAggressive {
		maxCaps, maxConstraints, maxDirectives = aggressiveMaxCapabilities, aggressiveMaxConstraints, aggressiveMaxDirectives
	}

	out.Identity.Capabilities = truncate(out.Identity.Capabilities, maxCaps)
	out.Identity.Constraints = truncate(out.Identity.Constraints, maxConstraints)
	if len(out.Execution.Directives) > maxDirectives {
		out.Execution.Directives = out.Execution.Directives[:maxDirectives]
	}

	for i := range out.Execution.Directives {
		out.Execution.Directives[i].Text = simplifyPhrases(out.Execution.Directives[i].Text)
	}
	for i := range out.Execution.Steps {
		out.Execution.Steps[i].Text = simplifyPhrases(out.Execution.Steps[i].Text)
	}

	if level == LevelStandard {
		return out
	}

	// Aggressive tier: essential steps only, abbreviated; error handling
	// reduced to the fallback; agent loop reduced to analyze and execute.
	var essential []instruction.Step
	for _, step := range out.Execution.Steps {
		if isEssentialStep(step.Text) {
			step.Text = abbreviate(step.Text)
			essential = append(essential, step)
		}
	}
	out.Execution.Steps = essential

	out.ErrorHandling.Strategies = nil
	out.ErrorHandling.Recovery = ""

	out.AgentLoop.Plan = ""
	out.AgentLoop.Reflect = ""

	return out
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func simplifyPhrases(text string) string {
	if text == "" {
		return ""
	}
	for _, sub := range fillerSubstitutions {
		text = replaceFold(text, sub.from, sub.to)
	}
	return strings.TrimSpace(text)
}

// replaceFold is a case-insensitive strings.ReplaceAll that preserves the
// rest of the text untouched.
func replaceFold(text, from, to string) string {
	lower := strings.ToLower(text)
	lowerFrom := strings.ToLower(from)

	var b strings.Builder
	for {
		i := strings.Index(lower, lowerFrom)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:i])
		b.WriteString(to)
		text = text[i+len(from):]
		lower = lower[i+len(lowerFrom):]
	}
}

func isEssentialStep(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range essentialStepKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func abbreviate(text string) string {
	for _, abbr := range jargonAbbreviations {
		text = replaceFold(text, abbr.from, abbr.to)
	}
	return text
}

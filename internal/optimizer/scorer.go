package optimizer

import (
	"strings"

	"promptforge/internal/instruction"
)

// Sub-score weights. They sum to 1 so the composite stays in [0,1].
const (
	weightCompleteness = 0.3
	weightClarity      = 0.3
	weightSpecificity  = 0.2
	weightEfficiency   = 0.2
)

// Quality is the composite quality verdict for a document.
type Quality struct {
	Score        float64
	Completeness float64
	Clarity      float64
	Specificity  float64
	Efficiency   float64
	Feedback     []string
}

// Score computes the composite quality score for a document and its
// estimated token count. Each sub-score starts at 1.0, takes fixed
// deductions for specific defects, and is clamped to [0,1]; every deduction
// appends an actionable feedback string.
func Score(doc *instruction.Document, tokenCount int) Quality {
	q := Quality{Completeness: 1, Clarity: 1, Specificity: 1, Efficiency: 1}

	deduct := func(score *float64, amount float64, feedback string) {
		*score -= amount
		q.Feedback = append(q.Feedback, feedback)
	}

	// Completeness
	if doc.Identity.Persona == "" {
		deduct(&q.Completeness, 0.2, "identity persona is missing; add a persona statement")
	}
	if len(doc.Execution.Directives) == 0 {
		deduct(&q.Completeness, 0.2, "no execution directives; add at least one directive")
	}
	if len(doc.Execution.Steps) == 0 {
		deduct(&q.Completeness, 0.1, "no workflow steps; consider adding a procedure")
	}
	if doc.ErrorHandling.Fallback == "" {
		deduct(&q.Completeness, 0.1, "no error fallback defined")
	}
	if doc.AgentLoop.Analyze == "" && doc.AgentLoop.Plan == "" &&
		doc.AgentLoop.Execute == "" && doc.AgentLoop.Reflect == "" {
		deduct(&q.Completeness, 0.1, "agent loop is empty")
	}

	// Clarity
	if persona := doc.Identity.Persona; persona != "" {
		if len(persona) < 10 {
			deduct(&q.Clarity, 0.1, "identity persona is too short to be meaningful")
		}
		if len(persona) > 200 {
			deduct(&q.Clarity, 0.1, "identity persona is too long; trim to its essence")
		}
	}
	longDirectives := 0
	for _, d := range doc.Execution.Directives {
		if len(d.Text) > 200 {
			longDirectives++
		}
	}
	if longDirectives > 0 {
		deduct(&q.Clarity, 0.1, "overly long directives; split or shorten them")
	}
	if containsVagueTerms(doc) {
		deduct(&q.Clarity, 0.1, "vague phrasing detected (etc, stuff, things); be specific")
	}

	// Specificity
	if len(doc.Identity.Capabilities) < 2 {
		deduct(&q.Specificity, 0.1, "fewer than 2 capabilities; enumerate what the model can do")
	}
	if len(doc.Identity.Constraints) == 0 {
		deduct(&q.Specificity, 0.1, "no constraints; state what the model must not do")
	}
	if doc.Parameters.Expertise == "" {
		deduct(&q.Specificity, 0.1, "domain expertise parameter is unset")
	}
	if len(doc.Parameters.Custom) == 0 && len(doc.Context.Custom) == 0 {
		deduct(&q.Specificity, 0.1, "no task-specific parameters or context entries")
	}

	// Token efficiency: only the highest applicable tier fires.
	switch {
	case tokenCount > 1000:
		deduct(&q.Efficiency, 0.3, "document exceeds 1000 tokens; use a stronger optimization level")
	case tokenCount > 700:
		deduct(&q.Efficiency, 0.2, "document exceeds 700 tokens; consider trimming")
	case tokenCount > 500:
		deduct(&q.Efficiency, 0.1, "document exceeds 500 tokens")
	}

	q.Completeness = clamp01(q.Completeness)
	q.Clarity = clamp01(q.Clarity)
	q.Specificity = clamp01(q.Specificity)
	q.Efficiency = clamp01(q.Efficiency)

	q.Score = clamp01(weightCompleteness*q.Completeness +
		weightClarity*q.Clarity +
		weightSpecificity*q.Specificity +
		weightEfficiency*q.Efficiency)

	return q
}

var vagueTerms = []string{" etc", "and so on", " stuff", " things like"}

func containsVagueTerms(doc *instruction.Document) bool {
	check := func(text string) bool {
		lower := strings.ToLower(text)
		for _, term := range vagueTerms {
			if strings.Contains(lower, term) {
				return true
			}
		}
		return false
	}

	if check(doc.Identity.Persona) {
		return true
	}
	for _, d := range doc.Execution.Directives {
		if check(d.Text) {
			return true
		}
	}
	for _, s := range doc.Execution.Steps {
		if check(s.Text) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

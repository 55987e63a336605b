// Package classifier maps a free-text task description to a category,
// domain, complexity tier, and extracted task parameters. Classification is
// a pure keyword-scoring heuristic: it never fails, and degenerate input
// resolves to general/general/standard with zero confidence.
package classifier

import (
	"regexp"
	"strings"

	"promptforge/internal/logging"
)

// Category is one of the closed task categories. The registry order below is
// significant: score ties resolve to the first-declared category.
type Category string

const (
	CategorySoftwareDevelopment Category = "software-development"
	CategoryDataAnalysis        Category = "data-analysis"
	CategoryContentCreation     Category = "content-creation"
	CategoryResearch            Category = "research"
	CategoryProjectManagement   Category = "project-management"
	CategoryCustomerSupport     Category = "customer-support"
	CategoryGeneral             Category = "general"
)

// Complexity is the task complexity tier.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityStandard Complexity = "standard"
	ComplexityComplex  Complexity = "complex"
)

// Result is the classifier output.
type Result struct {
	Category   Category
	Domain     string
	Complexity Complexity
	Keywords   []string
	Parameters map[string]string
	Confidence float64
}

// categoryEntry pairs a category with its keyword set. Declaration order is
// tie-break order.
type categoryEntry struct {
	category Category
	keywords []string
}

var categoryRegistry = []categoryEntry{
	{CategorySoftwareDevelopment, []string{
		"code", "bug", "fix", "debug", "implement", "function", "api",
		"script", "compile", "refactor", "test", "deploy", "library",
		"class", "module", "repository", "crash", "error",
	}},
	{CategoryDataAnalysis, []string{
		"data", "dataset", "analyze", "analysis", "chart", "plot",
		"statistics", "metric", "query", "csv", "aggregate", "trend",
		"correlation", "visualize", "report",
	}},
	{CategoryContentCreation, []string{
		"write", "article", "blog", "draft", "story", "copy", "headline",
		"edit", "proofread", "summarize", "newsletter", "post", "script",
		"tone", "audience",
	}},
	{CategoryResearch, []string{
		"research", "investigate", "compare", "sources", "literature",
		"survey", "evidence", "cite", "study", "findings", "explore",
		"background", "overview",
	}},
	{CategoryProjectManagement, []string{
		"plan", "roadmap", "milestone", "schedule", "deadline", "sprint",
		"backlog", "stakeholder", "scope", "timeline", "prioritize",
		"resource", "deliverable",
	}},
	{CategoryCustomerSupport, []string{
		"customer", "support", "ticket", "complaint", "refund", "reply",
		"apologize", "escalate", "resolve", "inquiry", "response",
		"account", "help",
	}},
}

// domainRegistry maps a domain label to its keyword set. "general" always
// carries a fixed 0.5 baseline before comparison, so a specific domain wins
// only when its raw hit score exceeds that baseline.
var domainRegistry = map[string][]string{
	"web":      {"website", "frontend", "backend", "http", "browser", "html", "css", "react", "server"},
	"mobile":   {"mobile", "android", "ios", "app store", "smartphone", "tablet"},
	"finance":  {"finance", "financial", "budget", "invoice", "revenue", "accounting", "tax", "investment"},
	"health":   {"health", "medical", "patient", "clinical", "diagnosis", "treatment"},
	"legal":    {"legal", "contract", "compliance", "regulation", "policy", "liability"},
	"science":  {"experiment", "hypothesis", "simulation", "physics", "chemistry", "biology"},
	"devops":   {"docker", "kubernetes", "pipeline", "ci/cd", "terraform", "infrastructure", "monitoring"},
	"database": {"database", "sql", "postgres", "mysql", "sqlite", "schema", "migration", "index"},
}

const generalDomainBaseline = 0.5

// Explicit complexity indicators override every other complexity rule.
var (
	simpleIndicators = []string{
		"simple", "quick", "trivial", "small", "tiny", "one-liner", "brief", "minor",
	}
	complexIndicators = []string{
		"complex", "comprehensive", "advanced", "large-scale", "enterprise",
		"multi-stage", "end-to-end", "architecture", "distributed",
	}
)

// Classifier scores free text against the category and domain registries.
// The zero configuration is the production configuration; a Classifier is
// immutable after construction and safe for concurrent use.
type Classifier struct {
	wordSplit *regexp.Regexp
}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{
		wordSplit: regexp.MustCompile(`[a-z0-9][a-z0-9+#./-]*`),
	}
}

// Classify maps text to a classification result. It is a pure function of
// its input and never fails.
func (c *Classifier) Classify(text string) Result {
	timer := logging.StartTimer(logging.CategoryClassifier, "Classify")
	defer timer.Stop()

	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return degenerateResult()
	}

	words := c.wordSplit.FindAllString(normalized, -1)
	if len(words) == 0 {
		return degenerateResult()
	}
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	category, confidence, keywords := c.scoreCategories(normalized, wordSet)
	domain := c.scoreDomain(normalized, wordSet)
	complexity := c.complexity(normalized, len(words))
	params := extractParameters(category, normalized, wordSet)

	result := Result{
		Category:   category,
		Domain:     domain,
		Complexity: complexity,
		Keywords:   keywords,
		Parameters: params,
		Confidence: confidence,
	}

	logging.Get(logging.CategoryClassifier).Debugf(
		"classified: category=%s domain=%s complexity=%s confidence=%.2f params=%d",
		result.Category, result.Domain, result.Complexity, result.Confidence, len(result.Parameters))

	return result
}

func degenerateResult() Result {
	return Result{
		Category:   CategoryGeneral,
		Domain:     "general",
		Complexity: ComplexityStandard,
		Parameters: map[string]string{},
		Confidence: 0,
	}
}

// scoreCategories computes hit-ratio scores per category, normalizes them to
// sum to one, and picks the arg-max. Ties resolve to the first-declared
// category; an all-zero score sheet resolves to "general" with confidence 0.
func (c *Classifier) scoreCategories(text string, wordSet map[string]bool) (Category, float64, []string) {
	raw := make([]float64, len(categoryRegistry))
	total := 0.0

	for i, entry := range categoryRegistry {
		hits := 0
		for _, kw := range entry.keywords {
			if keywordHit(kw, text, wordSet) {
				hits++
			}
		}
		raw[i] = float64(hits) / float64(len(entry.keywords))
		total += raw[i]
	}

	if total == 0 {
		return CategoryGeneral, 0, nil
	}

	best := 0
	for i := range raw {
		raw[i] /= total
		if raw[i] > raw[best] {
			best = i
		}
	}

	// Keywords reported to downstream stages are those of the winning
	// category only; the context extractor scores history against them.
	var bestKeywords []string
	for _, kw := range categoryRegistry[best].keywords {
		if keywordHit(kw, text, wordSet) {
			bestKeywords = append(bestKeywords, kw)
		}
	}

	return categoryRegistry[best].category, raw[best], bestKeywords
}

// scoreDomain scores each domain by raw keyword hits against the fixed
// general baseline. Domain scoring is independent of category scoring.
func (c *Classifier) scoreDomain(text string, wordSet map[string]bool) string {
	bestDomain := "general"
	bestScore := generalDomainBaseline

	// Deterministic iteration: map order would make ties unstable, so score
	// against the strictly-greater comparison and sort-free name tie-break.
	for domain, keywords := range domainRegistry {
		score := 0.0
		for _, kw := range keywords {
			if keywordHit(kw, text, wordSet) {
				score += 1.0 / float64(len(keywords))
			}
		}
		if score > bestScore || (score == bestScore && bestDomain != "general" && domain < bestDomain) {
			bestDomain = domain
			bestScore = score
		}
	}

	return bestDomain
}

// complexity applies the tiered complexity rules. Explicit indicators win;
// then length, then punctuation density. Short texts without an explicit
// simplicity indicator stay standard (the degenerate-input contract and the
// classification scenarios both require this).
func (c *Classifier) complexity(text string, wordCount int) Complexity {
	for _, ind := range simpleIndicators {
		if strings.Contains(text, ind) {
			return ComplexitySimple
		}
	}
	for _, ind := range complexIndicators {
		if strings.Contains(text, ind) {
			return ComplexityComplex
		}
	}

	if wordCount > 100 {
		return ComplexityComplex
	}

	if strings.Count(text, ",") > 5 || strings.Count(text, ";") > 2 {
		return ComplexityComplex
	}

	return ComplexityStandard
}

// keywordHit matches a keyword as a whole word; multi-word keywords match as
// substrings of the normalized text.
func keywordHit(keyword, text string, wordSet map[string]bool) bool {
	if strings.ContainsAny(keyword, " /") {
		return strings.Contains(text, keyword)
	}
	return wordSet[keyword]
}

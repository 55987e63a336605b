// Package taskctx reconciles caller-supplied context with a classification
// result. Extraction never fails: missing or malformed caller input degrades
// to empty defaults rather than erroring.
package taskctx

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"promptforge/internal/classifier"
	"promptforge/internal/logging"
)

const (
	// DefaultPriority is used when the caller supplies none.
	DefaultPriority = "balanced"

	// relevanceThreshold is the minimum relevance for a history entry to
	// survive filtering.
	relevanceThreshold = 0.5

	// maxHistoryEntries caps the filtered history list.
	maxHistoryEntries = 5
)

// Reserved caller-context keys. Everything else with a string value is
// treated as a custom context override.
const (
	keyProject        = "project"
	keyPriority       = "priority"
	keyHistory        = "history"
	keyHistoryEntries = "history_entries"
)

// HistoryEntry is a caller history item that survived relevance filtering.
type HistoryEntry struct {
	Text      string
	Relevance float64
}

// Context is the extractor output, consumed by the selector and composer.
type Context struct {
	Project        string
	History        string
	Priority       string
	HistoryEntries []HistoryEntry
	Custom         map[string]string
}

// defaultContextKeys lists the category-specific context keys seeded with
// empty or classifier-derived values before caller overrides apply.
var defaultContextKeys = map[classifier.Category][]string{
	classifier.CategorySoftwareDevelopment: {"programming_language", "framework", "code_style"},
	classifier.CategoryDataAnalysis:        {"data_format", "analysis_depth"},
	classifier.CategoryContentCreation:     {"content_type", "tone", "audience"},
	classifier.CategoryResearch:            {"citation_style", "depth"},
	classifier.CategoryProjectManagement:   {"methodology", "team_size"},
	classifier.CategoryCustomerSupport:     {"issue_type", "tone"},
}

var wordSplit = regexp.MustCompile(`[a-z0-9][a-z0-9+#./-]*`)

// Extractor builds a Context from caller input and a classification.
type Extractor struct{}

// New creates an extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract pulls project, history, and priority verbatim from the caller map,
// filters the caller history list by relevance to the classification, and
// merges category defaults under caller overrides.
func (e *Extractor) Extract(caller map[string]any, cls classifier.Result) Context {
	timer := logging.StartTimer(logging.CategoryContext, "Extract")
	defer timer.Stop()

	out := Context{
		Priority: DefaultPriority,
		Custom:   map[string]string{},
	}

	// Category/domain defaults first; caller values overwrite below.
	for _, key := range defaultContextKeys[cls.Category] {
		if v, ok := cls.Parameters[key]; ok {
			out.Custom[key] = v
		} else {
			out.Custom[key] = ""
		}
	}
	if cls.Domain != "general" {
		out.Custom["domain"] = cls.Domain
	}

	if caller == nil {
		return out
	}

	for key, raw := range caller {
		switch key {
		case keyProject:
			out.Project = asString(raw)
		case keyPriority:
			if p := asString(raw); p != "" {
				out.Priority = p
			}
		case keyHistory:
			out.History = asString(raw)
		case keyHistoryEntries:
			out.HistoryEntries = filterHistory(asStringSlice(raw), cls.Keywords)
		default:
			if v := asString(raw); v != "" {
				out.Custom[key] = v
			}
		}
	}

	logging.Get(logging.CategoryContext).Debugf(
		"extracted context: project=%q priority=%q history_entries=%d custom_keys=%d",
		out.Project, out.Priority, len(out.HistoryEntries), len(out.Custom))

	return out
}

// filterHistory keeps at most maxHistoryEntries entries whose relevance to
// the classification keywords exceeds the threshold, sorted descending by
// relevance with original order preserved on ties.
func filterHistory(entries []string, keywords []string) []HistoryEntry {
	if len(entries) == 0 {
		return nil
	}

	var kept []HistoryEntry
	for _, entry := range entries {
		rel := Relevance(entry, keywords)
		if rel > relevanceThreshold {
			kept = append(kept, HistoryEntry{Text: entry, Relevance: rel})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Relevance > kept[j].Relevance
	})

	if len(kept) > maxHistoryEntries {
		kept = kept[:maxHistoryEntries]
	}
	return kept
}

// Relevance scores a history entry against the classification keywords using
// the overlap coefficient of their word sets: |E∩K| / min(|E|, |K|). The
// score is 0 when either set is empty. The original system left this formula
// unspecified; the overlap coefficient is this implementation's choice
// because it rewards short entries that mention the task's vocabulary
// without penalizing long ones.
func Relevance(entry string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	entryWords := wordSplit.FindAllString(strings.ToLower(entry), -1)
	if len(entryWords) == 0 {
		return 0
	}

	entrySet := make(map[string]bool, len(entryWords))
	for _, w := range entryWords {
		entrySet[w] = true
	}
	keywordSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		keywordSet[strings.ToLower(k)] = true
	}

	overlap := 0
	for k := range keywordSet {
		if entrySet[k] {
			overlap++
		}
	}

	minSize := len(entrySet)
	if len(keywordSet) < minSize {
		minSize = len(keywordSet)
	}
	if minSize == 0 {
		return 0
	}
	return float64(overlap) / float64(minSize)
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return ""
	}
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str := asString(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

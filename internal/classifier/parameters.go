package classifier

import "strings"

// Parameter extraction is category-specific and purely additive: it never
// changes the category, domain, or complexity decided by the scoring rules.

var programmingLanguages = []string{
	"python", "go", "golang", "javascript", "typescript", "java", "rust",
	"ruby", "php", "kotlin", "swift", "scala", "elixir", "haskell",
	"c", "c++", "c#", "sql", "bash", "r",
}

// languageAliases folds alternate spellings onto canonical names.
var languageAliases = map[string]string{
	"golang": "go",
}

var frameworks = []string{
	"react", "vue", "angular", "svelte", "django", "flask", "rails",
	"spring", "laravel", "express", "gin", "echo", "fastapi", "nextjs",
	"pandas", "numpy", "pytorch", "tensorflow",
}

// taskTypeIndicators map task_type values to their trigger phrases, checked
// in declaration order with first match winning.
var taskTypeIndicators = []struct {
	taskType string
	triggers []string
}{
	{"debugging", []string{"fix", "bug", "crash", "broken", "error", "debug", "not working"}},
	{"testing", []string{"test", "coverage", "unit test", "integration test"}},
	{"refactoring", []string{"refactor", "clean up", "restructure", "simplify"}},
	{"review", []string{"review", "audit", "inspect"}},
	{"documentation", []string{"document", "docs", "readme", "comment"}},
	{"feature", []string{"add", "create", "implement", "build", "new"}},
}

var dataFormats = []string{"csv", "json", "parquet", "xml", "excel", "sql"}

var contentTypes = []struct {
	contentType string
	triggers    []string
}{
	{"blog-post", []string{"blog"}},
	{"article", []string{"article"}},
	{"email", []string{"email", "newsletter"}},
	{"social", []string{"tweet", "social", "post"}},
	{"marketing", []string{"copy", "headline", "ad"}},
}

func extractParameters(category Category, text string, wordSet map[string]bool) map[string]string {
	params := map[string]string{}

	switch category {
	case CategorySoftwareDevelopment:
		if lang := detectLanguage(wordSet); lang != "" {
			params["programming_language"] = lang
		}
		if fw := detectFramework(wordSet); fw != "" {
			params["framework"] = fw
		}
		if tt := detectTaskType(text); tt != "" {
			params["task_type"] = tt
		}

	case CategoryDataAnalysis:
		for _, f := range dataFormats {
			if wordSet[f] {
				params["data_format"] = f
				break
			}
		}
		if tt := detectTaskType(text); tt != "" {
			params["task_type"] = tt
		}

	case CategoryContentCreation:
		for _, ct := range contentTypes {
			for _, trigger := range ct.triggers {
				if wordSet[trigger] {
					params["content_type"] = ct.contentType
					break
				}
			}
			if _, ok := params["content_type"]; ok {
				break
			}
		}

	case CategoryCustomerSupport:
		if strings.Contains(text, "refund") {
			params["issue_type"] = "refund"
		} else if strings.Contains(text, "complaint") {
			params["issue_type"] = "complaint"
		}
	}

	return params
}

func detectLanguage(wordSet map[string]bool) string {
	// Word splitting keeps + and # attached, so c++ and c# match as words.
	for _, lang := range programmingLanguages {
		if wordSet[lang] {
			if canonical, ok := languageAliases[lang]; ok {
				return canonical
			}
			return lang
		}
	}
	return ""
}

func detectFramework(wordSet map[string]bool) string {
	for _, fw := range frameworks {
		if wordSet[fw] {
			return fw
		}
	}
	return ""
}

func detectTaskType(text string) string {
	for _, entry := range taskTypeIndicators {
		for _, trigger := range entry.triggers {
			if strings.Contains(trigger, " ") {
				if strings.Contains(text, trigger) {
					return entry.taskType
				}
			} else if containsWord(text, trigger) {
				return entry.taskType
			}
		}
	}
	return ""
}

// containsWord reports whether text contains word with non-word boundaries
// on both sides. Avoids "add" matching inside "address".
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

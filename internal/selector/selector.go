// Package selector chooses candidate templates from a template store in
// precedence order. Selection never fails: unresolvable identifiers are
// silently skipped and an empty candidate list is a valid result.
package selector

import (
	"promptforge/internal/classifier"
	"promptforge/internal/instruction"
	"promptforge/internal/logging"
	"promptforge/internal/taskctx"
)

// TemplateStore is the read-only template lookup the selector depends on.
// Implementations must be safe for concurrent use and must serve lookups
// from memory; a miss means "not found", never a blocking fetch.
type TemplateStore interface {
	Lookup(id string) (instruction.Template, bool)
}

// Preferences carries explicit caller choices that override selection.
type Preferences struct {
	// PreferredTemplateID short-circuits selection when resolvable.
	PreferredTemplateID string
}

// Selector builds the ordered candidate list for the composer. Declaration
// order is precedence order: the composer folds candidates left to right, so
// earlier candidates form the base later ones extend.
type Selector struct {
	store TemplateStore
}

// New creates a selector over a template store.
func New(store TemplateStore) *Selector {
	return &Selector{store: store}
}

// Select returns candidate templates in precedence order:
//
//  1. The explicitly preferred template alone, when resolvable.
//  2. {category}/{complexity} as the primary candidate.
//  3. domain/{domain} when the domain is not "general".
//  4. {category}/{task_type}, language/{programming_language}, and
//     project/{project}, each only when resolvable.
//
// No relevance re-ranking happens after this ordered construction.
func (s *Selector) Select(cls classifier.Result, ctx taskctx.Context, prefs Preferences) []instruction.Template {
	timer := logging.StartTimer(logging.CategorySelector, "Select")
	defer timer.Stop()
	log := logging.Get(logging.CategorySelector)

	if prefs.PreferredTemplateID != "" {
		if t, ok := s.store.Lookup(prefs.PreferredTemplateID); ok {
			log.Debugf("preferred template %q resolved; short-circuiting selection", t.ID)
			return []instruction.Template{t}
		}
		log.Debugf("preferred template %q not resolvable; falling back to classification", prefs.PreferredTemplateID)
	}

	var candidates []instruction.Template
	appendIfFound := func(id string) {
		if id == "" {
			return
		}
		if t, ok := s.store.Lookup(id); ok {
			candidates = append(candidates, t)
			return
		}
		log.Debugf("template %q not found; skipping", id)
	}

	appendIfFound(string(cls.Category) + "/" + string(cls.Complexity))

	if cls.Domain != "general" {
		appendIfFound("domain/" + cls.Domain)
	}

	if taskType := cls.Parameters["task_type"]; taskType != "" {
		appendIfFound(string(cls.Category) + "/" + taskType)
	}
	if lang := cls.Parameters["programming_language"]; lang != "" {
		appendIfFound("language/" + lang)
	}
	if ctx.Project != "" {
		appendIfFound("project/" + ctx.Project)
	}

	log.Debugf("selected %d candidate templates", len(candidates))
	return candidates
}

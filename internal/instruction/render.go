package instruction

import (
	"sort"
	"strconv"
	"strings"

	"promptforge/internal/condition"
	"promptforge/internal/logging"
)

// Render flattens a document into the final instruction text handed to the
// model. Sections appear in a fixed order with markdown headers, mirroring
// the tree structure; empty sections are omitted. Guarded directives and
// steps are evaluated against the document's context map merged with extra:
// entries whose condition is false are dropped, and entries whose condition
// cannot be parsed are dropped with a local warning (degrade, don't fail).
//
// Rendering is one-directional: the produced text is never parsed back.
func Render(d *Document, extra map[string]string) string {
	ctx := renderContext(d, extra)

	var b strings.Builder

	if d.Identity.Persona != "" || len(d.Identity.Capabilities) > 0 || len(d.Identity.Constraints) > 0 {
		b.WriteString("## Identity\n\n")
		if d.Identity.Persona != "" {
			b.WriteString(d.Identity.Persona)
			b.WriteString("\n\n")
		}
		writeList(&b, "Capabilities", d.Identity.Capabilities)
		writeList(&b, "Constraints", d.Identity.Constraints)
	}

	if params := renderParameters(&d.Parameters); len(params) > 0 {
		b.WriteString("## Parameters\n\n")
		for _, p := range params {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if d.Context.Project != "" || d.Context.History != "" || d.Context.Priority != "" || len(d.Context.Custom) > 0 {
		b.WriteString("## Context\n\n")
		writeField(&b, "Project", d.Context.Project)
		writeField(&b, "History", d.Context.History)
		writeField(&b, "Priority", d.Context.Priority)
		for _, k := range sortedKeys(d.Context.Custom) {
			writeField(&b, k, d.Context.Custom[k])
		}
		b.WriteString("\n")
	}

	directives := guardedDirectives(d.Execution.Directives, ctx)
	steps := guardedSteps(d.Execution.Steps, ctx)
	if len(directives) > 0 || len(steps) > 0 {
		b.WriteString("## Execution\n\n")
		for _, text := range directives {
			b.WriteString("- ")
			b.WriteString(text)
			b.WriteString("\n")
		}
		if len(directives) > 0 {
			b.WriteString("\n")
		}
		if len(steps) > 0 {
			b.WriteString("Workflow:\n\n")
			for i, text := range steps {
				b.WriteString(strconv.Itoa(i + 1))
				b.WriteString(". ")
				b.WriteString(text)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	eh := &d.ErrorHandling
	if len(eh.Strategies) > 0 || eh.Fallback != "" || eh.Recovery != "" {
		b.WriteString("## Error Handling\n\n")
		for _, s := range eh.Strategies {
			b.WriteString("- ")
			b.WriteString(s.Name)
			if s.Action != "" {
				b.WriteString(": ")
				b.WriteString(s.Action)
			}
			b.WriteString("\n")
		}
		if len(eh.Strategies) > 0 {
			b.WriteString("\n")
		}
		writeField(&b, "Fallback", eh.Fallback)
		writeField(&b, "Recovery", eh.Recovery)
		b.WriteString("\n")
	}

	al := &d.AgentLoop
	if al.Analyze != "" || al.Plan != "" || al.Execute != "" || al.Reflect != "" {
		b.WriteString("## Agent Loop\n\n")
		writeField(&b, "Analyze", al.Analyze)
		writeField(&b, "Plan", al.Plan)
		writeField(&b, "Execute", al.Execute)
		writeField(&b, "Reflect", al.Reflect)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderContext builds the map guard expressions evaluate against: the
// document's own context fields and custom entries, with extra values from
// the caller layered on top.
func renderContext(d *Document, extra map[string]string) map[string]string {
	ctx := make(map[string]string, len(d.Context.Custom)+len(extra)+3)
	if d.Context.Project != "" {
		ctx["project"] = d.Context.Project
	}
	if d.Context.History != "" {
		ctx["history"] = d.Context.History
	}
	if d.Context.Priority != "" {
		ctx["priority"] = d.Context.Priority
	}
	for k, v := range d.Context.Custom {
		ctx[k] = v
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

func guardedDirectives(directives []Directive, ctx map[string]string) []string {
	var out []string
	for _, dir := range directives {
		if dir.Condition == "" {
			out = append(out, dir.Text)
			continue
		}
		ok, err := condition.Eval(dir.Condition, ctx)
		if err != nil {
			logging.Get(logging.CategoryComposer).Warnf(
				"dropping directive with malformed condition %q: %v", dir.Condition, err)
			continue
		}
		if ok {
			out = append(out, dir.Text)
		}
	}
	return out
}

func guardedSteps(steps []Step, ctx map[string]string) []string {
	var out []string
	for _, st := range steps {
		if st.Condition == "" {
			out = append(out, st.Text)
			continue
		}
		ok, err := condition.Eval(st.Condition, ctx)
		if err != nil {
			logging.Get(logging.CategoryComposer).Warnf(
				"dropping step with malformed condition %q: %v", st.Condition, err)
			continue
		}
		if ok {
			out = append(out, st.Text)
		}
	}
	return out
}

func renderParameters(p *Parameters) []string {
	var out []string
	appendParam := func(name, value string) {
		if value != "" {
			out = append(out, name+": "+value)
		}
	}
	appendParam("Intelligence", p.Intelligence)
	appendParam("Verbosity", p.Verbosity)
	appendParam("Creativity", p.Creativity)
	appendParam("Format", p.Format)
	appendParam("Expertise", p.Expertise)
	for _, k := range sortedKeys(p.Custom) {
		appendParam(k, p.Custom[k])
	}
	return out
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

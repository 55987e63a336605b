package instruction

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// The canonical persisted form of a template is a tagged-element tree:
// section names are tags, guard conditions are attributes on <directive>
// and <step> elements. This is the format template stores persist and the
// format the renderer flattens from; text is never parsed back into a tree.

type xmlTemplate struct {
	XMLName       xml.Name          `xml:"template"`
	ID            string            `xml:"id,attr,omitempty"`
	Version       int               `xml:"version,attr,omitempty"`
	Identity      *xmlIdentity      `xml:"identity,omitempty"`
	Parameters    *xmlParameters    `xml:"parameters,omitempty"`
	Context       *xmlContext       `xml:"context,omitempty"`
	Execution     *xmlExecution     `xml:"execution,omitempty"`
	ErrorHandling *xmlErrorHandling `xml:"error-handling,omitempty"`
	AgentLoop     *xmlAgentLoop     `xml:"agent-loop,omitempty"`
}

type xmlIdentity struct {
	Persona      string   `xml:"persona,omitempty"`
	Capabilities []string `xml:"capability,omitempty"`
	Constraints  []string `xml:"constraint,omitempty"`
}

type xmlKV struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlParameters struct {
	Intelligence string  `xml:"intelligence,attr,omitempty"`
	Verbosity    string  `xml:"verbosity,attr,omitempty"`
	Creativity   string  `xml:"creativity,attr,omitempty"`
	Format       string  `xml:"format,attr,omitempty"`
	Expertise    string  `xml:"expertise,attr,omitempty"`
	Params       []xmlKV `xml:"param,omitempty"`
}

type xmlContext struct {
	Project  string  `xml:"project,attr,omitempty"`
	History  string  `xml:"history,attr,omitempty"`
	Priority string  `xml:"priority,attr,omitempty"`
	Entries  []xmlKV `xml:"entry,omitempty"`
}

type xmlExecution struct {
	Directives []Directive `xml:"directive,omitempty"`
	Steps      []Step      `xml:"step,omitempty"`
}

type xmlStrategy struct {
	Name   string `xml:"name,attr"`
	Action string `xml:",chardata"`
}

type xmlErrorHandling struct {
	Fallback   string        `xml:"fallback,attr,omitempty"`
	Recovery   string        `xml:"recovery,attr,omitempty"`
	Strategies []xmlStrategy `xml:"strategy,omitempty"`
}

type xmlAgentLoop struct {
	Analyze string `xml:"analyze,omitempty"`
	Plan    string `xml:"plan,omitempty"`
	Execute string `xml:"execute,omitempty"`
	Reflect string `xml:"reflect,omitempty"`
}

// MarshalTemplate serializes a template into its canonical XML tree.
// Map-valued fields are emitted in sorted key order so output is stable.
func MarshalTemplate(t Template) ([]byte, error) {
	xt := xmlTemplate{ID: t.ID, Version: t.Version}
	d := &t.Document

	if d.Identity.Persona != "" || len(d.Identity.Capabilities) > 0 || len(d.Identity.Constraints) > 0 {
		xt.Identity = &xmlIdentity{
			Persona:      d.Identity.Persona,
			Capabilities: d.Identity.Capabilities,
			Constraints:  d.Identity.Constraints,
		}
	}

	p := d.Parameters
	if p.Intelligence != "" || p.Verbosity != "" || p.Creativity != "" ||
		p.Format != "" || p.Expertise != "" || len(p.Custom) > 0 {
		xt.Parameters = &xmlParameters{
			Intelligence: p.Intelligence,
			Verbosity:    p.Verbosity,
			Creativity:   p.Creativity,
			Format:       p.Format,
			Expertise:    p.Expertise,
			Params:       sortedKV(p.Custom),
		}
	}

	c := d.Context
	if c.Project != "" || c.History != "" || c.Priority != "" || len(c.Custom) > 0 {
		xt.Context = &xmlContext{
			Project:  c.Project,
			History:  c.History,
			Priority: c.Priority,
			Entries:  sortedKV(c.Custom),
		}
	}

	if len(d.Execution.Directives) > 0 || len(d.Execution.Steps) > 0 {
		xt.Execution = &xmlExecution{
			Directives: d.Execution.Directives,
			Steps:      d.Execution.Steps,
		}
	}

	eh := d.ErrorHandling
	if len(eh.Strategies) > 0 || eh.Fallback != "" || eh.Recovery != "" {
		xeh := &xmlErrorHandling{Fallback: eh.Fallback, Recovery: eh.Recovery}
		for _, s := range eh.Strategies {
			xeh.Strategies = append(xeh.Strategies, xmlStrategy{Name: s.Name, Action: s.Action})
		}
		xt.ErrorHandling = xeh
	}

	al := d.AgentLoop
	if al.Analyze != "" || al.Plan != "" || al.Execute != "" || al.Reflect != "" {
		xt.AgentLoop = &xmlAgentLoop{
			Analyze: al.Analyze,
			Plan:    al.Plan,
			Execute: al.Execute,
			Reflect: al.Reflect,
		}
	}

	out, err := xml.MarshalIndent(xt, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal template %q: %w", t.ID, err)
	}
	return out, nil
}

// UnmarshalTemplate parses the canonical XML tree back into a template.
func UnmarshalTemplate(data []byte) (Template, error) {
	var xt xmlTemplate
	if err := xml.Unmarshal(data, &xt); err != nil {
		return Template{}, fmt.Errorf("parse template XML: %w", err)
	}

	t := Template{ID: xt.ID, Version: xt.Version}
	d := &t.Document

	if xt.Identity != nil {
		d.Identity = Identity{
			Persona:      strings.TrimSpace(xt.Identity.Persona),
			Capabilities: trimAll(xt.Identity.Capabilities),
			Constraints:  trimAll(xt.Identity.Constraints),
		}
	}
	if xt.Parameters != nil {
		d.Parameters = Parameters{
			Intelligence: xt.Parameters.Intelligence,
			Verbosity:    xt.Parameters.Verbosity,
			Creativity:   xt.Parameters.Creativity,
			Format:       xt.Parameters.Format,
			Expertise:    xt.Parameters.Expertise,
			Custom:       kvMap(xt.Parameters.Params),
		}
	}
	if xt.Context != nil {
		d.Context = Context{
			Project:  xt.Context.Project,
			History:  xt.Context.History,
			Priority: xt.Context.Priority,
			Custom:   kvMap(xt.Context.Entries),
		}
	}
	if xt.Execution != nil {
		for _, dir := range xt.Execution.Directives {
			d.Execution.Directives = append(d.Execution.Directives,
				Directive{Text: strings.TrimSpace(dir.Text), Condition: dir.Condition})
		}
		for _, st := range xt.Execution.Steps {
			d.Execution.Steps = append(d.Execution.Steps,
				Step{Text: strings.TrimSpace(st.Text), Condition: st.Condition})
		}
	}
	if xt.ErrorHandling != nil {
		d.ErrorHandling.Fallback = xt.ErrorHandling.Fallback
		d.ErrorHandling.Recovery = xt.ErrorHandling.Recovery
		for _, s := range xt.ErrorHandling.Strategies {
			d.ErrorHandling.Strategies = append(d.ErrorHandling.Strategies,
				Strategy{Name: s.Name, Action: strings.TrimSpace(s.Action)})
		}
	}
	if xt.AgentLoop != nil {
		d.AgentLoop = AgentLoop{
			Analyze: strings.TrimSpace(xt.AgentLoop.Analyze),
			Plan:    strings.TrimSpace(xt.AgentLoop.Plan),
			Execute: strings.TrimSpace(xt.AgentLoop.Execute),
			Reflect: strings.TrimSpace(xt.AgentLoop.Reflect),
		}
	}

	return t, nil
}

func sortedKV(m map[string]string) []xmlKV {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]xmlKV, 0, len(keys))
	for _, k := range keys {
		kv = append(kv, xmlKV{Key: k, Value: m[k]})
	}
	return kv
}

func kvMap(kv []xmlKV) map[string]string {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]string, len(kv))
	for _, e := range kv {
		m[e.Key] = strings.TrimSpace(e.Value)
	}
	return m
}

func trimAll(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// Package reqprep normalizes a model.ParsedRequest into cached headers
// and body bytes once per run, substituting {{var}} tokens from an
// environment override map. Substitution is literal: no function
// calls, no expression language — a token with no binding is left
// as-is.
package reqprep

import (
	"strings"

	"github.com/google/uuid"
)

// dynamicRef is a token resolved at substitution time rather than from
// env, matching Postman's "$uuid" dynamic-variable convention. It is
// the only one carried over: the rest of Postman's dynamic-variable
// set ($timestamp, $randomInt, ...) has no grounding in this engine's
// literal-substitution policy.
const dynamicRefUUID = "$uuid"

// templatePart is either a static literal or a {{var}} reference.
type templatePart struct {
	isLiteral bool
	literal   string
	ref       string
}

// compiledTemplate is a pre-parsed template ready for repeated,
// allocation-light substitution.
type compiledTemplate struct {
	parts   []templatePart
	hasVars bool
}

// compile parses a template string. Cache.render calls it (through
// substitute) once per field when a request is first prepared, not on
// every replay.
func compile(input string) *compiledTemplate {
	if strings.IndexByte(input, '{') == -1 || !strings.Contains(input, "{{") {
		return &compiledTemplate{parts: []templatePart{{isLiteral: true, literal: input}}}
	}

	ct := &compiledTemplate{hasVars: true}
	remaining := input
	for {
		start := strings.Index(remaining, "{{")
		if start == -1 {
			if remaining != "" {
				ct.parts = append(ct.parts, templatePart{isLiteral: true, literal: remaining})
			}
			break
		}
		if start > 0 {
			ct.parts = append(ct.parts, templatePart{isLiteral: true, literal: remaining[:start]})
		}
		afterOpen := remaining[start+2:]
		end := strings.Index(afterOpen, "}}")
		if end == -1 {
			ct.parts = append(ct.parts, templatePart{isLiteral: true, literal: remaining[start:]})
			break
		}
		ref := strings.TrimSpace(afterOpen[:end])
		ct.parts = append(ct.parts, templatePart{isLiteral: false, ref: ref})
		remaining = afterOpen[end+2:]
	}
	return ct
}

// execute substitutes bound tokens; unbound tokens are emitted verbatim
// as "{{ref}}", per the literal-substitution policy.
func (ct *compiledTemplate) execute(env map[string]string) string {
	if !ct.hasVars {
		return ct.parts[0].literal
	}

	size := 0
	for i := range ct.parts {
		if ct.parts[i].isLiteral {
			size += len(ct.parts[i].literal)
		}
	}

	var sb strings.Builder
	sb.Grow(size + 32)
	for i := range ct.parts {
		p := &ct.parts[i]
		if p.isLiteral {
			sb.WriteString(p.literal)
			continue
		}
		switch {
		case p.ref == dynamicRefUUID:
			sb.WriteString(uuid.New().String())
		default:
			if v, ok := env[p.ref]; ok {
				sb.WriteString(v)
			} else {
				sb.WriteString("{{")
				sb.WriteString(p.ref)
				sb.WriteString("}}")
			}
		}
	}
	return sb.String()
}

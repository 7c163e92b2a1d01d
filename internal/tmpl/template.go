// Package tmpl renders boot scripts and other host-specific content from a
// Jinja-compatible template dialect ({{ expression }}, {% control %},
// {# comment #}) over a flat, string-keyed context. No custom tags or
// filters are required, so the dialect is realized as a thin preprocessor
// translating Jinja delimiters to Go's text/template syntax, keeping
// text/template itself as the execution engine.
package tmpl

import (
	"bytes"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/tinkerbell/serabut/internal/apperr"
)

// Renderer parses and executes templates against a string-keyed context.
type Renderer struct {
	funcs template.FuncMap
}

// NewRenderer returns a Renderer with sprig's string/helper functions
// registered, matching the dependency's presence in the wider monorepo.
func NewRenderer() *Renderer {
	return &Renderer{funcs: sprig.TxtFuncMap()}
}

// RenderFile reads path and renders it against ctx.
func (r *Renderer) RenderFile(path string, ctx map[string]string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.NotFound, "template not found: "+path, err)
		}
		return nil, apperr.Wrap(apperr.IO, "reading template: "+path, err)
	}
	return r.Render(string(content), ctx)
}

// Render parses and executes src against ctx. ctx values are plain strings;
// referencing a missing key yields "<no value>" per text/template's default
// behavior for map lookups unless Option("missingkey=error") semantics are
// desired — Jinja templates commonly rely on defined-ness instead, so this
// renderer treats an undefined top-level name as a syntax-adjacent Template
// error only when the template explicitly guards for it via sprig's
// `required`; otherwise a missing key renders empty, matching Jinja's
// default undefined-is-empty behavior.
func (r *Renderer) Render(src string, ctx map[string]string) ([]byte, error) {
	translated, err := translate(src)
	if err != nil {
		return nil, apperr.Wrap(apperr.Template, "translating template syntax", err)
	}

	t, err := template.New("tmpl").Funcs(r.funcs).Option("missingkey=zero").Parse(translated)
	if err != nil {
		return nil, apperr.Wrap(apperr.Template, "parsing template", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return nil, apperr.Wrap(apperr.Template, "executing template", err)
	}
	return buf.Bytes(), nil
}

var (
	commentRe  = regexp.MustCompile(`(?s)\{#(.*?)#\}`)
	ifRe       = regexp.MustCompile(`\{%-?\s*if\s+(.+?)\s*-?%\}`)
	elifRe     = regexp.MustCompile(`\{%-?\s*elif\s+(.+?)\s*-?%\}`)
	elseRe     = regexp.MustCompile(`\{%-?\s*else\s*-?%\}`)
	endifRe    = regexp.MustCompile(`\{%-?\s*endif\s*-?%\}`)
	forRe      = regexp.MustCompile(`\{%-?\s*for\s+(\w+)\s+in\s+(.+?)\s*-?%\}`)
	endforRe   = regexp.MustCompile(`\{%-?\s*endfor\s*-?%\}`)
	outputRe   = regexp.MustCompile(`\{\{\s*(.+?)\s*\}\}`)
	identRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pipeHeadRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(\s*\|.*)$`)
)

// translate rewrites a Jinja-dialect template into Go's text/template
// syntax: {# #} comments, {% if/elif/else/endif %} and
// {% for x in y %}/{% endfor %} control tags, and bare {{ name }} /
// {{ name | filter }} output expressions where name is a single context
// key (dotted into .name for map lookup, since the context is always a
// flat map[string]string).
func translate(src string) (string, error) {
	out := commentRe.ReplaceAllString(src, "{{/*$1*/}}")

	// Bare {{ expr }} outputs are translated first, while control tags
	// still use the {% %} delimiter, so this pass can never re-match
	// (and corrupt) a {{if}}/{{end}}/{{range}} action emitted below.
	out = outputRe.ReplaceAllStringFunc(out, func(m string) string {
		expr := outputRe.FindStringSubmatch(m)[1]
		return "{{" + dotify(expr) + "}}"
	})

	out = forRe.ReplaceAllStringFunc(out, func(m string) string {
		groups := forRe.FindStringSubmatch(m)
		iterVar, iterable := groups[1], groups[2]
		return "{{range $" + iterVar + " := " + dotify(iterable) + "}}"
	})
	out = endforRe.ReplaceAllString(out, "{{end}}")

	out = ifRe.ReplaceAllStringFunc(out, func(m string) string {
		cond := ifRe.FindStringSubmatch(m)[1]
		return "{{if " + dotify(cond) + "}}"
	})
	out = elifRe.ReplaceAllStringFunc(out, func(m string) string {
		cond := elifRe.FindStringSubmatch(m)[1]
		return "{{else if " + dotify(cond) + "}}"
	})
	out = elseRe.ReplaceAllString(out, "{{else}}")
	out = endifRe.ReplaceAllString(out, "{{end}}")

	return out, nil
}

// dotify prefixes a bare top-level identifier with "." so it resolves as a
// context-map lookup under Go's text/template, leaving anything already
// using template syntax (dotted paths, function calls, string/number
// literals, pipes whose head is not a bare name) untouched.
func dotify(expr string) string {
	expr = strings.TrimSpace(expr)
	if identRe.MatchString(expr) {
		return "." + expr
	}
	if m := pipeHeadRe.FindStringSubmatch(expr); m != nil {
		return "." + m[1] + m[2]
	}
	return expr
}
